package sitedata

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/empiricalmet/fluxlag/internal/log"
	"github.com/empiricalmet/fluxlag/pkg/errs"
)

// SiteSample is one observation row in the site_samples hypertable.
type SiteSample struct {
	Site  string    `gorm:"column:site"`
	Time  time.Time `gorm:"column:time"`
	Name  string    `gorm:"column:name"`
	Value *float64  `gorm:"column:value"`
}

// TableName implements the GORM table name interface.
func (SiteSample) TableName() string {
	return "site_samples"
}

// TimescaleStore reads site series from a TimescaleDB instance holding
// long-format observations in the site_samples hypertable.
type TimescaleStore struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

// NewTimescaleStore connects to the database named by the connection
// string.
func NewTimescaleStore(dsn string, logger *zap.SugaredLogger) (*TimescaleStore, error) {
	dbLogger := gormlogger.New(
		zap.NewStdLog(log.GetZapLogger()),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: dbLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to TimescaleDB: %w", err)
	}

	return &TimescaleStore{db: db, logger: logger}, nil
}

func (t *TimescaleStore) Sites(ctx context.Context) ([]string, error) {
	var sites []string
	err := t.db.WithContext(ctx).Model(&SiteSample{}).
		Distinct().Order("site").Pluck("site", &sites).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query sites: %w", err)
	}
	return sites, nil
}

func (t *TimescaleStore) Meta(ctx context.Context, site string) (SiteMeta, error) {
	var stamps []time.Time
	err := t.db.WithContext(ctx).Model(&SiteSample{}).
		Where("site = ?", site).
		Distinct().Order("time").Limit(2).Pluck("time", &stamps).Error
	if err != nil {
		return SiteMeta{}, fmt.Errorf("failed to query site times: %w", err)
	}
	if len(stamps) == 0 {
		return SiteMeta{}, errs.Data("site %s has no samples", site)
	}

	meta := SiteMeta{Name: site}
	if len(stamps) == 2 {
		meta.Step = stamps[1].Sub(stamps[0])
	}
	return meta, nil
}

func (t *TimescaleStore) Vars(ctx context.Context, site string) ([]string, error) {
	var names []string
	err := t.db.WithContext(ctx).Model(&SiteSample{}).
		Where("site = ?", site).
		Distinct().Order("name").Pluck("name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query variables: %w", err)
	}
	if len(names) == 0 {
		return nil, errs.Data("site %s has no samples", site)
	}
	return names, nil
}

func (t *TimescaleStore) Fetch(ctx context.Context, site string, vars []string) (*Table, error) {
	if len(vars) == 0 {
		return nil, errs.Data("no variables requested for site %s", site)
	}

	var recs []SiteSample
	err := t.db.WithContext(ctx).
		Where("site = ? AND name IN ?", site, vars).
		Order("time, name").Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	if len(recs) == 0 {
		return nil, errs.Data("site %s has no samples", site)
	}

	seen := make(map[string]bool, len(vars))
	samples := make([]sample, 0, len(recs))
	for _, r := range recs {
		v := math.NaN()
		if r.Value != nil {
			v = *r.Value
		}
		seen[r.Name] = true
		samples = append(samples, sample{t: r.Time, name: r.Name, value: v})
	}
	for _, v := range vars {
		if !seen[v] {
			return nil, errs.Data("site %s has no variable %q", site, v)
		}
	}

	tbl := pivot(site, vars, samples)
	if t.logger != nil {
		t.logger.Debugf("loaded %d rows x %d columns for site %s", tbl.Rows(), len(tbl.Names), site)
	}
	return tbl, nil
}

// Put inserts a table's samples in batches. The table must carry
// timestamps, which key each row.
func (t *TimescaleStore) Put(ctx context.Context, tbl *Table) error {
	if tbl.Site == "" {
		return errs.Data("table has no site name to archive under")
	}
	if tbl.Times == nil {
		return errs.Data("table for site %s has no timestamps to archive", tbl.Site)
	}

	recs := make([]SiteSample, 0, len(tbl.Names)*tbl.Rows())
	for j, name := range tbl.Names {
		for i, v := range tbl.Cols[j] {
			rec := SiteSample{Site: tbl.Site, Time: tbl.Times[i], Name: name}
			if !math.IsNaN(v) {
				value := v
				rec.Value = &value
			}
			recs = append(recs, rec)
		}
	}

	if err := t.db.WithContext(ctx).CreateInBatches(recs, 1000).Error; err != nil {
		return fmt.Errorf("failed to insert samples: %w", err)
	}
	return nil
}

func (t *TimescaleStore) Close() error {
	sqlDB, err := t.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
