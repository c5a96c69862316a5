// lag-assess sweeps lagged rolling means of a forcing variable across a set
// of flux tower sites and reports how strongly each window relates to the
// variable itself (self_lag) or to a target flux (xy_lag). One CSV file is
// written per site.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/empiricalmet/fluxlag/internal/log"
	"github.com/empiricalmet/fluxlag/internal/sitedata"
	"github.com/empiricalmet/fluxlag/pkg/feature"
	"github.com/empiricalmet/fluxlag/pkg/stats"
	"github.com/empiricalmet/fluxlag/pkg/window"
)

const version = "1.0-" + runtime.GOOS + "/" + runtime.GOARCH

func main() {
	storeSpec := flag.String("store", "csv:./sites", "Site store: csv:<dir>, sqlite:<file>, or a postgres:// connection string")
	mode := flag.String("mode", "self_lag", "Sweep mode: 'self_lag' for the window-by-window dependence matrix, 'xy_lag' for windows against a target flux")
	driver := flag.String("var", "SWdown", "Forcing variable to lag")
	target := flag.String("target", "Qle", "Target flux variable (xy_lag mode)")
	metricName := flag.String("metric", "corr", "Association metric: 'corr' or 'mutual_info'")
	siteList := flag.String("sites", "", "Comma-separated site names (default: every site in the store)")
	windowList := flag.String("windows", "", "Comma-separated lag windows (default: the standard 30min..365d sweep)")
	step := flag.Duration("step", 30*time.Minute, "Sampling interval assumed when the store records none")
	outDir := flag.String("out", ".", "Directory for per-site CSV output")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("lag-assess %s\n", version)
		os.Exit(0)
	}

	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if *mode != "self_lag" && *mode != "xy_lag" {
		log.Errorf("Unknown mode %q: use 'self_lag' or 'xy_lag'", *mode)
		os.Exit(1)
	}

	metric, err := stats.ParseMetric(*metricName)
	if err != nil {
		log.Errorf("Failed to parse metric: %v", err)
		os.Exit(1)
	}

	windows := window.StandardLags()
	if *windowList != "" {
		windows = splitList(*windowList)
	}
	if _, err := window.ParseAll(windows); err != nil {
		log.Errorf("Failed to parse lag windows: %v", err)
		os.Exit(1)
	}

	ctx := context.Background()
	store, err := sitedata.Open(*storeSpec, *step, log.GetSugaredLogger())
	if err != nil {
		log.Errorf("Failed to open site store: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	sites := splitList(*siteList)
	if len(sites) == 0 {
		sites, err = store.Sites(ctx)
		if err != nil {
			log.Errorf("Failed to list sites: %v", err)
			os.Exit(1)
		}
	}
	if len(sites) == 0 {
		log.Errorf("No sites found in store %s", *storeSpec)
		os.Exit(1)
	}

	log.Infof("assessing %d sites: mode=%s var=%s metric=%s windows=%d",
		len(sites), *mode, *driver, *metricName, len(windows))

	// Sites are independent: read-only inputs, one output file each.
	var wg sync.WaitGroup
	var completed atomic.Int64
	for _, site := range sites {
		wg.Add(1)
		go func(site string) {
			defer wg.Done()
			out, err := assessSite(ctx, store, site, *mode, *driver, *target,
				metric, *metricName, windows, *step, *outDir)
			if err != nil {
				log.Errorf("site %s: %v", site, err)
				return
			}
			completed.Add(1)
			log.Infof("site %s: wrote %s", site, out)
		}(site)
	}
	wg.Wait()

	log.Infof("completed %d of %d sites", completed.Load(), len(sites))
	if completed.Load() == 0 {
		os.Exit(1)
	}
}

// assessSite runs one sweep for one site and writes its CSV, returning the
// output path.
func assessSite(ctx context.Context, store sitedata.Store, site, mode, driver, target string,
	metric stats.Metric, metricName string, windows []string, fallback time.Duration, outDir string) (string, error) {

	step := fallback
	if meta, err := store.Meta(ctx, site); err == nil && meta.Step > 0 {
		step = meta.Step
	}

	vars := []string{driver}
	if mode == "xy_lag" {
		vars = append(vars, target)
	}
	tbl, err := store.Fetch(ctx, site, vars)
	if err != nil {
		return "", err
	}

	// Lead with the instantaneous column so the zero-lag case anchors the
	// sweep.
	labels := append([]string{feature.Current}, windows...)
	b := feature.Builder{Step: step}
	fs, err := b.Lagged(driver, tbl.Col(driver), labels)
	if err != nil {
		return "", err
	}

	path := filepath.Join(outDir, fmt.Sprintf("%s_%s_%s_%s.csv", site, mode, driver, metricName))
	switch mode {
	case "self_lag":
		mx, err := stats.SelfLagMatrix(metric, fs)
		if err != nil {
			return "", err
		}
		return path, writeMatrixCSV(path, fs.Names(), mx)
	default:
		points, err := stats.CrossLagSeries(metric, fs, tbl.Col(target))
		if err != nil {
			return "", err
		}
		return path, writeSeriesCSV(path, target, points)
	}
}

func writeMatrixCSV(path string, names []string, m *mat.Dense) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(append([]string{"window"}, names...)); err != nil {
		return err
	}
	for i, name := range names {
		record := make([]string, 0, len(names)+1)
		record = append(record, name)
		for j := range names {
			record = append(record, fmt.Sprintf("%.6f", m.At(i, j)))
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return w.Error()
}

func writeSeriesCSV(path, target string, points []stats.SweepPoint) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"window", "score_vs_" + target}); err != nil {
		return err
	}
	for _, p := range points {
		if err := w.Write([]string{p.Label, fmt.Sprintf("%.6f", p.Score)}); err != nil {
			return err
		}
	}
	return w.Error()
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
