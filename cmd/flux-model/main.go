// flux-model fits an empirical flux model at a training site, predicts a
// target flux at an evaluation site (or a held-out tail of the training
// site), and reports prediction skill alongside a per-sample CSV.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/empiricalmet/fluxlag/internal/log"
	"github.com/empiricalmet/fluxlag/internal/sitedata"
	"github.com/empiricalmet/fluxlag/pkg/empirical"
)

const version = "1.0-" + runtime.GOOS + "/" + runtime.GOARCH

func main() {
	storeSpec := flag.String("store", "csv:./sites", "Site store: csv:<dir>, sqlite:<file>, or a postgres:// connection string")
	modelName := flag.String("model", "1lin", "Model: a preset name, a library name, or a path to a .yaml spec")
	library := flag.String("library", "", "Directory of named .yaml model specs")
	trainSite := flag.String("train-site", "", "Site whose record the model is fitted on")
	evalSite := flag.String("eval-site", "", "Site to predict at (default: held-out tail of the training site)")
	target := flag.String("target", "Qle", "Target flux variable")
	split := flag.Float64("split", 0.7, "Train fraction when evaluating on the training site")
	step := flag.Duration("step", 30*time.Minute, "Sampling interval assumed when the store records none")
	outDir := flag.String("out", ".", "Directory for CSV output")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("flux-model %s\n", version)
		os.Exit(0)
	}

	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if *trainSite == "" {
		log.Errorf("Missing -train-site: name the site to fit on")
		os.Exit(1)
	}

	ctx := context.Background()
	store, err := sitedata.Open(*storeSpec, *step, log.GetSugaredLogger())
	if err != nil {
		log.Errorf("Failed to open site store: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	sampleStep := *step
	if meta, err := store.Meta(ctx, *trainSite); err == nil && meta.Step > 0 {
		sampleStep = meta.Step
	}

	model, err := resolveModel(*modelName, sampleStep, *library)
	if err != nil {
		log.Errorf("Failed to build model: %v", err)
		os.Exit(1)
	}

	run := evaluation{
		store:   store,
		model:   model,
		target:  *target,
		train:   *trainSite,
		eval:    *evalSite,
		split:   *split,
		outDir:  *outDir,
		started: time.Now(),
	}
	if err := run.execute(ctx); err != nil {
		log.Errorf("Evaluation failed: %v", err)
		os.Exit(1)
	}
}

// evaluation holds one fit-and-predict run.
type evaluation struct {
	store   sitedata.Store
	model   *empirical.Descriptor
	target  string
	train   string
	eval    string
	split   float64
	outDir  string
	started time.Time
}

func (e *evaluation) execute(ctx context.Context) error {
	vars := e.model.ForcingVars()
	fetch := append(append([]string(nil), vars...), e.target)

	trainTbl, err := e.store.Fetch(ctx, e.train, fetch)
	if err != nil {
		return err
	}

	var (
		trainX, evalX mat.Matrix
		trainY, obs   []float64
		evalTimes     []time.Time
		evalName      string
	)

	if e.eval == "" || e.eval == e.train {
		// Chronological split so lagged models see a contiguous record.
		rows := trainTbl.Rows()
		if e.split <= 0 || e.split >= 1 {
			return fmt.Errorf("train fraction %v is out of range (0, 1)", e.split)
		}
		nTrain := int(float64(rows) * e.split)
		if nTrain < 1 || nTrain >= rows {
			return fmt.Errorf("%d rows leave no held-out tail at train fraction %v", rows, e.split)
		}

		full := forcingMatrix(trainTbl, vars)
		k := len(vars)
		trainX = full.Slice(0, nTrain, 0, k)
		evalX = full.Slice(nTrain, rows, 0, k)
		y := trainTbl.Col(e.target)
		trainY = y[:nTrain]
		obs = y[nTrain:]
		if trainTbl.Times != nil {
			evalTimes = trainTbl.Times[nTrain:]
		}
		evalName = e.train
	} else {
		evalTbl, err := e.store.Fetch(ctx, e.eval, fetch)
		if err != nil {
			return err
		}
		trainX = forcingMatrix(trainTbl, vars)
		trainY = trainTbl.Col(e.target)
		evalX = forcingMatrix(evalTbl, vars)
		obs = evalTbl.Col(e.target)
		evalTimes = evalTbl.Times
		evalName = e.eval
	}

	nTrainRows, _ := trainX.Dims()
	log.Infof("fitting %s on %s: %d rows, %d forcings", e.model.Name(), e.train, nTrainRows, len(vars))
	if err := e.model.Fit(trainX, trainY); err != nil {
		return err
	}

	preds, err := e.model.Predict(evalX)
	if err != nil {
		return err
	}

	predPath := filepath.Join(e.outDir, fmt.Sprintf("%s_%s_predictions.csv", evalName, e.model.Name()))
	if err := writePredictionsCSV(predPath, e.target, evalTimes, obs, preds); err != nil {
		return err
	}

	n, rmse, mae, r2 := skillStats(obs, preds)
	skillPath := filepath.Join(e.outDir, fmt.Sprintf("%s_%s_skill.csv", evalName, e.model.Name()))
	if err := writeSkillCSV(skillPath, e.model.Name(), e.train, evalName, e.target, n, rmse, mae, r2); err != nil {
		return err
	}

	fmt.Printf("Flux Model Evaluation\n")
	fmt.Printf("=====================\n\n")
	fmt.Printf("  Model:      %s\n", e.model.Name())
	fmt.Printf("  Train site: %s (%d rows)\n", e.train, nTrainRows)
	fmt.Printf("  Eval site:  %s (%d rows)\n", evalName, len(obs))
	fmt.Printf("  Target:     %s\n\n", e.target)
	fmt.Printf("Skill over %d complete pairs:\n", n)
	fmt.Printf("  RMSE: %.4f\n", rmse)
	fmt.Printf("  MAE:  %.4f\n", mae)
	fmt.Printf("  R²:   %.4f\n\n", r2)
	fmt.Printf("Predictions written to: %s\n", predPath)
	fmt.Printf("Skill summary written to: %s\n", skillPath)
	log.Infof("evaluation finished in %s", time.Since(e.started).Round(time.Millisecond))
	return nil
}

// resolveModel builds a Descriptor from a spec file path, a preset name, or
// a model library name.
func resolveModel(name string, step time.Duration, library string) (*empirical.Descriptor, error) {
	if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
		data, err := os.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read model spec: %w", err)
		}
		spec, err := empirical.ParseModelSpec(data)
		if err != nil {
			return nil, err
		}
		if spec.Name == "" {
			spec.Name = strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
		}
		return empirical.Build(*spec, step)
	}
	return empirical.GetModel(name, step, library)
}

// forcingMatrix packs the named columns of a table into a design matrix,
// one column per forcing variable in order.
func forcingMatrix(tbl *sitedata.Table, vars []string) *mat.Dense {
	rows := tbl.Rows()
	m := mat.NewDense(rows, len(vars), nil)
	for j, v := range vars {
		col := tbl.Col(v)
		for i := 0; i < rows; i++ {
			m.Set(i, j, col[i])
		}
	}
	return m
}

// skillStats summarizes prediction skill over the rows where both the
// observation and the prediction are finite.
func skillStats(obs, preds []float64) (n int, rmse, mae, r2 float64) {
	var sumObs float64
	for i := range obs {
		if finitePair(obs[i], preds[i]) {
			n++
			sumObs += obs[i]
		}
	}
	if n == 0 {
		return 0, math.NaN(), math.NaN(), math.NaN()
	}
	meanObs := sumObs / float64(n)

	var ssRes, ssTot, sumAbs float64
	for i := range obs {
		if !finitePair(obs[i], preds[i]) {
			continue
		}
		diff := obs[i] - preds[i]
		ssRes += diff * diff
		sumAbs += math.Abs(diff)
		ssTot += (obs[i] - meanObs) * (obs[i] - meanObs)
	}

	rmse = math.Sqrt(ssRes / float64(n))
	mae = sumAbs / float64(n)
	if ssTot == 0 {
		r2 = 0
	} else {
		r2 = 1 - ssRes/ssTot
	}
	return n, rmse, mae, r2
}

func finitePair(a, b float64) bool {
	return !math.IsNaN(a) && !math.IsInf(a, 0) && !math.IsNaN(b) && !math.IsInf(b, 0)
}

func writePredictionsCSV(path, target string, times []time.Time, obs, preds []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{"index", "observed_" + target, "predicted_" + target, "residual"}
	if times != nil {
		header[0] = "time"
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for i := range preds {
		var stamp string
		if times != nil {
			stamp = times[i].Format(time.RFC3339)
		} else {
			stamp = fmt.Sprintf("%d", i)
		}
		record := []string{
			stamp,
			fmt.Sprintf("%.4f", obs[i]),
			fmt.Sprintf("%.4f", preds[i]),
			fmt.Sprintf("%.4f", obs[i]-preds[i]),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return w.Error()
}

func writeSkillCSV(path, model, trainSite, evalSite, target string, n int, rmse, mae, r2 float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"model", "train_site", "eval_site", "target", "n", "rmse", "mae", "r2"}); err != nil {
		return err
	}
	record := []string{
		model, trainSite, evalSite, target,
		fmt.Sprintf("%d", n),
		fmt.Sprintf("%.4f", rmse),
		fmt.Sprintf("%.4f", mae),
		fmt.Sprintf("%.4f", r2),
	}
	if err := w.Write(record); err != nil {
		return err
	}
	return w.Error()
}
