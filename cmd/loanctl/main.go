package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"loan-predictor/internal/client"
	"loan-predictor/internal/common"
	"loan-predictor/internal/features"
	"loan-predictor/internal/ml"
)

const usage = `usage: loanctl [flags] <command> [args]

commands:
  predict [file|-]   submit an application (JSON) and print the decision
  health             print server health
  info               print loaded model metadata
  align [file|-]     print the feature row the local model (-model) would receive

flags:
`

func main() {
	var (
		server    = flag.String("server", envOr(common.EnvServerURL, common.DefaultServerURL), "Prediction server base URL")
		timeout   = flag.Duration("timeout", 5*time.Second, "Request timeout")
		modelPath = flag.String("model", envOr(common.EnvModelPath, common.DefaultModelPath), "Model artifact for the align command")
		logLevel  = flag.String("log-level", "warn", "Log level: debug, info, warn, error")
	)
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	c := client.New(*server, *timeout)
	var out interface{}

	switch cmd := flag.Arg(0); cmd {
	case "predict":
		rec, err := readRecord(flag.Arg(1))
		if err != nil {
			log.Fatal().Err(err).Msg("invalid application")
		}
		out, err = c.Predict(ctx, rec)
		exitOnErr(err, "prediction failed")
	case "health":
		out, err = c.Health(ctx)
		exitOnErr(err, "health check failed")
	case "info":
		out, err = c.ModelInfo(ctx)
		exitOnErr(err, "model info failed")
	case "align":
		rec, err := readRecord(flag.Arg(1))
		if err != nil {
			log.Fatal().Err(err).Msg("invalid application")
		}
		out, err = alignLocally(*modelPath, rec)
		exitOnErr(err, "alignment failed")
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		flag.Usage()
		os.Exit(2)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatal().Err(err).Msg("failed to write output")
	}
}

type alignedColumn struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type alignResult struct {
	HasDeclaredSchema bool            `json:"has_declared_schema"`
	Columns           []alignedColumn `json:"columns"`
	Unmapped          []string        `json:"unmapped"`
	Decision          ml.Decision     `json:"decision"`
}

func alignLocally(modelPath string, rec features.ApplicationRecord) (alignResult, error) {
	model, err := ml.LoadModel(modelPath)
	if err != nil {
		return alignResult{}, err
	}
	defer model.Close()

	aligner := features.NewAligner(nil)
	p := ml.NewPredictor(model, aligner, nil)
	row := p.Row(rec)

	res := alignResult{
		HasDeclaredSchema: model.Capabilities().HasDeclaredSchema,
		Unmapped:          aligner.Unmapped(model.Schema()),
	}
	for i, name := range row.Columns {
		res.Columns = append(res.Columns, alignedColumn{Name: name, Value: row.Values[i].String()})
	}
	res.Decision, err = p.Predict(rec)
	return res, err
}

// readRecord decodes an application from path, or stdin when path is "" or "-".
// Missing fields are rejected the same way the server rejects them.
func readRecord(path string) (features.ApplicationRecord, error) {
	var r io.Reader = os.Stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return features.ApplicationRecord{}, err
		}
		defer f.Close()
		r = f
	}

	var req ml.PredictRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return features.ApplicationRecord{}, fmt.Errorf("decode application: %w", err)
	}
	fields, err := ml.NewRequestValidator().Validate(req)
	if err != nil {
		return features.ApplicationRecord{}, err
	}
	if len(fields) > 0 {
		return features.ApplicationRecord{}, fmt.Errorf("missing fields: %v", fields)
	}
	return req.Record(), nil
}

func exitOnErr(err error, msg string) {
	if err != nil {
		log.Error().Err(err).Msg(msg)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
