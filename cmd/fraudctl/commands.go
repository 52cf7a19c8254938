package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/davidleathers/fraud-scoring-service/internal/domain/transaction"
	"github.com/davidleathers/fraud-scoring-service/internal/infrastructure/config"
	"github.com/davidleathers/fraud-scoring-service/internal/infrastructure/storage"
	"github.com/davidleathers/fraud-scoring-service/internal/infrastructure/telemetry"
	"github.com/davidleathers/fraud-scoring-service/internal/service/features"
	"github.com/davidleathers/fraud-scoring-service/internal/service/model"
	"github.com/davidleathers/fraud-scoring-service/internal/service/scoring"
)

// env is what every subcommand needs: the config and an open store
type env struct {
	cfg   *config.Config
	store storage.Store
}

func (e *env) merchants() features.MerchantBucketer {
	return features.NewMerchantBucketer(e.cfg.Model.MerchantHashSeed)
}

func openEnv(ctx context.Context, cmd *cli.Command) (*env, error) {
	cfg, err := config.LoadFile(cmd.String(configFlag.Name))
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	zapLogger, err := telemetry.NewZapLogger(cmd.String(logLevelFlag.Name), false)
	if err != nil {
		return nil, err
	}

	store, err := storage.New(ctx, cfg, zapLogger.Named("storage"))
	if err != nil {
		return nil, fmt.Errorf("opening %s artifact store: %w", cfg.Model.Store, err)
	}
	return &env{cfg: cfg, store: store}, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type bootstrapOutput struct {
	Generation string                `json:"generation"`
	Kind       string                `json:"kind"`
	Store      string                `json:"store"`
	Report     *model.TrainingReport `json:"report"`
}

func bootstrapCmd(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "bootstrap",
		Usage: "Train a model on synthetic data and persist it to the configured store",
		Flags: []cli.Flag{
			&cli.Uint64Flag{Name: "seed", Usage: "Override model.bootstrap.seed"},
			&cli.IntFlag{Name: "samples", Usage: "Override model.bootstrap.samples"},
			&cli.StringFlag{Name: "algorithm", Usage: "Override model.bootstrap.algorithm [random_forest, logistic_regression]"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := openEnv(ctx, cmd)
			if err != nil {
				return err
			}
			defer e.store.Close()

			mc := e.cfg.Model
			if cmd.IsSet("seed") {
				mc.Bootstrap.Seed = cmd.Uint64("seed")
			}
			if cmd.IsSet("samples") {
				mc.Bootstrap.Samples = cmd.Int("samples")
			}
			if cmd.IsSet("algorithm") {
				mc.Bootstrap.Algorithm = cmd.String("algorithm")
			}

			a, err := model.NewTrainer(model.TrainingConfigFrom(mc)).Train(ctx)
			if err != nil {
				return err
			}
			blobs, err := a.Encode()
			if err != nil {
				return err
			}
			if err := e.store.Save(ctx, blobs); err != nil {
				return fmt.Errorf("persisting model: %w", err)
			}
			slog.InfoContext(ctx, "model persisted", "generation", a.Generation, "store", e.store.Backend())

			return writeJSON(stdout, bootstrapOutput{
				Generation: a.Generation,
				Kind:       a.Classifier.Kind(),
				Store:      e.store.Backend(),
				Report:     a.Report,
			})
		},
	}
}

type inspectOutput struct {
	Generation   string                `json:"generation"`
	Kind         string                `json:"kind"`
	Store        string                `json:"store"`
	Schema       []string              `json:"schema"`
	MerchantHash string                `json:"merchant_hash,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
	Report       *model.TrainingReport `json:"report,omitempty"`
}

func inspectCmd(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "Print the model held by the configured store",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := openEnv(ctx, cmd)
			if err != nil {
				return err
			}
			defer e.store.Close()

			a, err := model.NewRegistry(e.store, nil, model.WithMerchantBucketer(e.merchants())).ReadStore(ctx)
			if err != nil {
				return err
			}
			return writeJSON(stdout, inspectOutput{
				Generation:   a.Generation,
				Kind:         a.Classifier.Kind(),
				Store:        e.store.Backend(),
				Schema:       a.Schema.Clone(),
				MerchantHash: a.MerchantHash,
				CreatedAt:    a.CreatedAt,
				Report:       a.Report,
			})
		},
	}
}

type scoreOutput struct {
	*scoring.ScoreResult
	Generation string `json:"generation"`
}

func scoreCmd(stdin io.Reader, stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "score",
		Usage:     "Score a JSON transaction against the stored model",
		ArgsUsage: "[payload.json]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			in := stdin
			if path := cmd.Args().First(); path != "" && path != "-" {
				f, err := os.Open(path)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			payload, err := transaction.Decode(in)
			if err != nil {
				return err
			}

			e, err := openEnv(ctx, cmd)
			if err != nil {
				return err
			}
			defer e.store.Close()

			registry := model.NewRegistry(e.store, nil, model.WithMerchantBucketer(e.merchants()))
			if _, err := registry.Reload(ctx); err != nil {
				return fmt.Errorf("no usable model in %s store: %w", e.store.Backend(), err)
			}

			history, err := features.NewHistoryProvider(e.cfg.Model.History)
			if err != nil {
				return err
			}
			extractor := features.NewExtractor(history, features.WithMerchantBucketer(e.merchants()))

			result, err := scoring.NewService(registry, extractor).Score(ctx, payload)
			if err != nil {
				return err
			}
			return writeJSON(stdout, scoreOutput{ScoreResult: result, Generation: result.ModelGeneration})
		},
	}
}
