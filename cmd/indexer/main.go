package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ShreyaJV11/support-chatbot/internal/bootstrap"
	"github.com/ShreyaJV11/support-chatbot/internal/evaluation"
	"github.com/ShreyaJV11/support-chatbot/internal/kb"
	"github.com/ShreyaJV11/support-chatbot/internal/matching"
	"github.com/ShreyaJV11/support-chatbot/pkg/config"
	appLogger "github.com/ShreyaJV11/support-chatbot/pkg/logger"
)

func main() {
	importPath := flag.String("import", "", "JSON file of knowledge entries to upsert before indexing")
	evaluatePath := flag.String("evaluate", "", "JSON file of labelled questions to replay after indexing")
	timeout := flag.Duration("timeout", 30*time.Minute, "overall time limit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	if err := run(ctx, cfg, *importPath, *evaluatePath); err != nil {
		appLogger.Error("Indexing failed", zap.Error(err))
		appLogger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, importPath, evaluatePath string) error {
	stores, err := bootstrap.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer stores.Close()

	embedder := bootstrap.Embedder(cfg, stores.Redis)
	indexer := kb.NewIndexer(stores.Store, embedder, stores.Sink)

	if importPath != "" {
		entries, err := kb.LoadFile(importPath)
		if err != nil {
			return err
		}
		n, err := indexer.Import(ctx, entries)
		if err != nil {
			return err
		}
		appLogger.Info("Import complete", zap.String("file", importPath), zap.Int("indexed", n))
	}

	n, err := indexer.Reindex(ctx)
	if err != nil {
		return err
	}
	appLogger.Info("Reindex complete", zap.Int("indexed", n))

	if evaluatePath == "" {
		return nil
	}
	return evaluate(ctx, cfg, stores, embedder, evaluatePath)
}

func evaluate(ctx context.Context, cfg *config.Config, stores *bootstrap.Stores, embedder matching.Embedder, path string) error {
	items, err := evaluation.LoadDataset(path)
	if err != nil {
		return err
	}

	threshold, err := matching.NewThreshold(cfg.Matching.Threshold)
	if err != nil {
		return err
	}
	report, err := evaluation.NewEvaluator(bootstrap.Matcher(cfg, stores, embedder, threshold)).Evaluate(ctx, items)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
