// Command wordrank-server boots the word-guessing game's core: loads
// configuration, initializes the Vocabulary Cache, and serves the
// Session Router until an interrupt or SIGTERM arrives.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/kydenul/wordrank/internal/config"
	"github.com/kydenul/wordrank/internal/logging"
	"github.com/kydenul/wordrank/internal/oracle"
	"github.com/kydenul/wordrank/internal/registry"
	"github.com/kydenul/wordrank/internal/transport"
	"github.com/kydenul/wordrank/internal/vocab"
	"github.com/kydenul/wordrank/internal/workerpool"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML/JSON/TOML config file (optional)")
	lemmaPath := flag.String("lemma-path", "", "path to the lemma/POS sidecar file (optional)")
	flag.Parse()

	logger := logging.NewProductionLogger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Errorf("failed to load configuration: %v", err)
		os.Exit(1)
	}

	// vocab_path is the word list file; embedding_model_name selects which
	// model's sidecars to load alongside it, in the same directory
	// (<model>.vec, <model>.lemma.tsv), per spec.md §6.
	vocabDir := filepath.Dir(cfg.VocabPath)
	vectorPath := filepath.Join(vocabDir, fmt.Sprintf("%s.vec", cfg.EmbeddingModelName))
	lemmaSidecar := *lemmaPath
	if lemmaSidecar == "" {
		lemmaSidecar = filepath.Join(vocabDir, fmt.Sprintf("%s.lemma.tsv", cfg.EmbeddingModelName))
	}

	orc, err := oracle.LoadFileOracle(vectorPath, lemmaSidecar, logger)
	if err != nil {
		logger.Errorf("failed to load embedding oracle: %v", err)
		os.Exit(1)
	}

	// The Vocabulary Cache is not built here: it's deferred to the first
	// room join, per spec.md §4.5, so the joining session gets a
	// room_loading event instead of the process blocking at bootstrap.
	loader := vocab.NewLoader(cfg.VocabPath, orc, cfg.MeaningfulPoolSize, cfg.VocabRankSize, cfg.MemoryLimitBytes, logger)

	pool := workerpool.New(cfg.WorkerPoolSize)
	defer pool.Close()

	srv := transport.New(cfg, logger)
	reg := registry.New(loader, orc, pool, srv, logger)
	srv.SetRegistry(reg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Errorf("server stopped unexpectedly: %v", err)
			os.Exit(1)
		}
	case sig := <-stop:
		logger.Infof("received signal, shutting down, signal: %s", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Errorf("graceful shutdown failed: %v", err)
			os.Exit(1)
		}
	}

	logger.Info("server stopped")
}
