package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/sanonone/nodevec/pkg/config"
	"github.com/sanonone/nodevec/pkg/graphio"
	"github.com/sanonone/nodevec/pkg/model"
	"github.com/sanonone/nodevec/pkg/trainer"
)

type trainFlags struct {
	configPath  string
	edgesPath   string
	degreesPath string
	labelsPath  string
	outDir      string
	name        string
	workers     int
	iterations  int
}

func newTrainCmd() *cobra.Command {
	var f trainFlags

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Build a model from an edge list and train it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrain(cmd, f)
		},
	}

	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "YAML configuration file")
	cmd.Flags().StringVarP(&f.edgesPath, "edges", "e", "", "edge list file (\"source target\" per line)")
	cmd.Flags().StringVar(&f.degreesPath, "degrees", "", "degree file; computed from the edge list when empty")
	cmd.Flags().StringVar(&f.labelsPath, "labels", "", "ground-truth community labels (\"node label\" per line)")
	cmd.Flags().StringVarP(&f.outDir, "out-dir", "o", ".", "directory of the model file")
	cmd.Flags().StringVarP(&f.name, "name", "n", "model", "model name; the file is <out-dir>/<name>.bin")
	cmd.Flags().IntVarP(&f.workers, "workers", "w", 0, "override the number of workers")
	cmd.Flags().IntVarP(&f.iterations, "iterations", "i", 0, "override the number of passes over the edges")
	_ = cmd.MarkFlagRequired("edges")

	return cmd
}

func runTrain(cmd *cobra.Command, f trainFlags) error {
	cfg, err := config.LoadConfig(f.configPath)
	if err != nil {
		return err
	}
	if f.workers > 0 {
		cfg.Workers = f.workers
	}
	if f.iterations > 0 {
		cfg.Iterations = f.iterations
	}

	edges, err := graphio.ReadEdgeListFile(f.edgesPath)
	if err != nil {
		return err
	}
	logger.Info("edge list loaded", "path", f.edgesPath, "edges", edges.Len())

	degrees := graphio.Degrees(edges)
	if f.degreesPath != "" {
		if degrees, err = graphio.ReadDegreesFile(f.degreesPath); err != nil {
			return err
		}
	}

	var truth model.GroundTruth
	if f.labelsPath != "" {
		if truth, err = graphio.ReadGroundTruthFile(f.labelsPath); err != nil {
			return err
		}
		logger.Info("ground truth loaded", "nodes", len(truth.Labels), "communities", truth.K)
	}

	if cfg.MetricsAddr != "" {
		stop := serveMetrics(cfg.MetricsAddr)
		defer stop()
	}

	m, err := model.New(degrees, truth, cfg.ModelOptions(), logger)
	if err != nil {
		return err
	}

	t := trainer.New(cfg.TrainerOptions(), logger)
	stats, err := t.Train(m, edges, cfg.ChunkSize, cfg.Iterations)
	if err != nil {
		return err
	}

	if err := m.SaveFile(f.outDir, f.name); err != nil {
		return fmt.Errorf("failed to save model: %w", err)
	}
	logger.Info("model saved", "path", model.Path(f.outDir, f.name))

	fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d/%d edges kept, %d processed in %s (%.0f edges/s)\n",
		stats.RunID, stats.Kept, stats.Raw, stats.Processed,
		stats.Elapsed.Round(time.Millisecond), stats.Throughput)
	return nil
}

// serveMetrics exposes the default Prometheus registry on addr and returns
// a function that shuts the listener down.
func serveMetrics(addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		logger.Info("metrics endpoint listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("metrics server shutdown", "error", err)
		}
	}
}
