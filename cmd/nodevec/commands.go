package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sanonone/nodevec/pkg/model"
)

// logger is configured by the root command before any subcommand runs.
var logger = slog.New(slog.NewTextHandler(os.Stderr, nil))

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "nodevec",
		Short: "Train and inspect order-1 node embeddings",
		Long: `nodevec learns a dense vector per node of a graph from its edge list
using skip-gram with negative sampling, and stores the result as a
checksummed model file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			slog.SetDefault(logger)
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newTrainCmd(),
		newLossCmd(),
		newInspectCmd(),
		newExportCmd(),
	)
	return root
}

// splitModelPath turns "dir/name.bin" into the (dir, name) pair used by the
// model package.
func splitModelPath(path string) (string, string) {
	return filepath.Dir(path), strings.TrimSuffix(filepath.Base(path), model.FileExt)
}

func loadModel(path string) (*model.Model, error) {
	dir, name := splitModelPath(path)
	return model.LoadFile(dir, name, logger)
}
