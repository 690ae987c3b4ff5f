package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sanonone/nodevec/pkg/graphio"
	"github.com/sanonone/nodevec/pkg/persistence"
	"github.com/sanonone/nodevec/pkg/trainer"
	"github.com/sanonone/nodevec/pkg/vecmath"
	"github.com/sanonone/nodevec/pkg/vocab"
)

func newLossCmd() *cobra.Command {
	var modelPath, edgesPath string

	cmd := &cobra.Command{
		Use:   "loss",
		Short: "Compute the order-1 loss of a model over an edge list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadModel(modelPath)
			if err != nil {
				return err
			}
			edges, err := graphio.ReadEdgeListFile(edgesPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%g\n", trainer.Loss(m, edges))
			return nil
		},
	}
	cmd.Flags().StringVarP(&modelPath, "model", "m", "", "model file")
	cmd.Flags().StringVarP(&edgesPath, "edges", "e", "", "edge list file")
	_ = cmd.MarkFlagRequired("model")
	_ = cmd.MarkFlagRequired("edges")
	return cmd
}

func newInspectCmd() *cobra.Command {
	var top int

	cmd := &cobra.Command{
		Use:   "inspect <model>",
		Short: "Print the settings and the first vocabulary entries of a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadModel(args[0])
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "nodes\t%d\n", m.VocabSize())
			fmt.Fprintf(w, "size\t%d\n", m.Size)
			fmt.Fprintf(w, "communities\t%d\n", m.K)
			fmt.Fprintf(w, "table_size\t%d\n", m.TableSize)
			fmt.Fprintf(w, "down_sampling\t%g\n", m.DownSampling)
			fmt.Fprintf(w, "seed\t%d\n", m.Seed)
			fmt.Fprintf(w, "kernel\t%s\n", vecmath.Implementation())

			if top > 0 {
				slots := m.Table.Frequencies(m.VocabSize())
				fmt.Fprintln(w, "\nid\tindex\tcount\tkeep_prob\ttable_slots\tnorm")
				n := 0
				m.Vocab.Ascend(func(e *vocab.Entry) bool {
					fmt.Fprintf(w, "%d\t%d\t%d\t%.4f\t%d\t%.4f\n",
						e.ID, e.Index, e.Count, e.SampleProbability, slots[e.Index], vecmath.Norm(m.Store.Row(e.Index)))
					n++
					return n < top
				})
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&top, "top", "t", 10, "number of nodes to list (0 disables the listing)")
	return cmd
}

func newExportCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export <model>",
		Short: "Write the node embeddings as little-endian float16",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadModel(args[0])
			if err != nil {
				return err
			}

			af, err := persistence.CreateAtomic(out)
			if err != nil {
				return err
			}
			defer af.Close()

			if err := m.Store.ExportFloat16(af); err != nil {
				return err
			}
			if err := af.Commit(); err != nil {
				return err
			}
			logger.Info("embeddings exported", "path", out, "nodes", m.VocabSize(), "size", m.Size)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "embeddings.f16", "output file")
	return cmd
}
