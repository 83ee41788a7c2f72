package main

import (
	"fmt"
	"os"

	"github.com/guptarohit/asciigraph"
	"github.com/olekukonko/tablewriter"
	"github.com/partitiondb/core/hashinator"
	"github.com/spf13/cobra"
)

func newRingCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ring",
		Short: "Inspect a partition ring descriptor",
	}
	root.AddCommand(newRingDescribeCmd())
	return root
}

func newRingDescribeCmd() *cobra.Command {
	var histogram bool
	cmd := &cobra.Command{
		Use:   "describe <ring-dump-file>",
		Short: "Print a ring's token boundaries, optionally with a token-spread histogram",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRingDescribe(cmd, args[0], histogram)
		},
	}
	cmd.Flags().BoolVar(&histogram, "histogram", false, "print an ASCII bar chart of token-to-partition spread")
	return cmd
}

func runRingDescribe(cmd *cobra.Command, path string, histogram bool) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading ring dump: %w", err)
	}
	ring, err := hashinator.Decode(raw)
	if err != nil {
		return fmt.Errorf("decoding ring dump: %w", err)
	}

	out := cmd.OutOrStdout()
	w := tablewriter.NewWriter(out)
	w.SetHeader([]string{"token", "partition"})

	counts := map[int32]int{}
	maxPartition := int32(-1)
	for i := 0; i < ring.TokenCount(); i++ {
		token, partition := ring.TokenAt(i)
		w.Append([]string{fmt.Sprintf("%d", token), fmt.Sprintf("%d", partition)})
		counts[partition]++
		if partition > maxPartition {
			maxPartition = partition
		}
	}
	w.Render()
	fmt.Fprintf(out, "%d tokens across %d partitions\n", ring.TokenCount(), maxPartition+1)

	if !histogram || maxPartition < 0 {
		return nil
	}
	series := make([]float64, maxPartition+1)
	for p, c := range counts {
		series[p] = float64(c)
	}
	graph := asciigraph.Plot(series,
		asciigraph.Height(10),
		asciigraph.Caption("tokens per partition"))
	fmt.Fprintln(out, graph)
	return nil
}
