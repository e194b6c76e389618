package main

import (
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/vkngwrapper/blockpool/internal/config"
	"github.com/vkngwrapper/blockpool/internal/script"
	"golang.org/x/exp/slog"
)

var (
	inspectAllocs []int
)

func init() {
	cmd := newInspectCmd()
	cmd.Flags().IntSliceVar(&inspectAllocs, "alloc", nil, "Element counts to allocate before inspecting")
	rootCmd.AddCommand(cmd)
}

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show pool statistics",
		Long: `The inspect command builds a pool, makes the requested allocations in order,
and shows statistics about the resulting block layout.

Example:
  poolrun inspect
  poolrun inspect --alloc 5,3,3
  poolrun inspect --alloc 5,3,3 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return inspectPool(cmd.OutOrStdout(), settings, logger, inspectAllocs)
		},
	}
	return cmd
}

func inspectPool(out io.Writer, cfg *config.Config, logger *slog.Logger, counts []int) (err error) {
	p, err := newPool(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.CombineErrors(err, p.Close())
	}()

	for _, count := range counts {
		_, err = p.Allocate(count)
		if err != nil {
			return errors.Wrapf(err, "failed to allocate %d elements", count)
		}
	}

	if cfg.Output.JSON {
		return script.WriteJSON(out, p)
	}

	stats := p.DetailedStatistics()
	fmt.Fprintf(out, "Capacity:      %d bytes\n", p.Capacity())
	fmt.Fprintf(out, "Element:       %s (%d bytes)\n", cfg.Pool.Element, p.ElementSize())
	fmt.Fprintf(out, "Blocks:        %d (%d allocated, %d free)\n", stats.BlockCount, stats.AllocationCount, stats.FreeRangeCount)
	fmt.Fprintf(out, "Allocated:     %d bytes\n", stats.AllocationBytes)
	fmt.Fprintf(out, "Free:          %d bytes\n", stats.FreeBytes())
	fmt.Fprintf(out, "Overhead:      %d bytes\n", stats.OverheadBytes)
	if stats.FreeRangeCount > 0 {
		fmt.Fprintf(out, "Largest free:  %d bytes\n", stats.FreeRangeSizeMax)
	}
	fmt.Fprint(out, "Headers:       ")
	return script.WriteHeaders(out, p.Headers())
}
