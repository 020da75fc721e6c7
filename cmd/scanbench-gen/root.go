package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/arkilian/scanbench/internal/partition"
)

// options holds the raw command line values.
type options struct {
	outDir   string
	files    int
	rows     int
	compress bool
	seed     int64
	jobs     int
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "scanbench-gen --out DIR",
		Short:         "Generate synthetic particle partitions",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			infos, err := generate(ctx, opts)
			if err != nil {
				log.Printf("Generation failed: %v", err)
				return err
			}

			var rows, bytes int64
			for _, info := range infos {
				rows += info.RowCount
				bytes += info.SizeBytes
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d partitions (%d rows, %d bytes) to %s\n",
				len(infos), rows, bytes, opts.outDir)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.outDir, "out", "o", "", "Output directory (required)")
	flags.IntVarP(&opts.files, "files", "n", 16, "Number of partitions to write")
	flags.IntVarP(&opts.rows, "rows", "r", 100000, "Rows per partition")
	flags.BoolVar(&opts.compress, "compress", false, "Write snappy framed partitions (.sz)")
	flags.Int64Var(&opts.seed, "seed", 1, "Base seed; partition i uses seed+i")
	flags.IntVarP(&opts.jobs, "jobs", "j", 4, "Number of partitions built concurrently")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

// generate builds opts.files partitions with at most opts.jobs in flight.
// Results are ordered by partition index.
func generate(ctx context.Context, opts *options) ([]*partition.Info, error) {
	if opts.files < 1 {
		return nil, fmt.Errorf("--files must be at least 1, got %d", opts.files)
	}
	if opts.rows < 1 {
		return nil, fmt.Errorf("--rows must be at least 1, got %d", opts.rows)
	}
	jobs := opts.jobs
	if jobs < 1 {
		jobs = 1
	}

	builder := partition.NewBuilder(opts.outDir)
	infos := make([]*partition.Info, opts.files)
	var done atomic.Int64
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i := 0; i < opts.files; i++ {
		i := i
		g.Go(func() error {
			info, err := builder.Build(gctx, partition.Spec{
				Rows:     opts.rows,
				Seed:     opts.seed + int64(i),
				Compress: opts.compress,
			})
			if err != nil {
				return fmt.Errorf("partition %d: %w", i, err)
			}
			infos[i] = info
			if n := done.Add(1); n%16 == 0 {
				log.Printf("gen: %d/%d partitions written", n, opts.files)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Printf("gen: %d partitions in %v", opts.files, time.Since(start).Round(time.Millisecond))
	return infos, nil
}
