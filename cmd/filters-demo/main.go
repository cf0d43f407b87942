// filters-demo builds a single Bloom filter, inserts a few items and prints
// what the filter reports about them:
//
//	$ filters-demo --rate 0.1 --capacity 100
//	bit_count: 5760
//	hash_count: 4
//	contains(a): true
//	contains(b): true
//	contains(c): true
//	contains(z): false
//
// Every inserted item is queried, followed by "z", which was not inserted
// unless given on the command line. Its answer may be a false positive.
package main

import (
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"filters.lopezb.com/internal/filters/bloom"
)

const probe = "z"

type demoOptions struct {
	rate      float64
	capacity  uint64
	seed      uint64
	seeded    bool
	algorithm string
	items     []string
}

func run(w io.Writer, opts demoOptions) error {
	filterOpts := []bloom.Option{bloom.WithAlgorithm(opts.algorithm)}
	if opts.seeded {
		filterOpts = append(filterOpts, bloom.WithSeed(opts.seed))
	}

	filter, err := bloom.New(opts.rate, opts.capacity, filterOpts...)
	if err != nil {
		return err
	}

	for _, item := range opts.items {
		filter.Put(bloom.String(item))
	}

	fmt.Fprintf(w, "bit_count: %d\n", filter.BitCount())
	fmt.Fprintf(w, "hash_count: %d\n", filter.HashCount())

	queries := opts.items
	if !slices.Contains(queries, probe) {
		queries = append(slices.Clone(queries), probe)
	}
	for _, item := range queries {
		fmt.Fprintf(w, "contains(%s): %t\n", item, filter.Contains(bloom.String(item)))
	}

	return nil
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := demoOptions{}

	cmd := &cobra.Command{
		Use:           "filters-demo [items...]",
		Short:         "Insert items into a Bloom filter and query them",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.items = args
			if len(opts.items) == 0 {
				opts.items = []string{"a", "b", "c"}
			}
			opts.seeded = cmd.Flags().Changed("seed")
			return run(out, opts)
		},
	}

	flags := cmd.Flags()
	flags.Float64Var(&opts.rate, "rate", 0.1, "Target false positive rate, in (0, 1)")
	flags.Uint64Var(&opts.capacity, "capacity", 100, "Expected number of items")
	flags.Uint64Var(&opts.seed, "seed", 0, "Seed for reproducible hash seeds (random when unset)")
	flags.StringVar(&opts.algorithm, "algorithm", bloom.AlgorithmXXHash, fmt.Sprintf("Hash algorithm %v", bloom.Algorithms()))

	return cmd
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
