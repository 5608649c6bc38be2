package main

import (
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"github.com/elayo/pagepool/memsrc"
	"github.com/elayo/pagepool/pool"
)

var (
	benchPageSize int
	benchMaxOrder int
	benchOps      int
	benchMinSize  int
	benchMaxSize  int
	benchDirect   bool
)

func init() {
	cmd := newBenchCmd()
	cmd.Flags().IntVar(&benchPageSize, "page-size", 8192, "Chunk page size in bytes")
	cmd.Flags().IntVar(&benchMaxOrder, "max-order", 11, "log2(chunkSize/pageSize)")
	cmd.Flags().IntVar(&benchOps, "ops", 100000, "Number of allocate/free operations")
	cmd.Flags().IntVar(&benchMinSize, "min-size", 16, "Minimum request size in bytes")
	cmd.Flags().IntVar(&benchMaxSize, "max-size", 65536, "Maximum request size in bytes")
	cmd.Flags().BoolVar(&benchDirect, "direct", false, "Use mmap-backed chunks instead of heap")
	rootCmd.AddCommand(cmd)
}

func newBenchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bench",
		Short: "Run a synthetic allocate/free workload against an arena",
		Long: `bench drives a fixed-seed random mix of allocate and free calls
against a freshly constructed arena and reports throughput and the final
chunk count.

Example:
  poolctl bench --ops 500000 --max-size 4096
  poolctl bench --direct --page-size 4096`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench()
		},
	}
}

type benchResult struct {
	Ops        int           `json:"ops"`
	Duration   time.Duration `json:"duration"`
	OpsPerSec  float64       `json:"ops_per_sec"`
	Chunks     int           `json:"chunks"`
	AllocCalls int           `json:"alloc_calls"`
	FreeCalls  int           `json:"free_calls"`
	LastSlab   string        `json:"last_slab,omitempty"`
}

func runBench() error {
	var src memsrc.Source
	if benchDirect {
		src = memsrc.Direct{}
	} else {
		src = memsrc.Heap{}
	}

	arena := pool.NewArena(benchPageSize, benchMaxOrder, src)
	rng := rand.New(rand.NewSource(1))

	var live []pool.Region
	start := time.Now()
	for i := 0; i < benchOps; i++ {
		if len(live) > 0 && rng.Intn(2) == 0 {
			idx := rng.Intn(len(live))
			r := live[idx]
			if err := arena.Free(r); err != nil {
				return err
			}
			live[idx] = live[len(live)-1]
			live = live[:len(live)-1]
			continue
		}
		size := benchMinSize + rng.Intn(benchMaxSize-benchMinSize+1)
		r, err := arena.Allocate(size)
		if err != nil {
			continue
		}
		live = append(live, r)
	}
	elapsed := time.Since(start)

	var lastSlab string
	for i := len(live) - 1; i >= 0; i-- {
		if s := live[i].Chunk.SubpageString(live[i].Handle); s != "" {
			lastSlab = s
			break
		}
	}

	stats := arena.Stats()
	result := benchResult{
		Ops:        benchOps,
		Duration:   elapsed,
		OpsPerSec:  float64(benchOps) / elapsed.Seconds(),
		Chunks:     stats.Chunks,
		AllocCalls: stats.AllocCalls,
		FreeCalls:  stats.FreeCalls,
		LastSlab:   lastSlab,
	}

	if jsonOut {
		return printJSON(result)
	}

	printInfo("ops:          %d\n", result.Ops)
	printInfo("duration:     %s\n", result.Duration)
	printInfo("ops/sec:      %.0f\n", result.OpsPerSec)
	printInfo("chunks:       %d\n", result.Chunks)
	printInfo("alloc calls:  %d\n", result.AllocCalls)
	printInfo("free calls:   %d\n", result.FreeCalls)
	if result.LastSlab != "" {
		printInfo("last slab:    %s\n", result.LastSlab)
	}
	return nil
}
