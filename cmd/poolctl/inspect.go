package main

import (
	"github.com/spf13/cobra"

	"github.com/elayo/pagepool/memsrc"
	"github.com/elayo/pagepool/pool"
)

var (
	inspectPageSize int
	inspectMaxOrder int
)

func init() {
	cmd := newInspectCmd()
	cmd.Flags().IntVar(&inspectPageSize, "page-size", 8192, "Chunk page size in bytes")
	cmd.Flags().IntVar(&inspectMaxOrder, "max-order", 11, "log2(chunkSize/pageSize)")
	rootCmd.AddCommand(cmd)
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Print the static geometry of an arena configuration",
		Long: `inspect constructs an empty arena for the given page-size/max-order
and prints its static geometry: chunk size, pages per chunk, and the
supported subpage size classes. Nothing is allocated; this is for
picking parameters before wiring the allocator into a larger program.

Example:
  poolctl inspect --page-size 8192 --max-order 11
  poolctl inspect --page-size 4096 --max-order 9 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect()
		},
	}
}

type inspectResult struct {
	PageSize    int   `json:"page_size"`
	MaxOrder    int   `json:"max_order"`
	ChunkSize   int   `json:"chunk_size"`
	NumPages    int   `json:"num_pages"`
	SizeClasses []int `json:"size_classes"`
}

func runInspect() error {
	arena := pool.NewArena(inspectPageSize, inspectMaxOrder, memsrc.Heap{})

	result := inspectResult{
		PageSize:    arena.PageSize(),
		MaxOrder:    inspectMaxOrder,
		ChunkSize:   arena.ChunkSize(),
		NumPages:    arena.NumPages(),
		SizeClasses: arena.SizeClasses(),
	}

	if jsonOut {
		return printJSON(result)
	}

	printInfo("page size:    %d\n", result.PageSize)
	printInfo("max order:    %d\n", result.MaxOrder)
	printInfo("chunk size:   %d\n", result.ChunkSize)
	printInfo("pages/chunk:  %d\n", result.NumPages)
	printInfo("size classes: %v\n", result.SizeClasses)
	return nil
}
