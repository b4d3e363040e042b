package main

import (
	"os"

	"github.com/spf13/cobra"
)

var dumpCmd = &cobra.Command{
	Use:   "dump <image>",
	Short: "Print every block in the heap region",
	Long: `The dump command walks the heap region in address order and prints one
line per block: offset, size, state, and a payload preview for allocated
blocks or the list links for free blocks.

Example:
  heapctl dump scratch.heap`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDump(args)
	},
}

func init() {
	rootCmd.AddCommand(dumpCmd)
}

func runDump(args []string) error {
	a, h, _, err := openHeap(args[0])
	if err != nil {
		return err
	}
	defer a.Close()

	return h.Dump(os.Stdout)
}
