package cmd

import (
	"github.com/spf13/cobra"

	"github.com/leftmike/graft/repl"
)

var (
	startCmd = &cobra.Command{
		Use:   "start",
		Short: "Start an interactive graph shell",
		RunE:  startRun,
	}
)

func init() {
	graftCmd.AddCommand(startCmd)
}

func startRun(cmd *cobra.Command, args []string) error {
	g, err := openGraph()
	if err != nil {
		return err
	}
	defer g.Close()

	repl.Interact(g)
	return nil
}
