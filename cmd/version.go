package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const (
	graftVersion = "0.1.0"
)

var (
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the graft version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("graft version", graftVersion)
		},
	}
)

func init() {
	graftCmd.AddCommand(versionCmd)
}
