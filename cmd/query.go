package cmd

import (
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/leftmike/graft/graph"
	"github.com/leftmike/graft/query"
)

var (
	queryCmd = &cobra.Command{
		Use:   "query vertices-file edges-file target",
		Short: "Load a graph and run a k-hop query from target",
		Args:  cobra.ExactArgs(3),
		RunE:  queryRun,
	}

	queryLabel uint16 = 1
	queryHops         = 2
	queryStart int64  = 0
	queryEnd   int64  = math.MaxInt64
)

func init() {
	fs := queryCmd.Flags()
	fs.Uint16Var(&queryLabel, "label", queryLabel, "edge `label` to traverse")
	fs.IntVar(&queryHops, "hops", queryHops, "maximum `hops` from the target")
	fs.Int64Var(&queryStart, "start", queryStart, "version window `start`")
	fs.Int64Var(&queryEnd, "end", queryEnd, "version window `end`")
	graftCmd.AddCommand(queryCmd)
}

func queryRun(cmd *cobra.Command, args []string) error {
	g, err := openGraph()
	if err != nil {
		return err
	}
	defer g.Close()

	ids, err := loadFiles(g, args[0], args[1], graph.Label(queryLabel))
	if err != nil {
		return err
	}

	target, ok := ids[args[2]]
	if !ok {
		return fmt.Errorf("unknown vertex: %s", args[2])
	}

	result, err := query.KHopSnapshot(g, target, graph.Label(queryLabel), queryHops,
		graph.Timestamp(queryStart), graph.Timestamp(queryEnd))
	if err != nil {
		return err
	}

	tw := tablewriter.NewWriter(os.Stdout)
	tw.SetAutoFormatHeaders(false)
	tw.SetHeader([]string{"Stat", "Value"})
	tw.Append([]string{"results", strconv.Itoa(result.Count)})
	tw.Append([]string{"visited", strconv.Itoa(result.Visited)})
	tw.Append([]string{"elapsed", result.Elapsed.String()})
	tw.Append([]string{"query time", result.QueryTime.String()})
	tw.Append([]string{"resolve time", result.ResolveTime.String()})
	tw.Render()
	return nil
}
