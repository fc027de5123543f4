package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/leftmike/graft/graph"
)

var (
	loadCmd = &cobra.Command{
		Use:   "load vertices-file edges-file",
		Short: "Bulk load a graph from CSV files",
		Args:  cobra.ExactArgs(2),
		RunE:  loadRun,
	}

	loadLabel uint16 = 1

	progressLines = 100000
)

func init() {
	loadCmd.Flags().Uint16Var(&loadLabel, "label", loadLabel, "edge `label` to load under")
	graftCmd.AddCommand(loadCmd)
}

func loadRun(cmd *cobra.Command, args []string) error {
	g, err := openGraph()
	if err != nil {
		return err
	}
	defer g.Close()

	_, err = loadFiles(g, args[0], args[1], graph.Label(loadLabel))
	if err != nil {
		return err
	}

	stats := g.Stats()
	fmt.Printf("%d vertices; arena %d of %d bytes used\n", stats.MaxVertexID,
		stats.ArenaUsed, stats.ArenaSize)
	return nil
}

// loadFiles bulk loads a vertex file (one key per line, stored as the
// vertex payload) and an edge file (key,key,version per line) through a
// batch-loader transaction, returning the key to vertex id mapping.
func loadFiles(g *graph.Graph, verticesFile, edgesFile string,
	label graph.Label) (map[string]graph.VertexID, error) {

	ids := map[string]graph.VertexID{}

	tx := g.BeginBatchLoader()
	count := 0
	err := eachLine(verticesFile,
		func(line string) error {
			v, err := tx.NewVertex(false)
			if err != nil {
				return err
			}
			err = tx.PutVertex(v, []byte(line))
			if err != nil {
				return err
			}
			ids[line] = v

			count += 1
			if count%progressLines == 0 {
				log.WithField("vertices", count).Info("load: loading vertices")
			}
			return nil
		})
	if err != nil {
		tx.Abort()
		return nil, err
	}
	_, err = tx.Commit(true)
	if err != nil {
		return nil, err
	}
	log.WithField("vertices", count).Info("load: vertices loaded")

	tx = g.BeginBatchLoader()
	count = 0
	err = eachLine(edgesFile,
		func(line string) error {
			fields := strings.Split(line, ",")
			if len(fields) != 3 {
				return fmt.Errorf("expected src,dst,version; got %s", line)
			}
			src, ok := ids[fields[0]]
			if !ok {
				return fmt.Errorf("unknown vertex: %s", fields[0])
			}
			dst, ok := ids[fields[1]]
			if !ok {
				return fmt.Errorf("unknown vertex: %s", fields[1])
			}
			version, err := strconv.ParseInt(strings.TrimSpace(fields[2]), 10, 64)
			if err != nil {
				return fmt.Errorf("bad version: %s", fields[2])
			}

			err = tx.PutEdgeWithVersion(src, label, dst, []byte(fields[2]),
				graph.Timestamp(version), false)
			if err != nil {
				return err
			}

			count += 1
			if count%progressLines == 0 {
				log.WithField("edges", count).Info("load: loading edges")
			}
			return nil
		})
	if err != nil {
		tx.Abort()
		return nil, err
	}
	_, err = tx.Commit(true)
	if err != nil {
		return nil, err
	}
	log.WithField("edges", count).Info("load: edges loaded")

	return ids, nil
}

func eachLine(filename string, fn func(line string) error) error {
	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	scan := bufio.NewScanner(f)
	for scan.Scan() {
		line := strings.TrimSpace(scan.Text())
		if line == "" {
			continue
		}
		err = fn(line)
		if err != nil {
			return err
		}
	}
	return scan.Err()
}
