// Package repl is an interactive shell over a live graph, for poking at
// vertices and edges and running bounded traversals.
package repl

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/leftmike/graft/graph"
	"github.com/leftmike/graft/query"
)

// Shell dispatches commands against a graph. Between an explicit begin and
// commit or abort, operations share one transaction; otherwise each
// command runs in a transaction of its own.
type Shell struct {
	g  *graph.Graph
	tx *graph.Transaction
}

func NewShell(g *graph.Graph) *Shell {
	return &Shell{g: g}
}

// Dispatch runs one command line; it returns io.EOF for exit.
func (sh *Shell) Dispatch(line string, w io.Writer) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	cmd, ok := commands[fields[0]]
	if !ok {
		fmt.Fprintf(w, "unknown command: %s; try help\n", fields[0])
		return nil
	}
	err := cmd.fn(sh, fields[1:], w)
	if err == io.EOF {
		return err
	}
	if err != nil {
		fmt.Fprintln(w, err)
		if graph.IsRollback(err) && sh.tx != nil {
			sh.tx.Abort()
			sh.tx = nil
			fmt.Fprintln(w, "transaction aborted")
		}
	}
	return nil
}

type command struct {
	usage string
	fn    func(sh *Shell, args []string, w io.Writer) error
}

var commands map[string]command

func init() {
	// Initialized here rather than in the declaration because the help
	// command refers back to the map.
	commands = map[string]command{
		"help":    {"help", cmdHelp},
		"exit":    {"exit", cmdExit},
		"begin":   {"begin [ro]", cmdBegin},
		"commit":  {"commit [wait]", cmdCommit},
		"abort":   {"abort", cmdAbort},
		"stats":   {"stats", cmdStats},
		"compact": {"compact", cmdCompact},

		"new-vertex": {"new-vertex [count]", cmdNewVertex},
		"put-vertex": {"put-vertex vertex data", cmdPutVertex},
		"get-vertex": {"get-vertex vertex", cmdGetVertex},
		"del-vertex": {"del-vertex vertex [recycle]", cmdDelVertex},

		"put-edge": {"put-edge src label dst data [force]", cmdPutEdge},
		"put-edge-version": {"put-edge-version src label dst version data [force]",
			cmdPutEdgeVersion},
		"get-edge": {"get-edge src label dst", cmdGetEdge},
		"get-edge-version": {"get-edge-version src label dst start end",
			cmdGetEdgeVersion},
		"del-edge": {"del-edge src label dst", cmdDelEdge},

		"edges": {"edges src label [reverse]", cmdEdges},
		"edges-version": {"edges-version src label start end [reverse]",
			cmdEdgesVersion},
		"bfs": {"bfs target label hops start end", cmdBFS},
	}
}

func usagef(usage string) error {
	return fmt.Errorf("usage: %s", usage)
}

func parseVertex(s string) (graph.VertexID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad vertex id: %s", s)
	}
	return graph.VertexID(v), nil
}

func parseLabel(s string) (graph.Label, error) {
	l, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("bad label: %s", s)
	}
	return graph.Label(l), nil
}

func parseTimestamp(s string) (graph.Timestamp, error) {
	ts, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad timestamp: %s", s)
	}
	return graph.Timestamp(ts), nil
}

// writeTx returns the shell transaction or a one-shot read-write
// transaction; done commits or aborts a one-shot.
func (sh *Shell) writeTx() (tx *graph.Transaction, done func(err error) error) {
	if sh.tx != nil {
		return sh.tx, func(err error) error { return err }
	}
	tx = sh.g.BeginTransaction()
	return tx, func(err error) error {
		if err != nil {
			tx.Abort()
			return err
		}
		_, err = tx.Commit(true)
		return err
	}
}

func (sh *Shell) readTx() (tx *graph.Transaction, done func()) {
	if sh.tx != nil {
		return sh.tx, func() {}
	}
	tx = sh.g.BeginReadOnlyTransaction()
	return tx, func() { tx.Abort() }
}

func cmdHelp(sh *Shell, args []string, w io.Writer) error {
	tw := tablewriter.NewWriter(w)
	tw.SetAutoFormatHeaders(false)
	tw.SetHeader([]string{"Command"})
	for _, cmd := range commands {
		tw.Append([]string{cmd.usage})
	}
	tw.Render()
	return nil
}

func cmdExit(sh *Shell, args []string, w io.Writer) error {
	if sh.tx != nil {
		sh.tx.Abort()
		sh.tx = nil
		fmt.Fprintln(w, "transaction aborted")
	}
	return io.EOF
}

func cmdBegin(sh *Shell, args []string, w io.Writer) error {
	if sh.tx != nil {
		return fmt.Errorf("transaction already open")
	}
	if len(args) > 0 && args[0] == "ro" {
		sh.tx = sh.g.BeginReadOnlyTransaction()
	} else {
		sh.tx = sh.g.BeginTransaction()
	}
	fmt.Fprintf(w, "read epoch %d\n", sh.tx.ReadEpoch())
	return nil
}

func cmdCommit(sh *Shell, args []string, w io.Writer) error {
	if sh.tx == nil {
		return fmt.Errorf("no open transaction")
	}
	wait := len(args) > 0 && args[0] == "wait"
	epoch, err := sh.tx.Commit(wait)
	sh.tx = nil
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "committed at epoch %d\n", epoch)
	return nil
}

func cmdAbort(sh *Shell, args []string, w io.Writer) error {
	if sh.tx == nil {
		return fmt.Errorf("no open transaction")
	}
	err := sh.tx.Abort()
	sh.tx = nil
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "aborted")
	return nil
}

func cmdStats(sh *Shell, args []string, w io.Writer) error {
	stats := sh.g.Stats()
	tw := tablewriter.NewWriter(w)
	tw.SetAutoFormatHeaders(false)
	tw.SetHeader([]string{"Stat", "Value"})
	tw.Append([]string{"max vertex id", strconv.FormatUint(stats.MaxVertexID, 10)})
	tw.Append([]string{"recycled ids", strconv.Itoa(stats.RecycledIDs)})
	tw.Append([]string{"visible epoch", strconv.FormatInt(int64(stats.VisibleEpoch), 10)})
	tw.Append([]string{"arena used",
		fmt.Sprintf("%d of %d", stats.ArenaUsed, stats.ArenaSize)})
	tw.Append([]string{"dirty vertices", strconv.Itoa(stats.DirtyCount)})
	tw.Render()
	return nil
}

func cmdCompact(sh *Shell, args []string, w io.Writer) error {
	vertices := sh.g.DirtyVertices()
	fmt.Fprintf(w, "%d dirty vertices drained\n", len(vertices))
	return nil
}

func cmdNewVertex(sh *Shell, args []string, w io.Writer) error {
	count := 1
	if len(args) > 0 {
		var err error
		count, err = strconv.Atoi(args[0])
		if err != nil || count < 1 {
			return usagef("new-vertex [count]")
		}
	}

	tx, done := sh.writeTx()
	var ids []string
	for idx := 0; idx < count; idx++ {
		v, err := tx.NewVertex(true)
		if err != nil {
			return done(err)
		}
		ids = append(ids, strconv.FormatUint(uint64(v), 10))
	}
	err := done(nil)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, strings.Join(ids, " "))
	return nil
}

func cmdPutVertex(sh *Shell, args []string, w io.Writer) error {
	if len(args) != 2 {
		return usagef("put-vertex vertex data")
	}
	v, err := parseVertex(args[0])
	if err != nil {
		return err
	}

	tx, done := sh.writeTx()
	return done(tx.PutVertex(v, []byte(args[1])))
}

func cmdGetVertex(sh *Shell, args []string, w io.Writer) error {
	if len(args) != 1 {
		return usagef("get-vertex vertex")
	}
	v, err := parseVertex(args[0])
	if err != nil {
		return err
	}

	tx, done := sh.readTx()
	defer done()

	data, err := tx.GetVertex(v)
	if err != nil {
		return err
	}
	if data == nil {
		fmt.Fprintln(w, "absent")
	} else {
		fmt.Fprintf(w, "%s\n", data)
	}
	return nil
}

func cmdDelVertex(sh *Shell, args []string, w io.Writer) error {
	if len(args) < 1 || len(args) > 2 {
		return usagef("del-vertex vertex [recycle]")
	}
	v, err := parseVertex(args[0])
	if err != nil {
		return err
	}
	recycle := len(args) == 2 && args[1] == "recycle"

	tx, done := sh.writeTx()
	deleted, err := tx.DelVertex(v, recycle)
	err = done(err)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, deleted)
	return nil
}

func parseEdgeArgs(args []string) (graph.VertexID, graph.Label, graph.VertexID, error) {
	src, err := parseVertex(args[0])
	if err != nil {
		return 0, 0, 0, err
	}
	label, err := parseLabel(args[1])
	if err != nil {
		return 0, 0, 0, err
	}
	dst, err := parseVertex(args[2])
	if err != nil {
		return 0, 0, 0, err
	}
	return src, label, dst, nil
}

func cmdPutEdge(sh *Shell, args []string, w io.Writer) error {
	if len(args) < 4 || len(args) > 5 {
		return usagef("put-edge src label dst data [force]")
	}
	src, label, dst, err := parseEdgeArgs(args)
	if err != nil {
		return err
	}
	force := len(args) == 5 && args[4] == "force"

	tx, done := sh.writeTx()
	return done(tx.PutEdge(src, label, dst, []byte(args[3]), force))
}

func cmdPutEdgeVersion(sh *Shell, args []string, w io.Writer) error {
	if len(args) < 5 || len(args) > 6 {
		return usagef("put-edge-version src label dst version data [force]")
	}
	src, label, dst, err := parseEdgeArgs(args)
	if err != nil {
		return err
	}
	version, err := parseTimestamp(args[3])
	if err != nil {
		return err
	}
	force := len(args) == 6 && args[5] == "force"

	tx, done := sh.writeTx()
	return done(tx.PutEdgeWithVersion(src, label, dst, []byte(args[4]), version, force))
}

func cmdGetEdge(sh *Shell, args []string, w io.Writer) error {
	if len(args) != 3 {
		return usagef("get-edge src label dst")
	}
	src, label, dst, err := parseEdgeArgs(args)
	if err != nil {
		return err
	}

	tx, done := sh.readTx()
	defer done()

	data, err := tx.GetEdge(src, label, dst)
	if err != nil {
		return err
	}
	if data == nil {
		fmt.Fprintln(w, "absent")
	} else {
		fmt.Fprintf(w, "%s\n", data)
	}
	return nil
}

func cmdGetEdgeVersion(sh *Shell, args []string, w io.Writer) error {
	if len(args) != 5 {
		return usagef("get-edge-version src label dst start end")
	}
	src, label, dst, err := parseEdgeArgs(args)
	if err != nil {
		return err
	}
	start, err := parseTimestamp(args[3])
	if err != nil {
		return err
	}
	end, err := parseTimestamp(args[4])
	if err != nil {
		return err
	}

	tx, done := sh.readTx()
	defer done()

	views, err := tx.GetEdgeWithVersion(src, label, dst, start, end)
	if err != nil {
		return err
	}
	for _, data := range views {
		fmt.Fprintf(w, "%s\n", data)
	}
	fmt.Fprintf(w, "(%d versions)\n", len(views))
	return nil
}

func cmdDelEdge(sh *Shell, args []string, w io.Writer) error {
	if len(args) != 3 {
		return usagef("del-edge src label dst")
	}
	src, label, dst, err := parseEdgeArgs(args)
	if err != nil {
		return err
	}

	tx, done := sh.writeTx()
	deleted, err := tx.DelEdge(src, label, dst)
	err = done(err)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, deleted)
	return nil
}

func renderEdges(w io.Writer, it interface {
	Valid() bool
	Next()
	DstID() graph.VertexID
	EdgeData() []byte
	Version() graph.Timestamp
}) {

	tw := tablewriter.NewWriter(w)
	tw.SetAutoFormatHeaders(false)
	tw.SetHeader([]string{"Dst", "Version", "Data"})

	count := 0
	for it.Valid() {
		tw.Append([]string{
			strconv.FormatUint(uint64(it.DstID()), 10),
			strconv.FormatInt(int64(it.Version()), 10),
			string(it.EdgeData()),
		})
		count += 1
		it.Next()
	}
	tw.Render()
	fmt.Fprintf(w, "(%d edges)\n", count)
}

func cmdEdges(sh *Shell, args []string, w io.Writer) error {
	if len(args) < 2 || len(args) > 3 {
		return usagef("edges src label [reverse]")
	}
	src, err := parseVertex(args[0])
	if err != nil {
		return err
	}
	label, err := parseLabel(args[1])
	if err != nil {
		return err
	}
	reverse := len(args) == 3 && args[2] == "reverse"

	tx, done := sh.readTx()
	defer done()

	it, err := tx.GetEdges(src, label, reverse)
	if err != nil {
		return err
	}
	renderEdges(w, it)
	return nil
}

func cmdEdgesVersion(sh *Shell, args []string, w io.Writer) error {
	if len(args) < 4 || len(args) > 5 {
		return usagef("edges-version src label start end [reverse]")
	}
	src, err := parseVertex(args[0])
	if err != nil {
		return err
	}
	label, err := parseLabel(args[1])
	if err != nil {
		return err
	}
	start, err := parseTimestamp(args[2])
	if err != nil {
		return err
	}
	end, err := parseTimestamp(args[3])
	if err != nil {
		return err
	}
	reverse := len(args) == 5 && args[4] == "reverse"

	tx, done := sh.readTx()
	defer done()

	it, err := tx.GetEdgesWithVersion(src, label, start, end, reverse)
	if err != nil {
		return err
	}
	renderEdges(w, it)
	return nil
}

func cmdBFS(sh *Shell, args []string, w io.Writer) error {
	if len(args) != 5 {
		return usagef("bfs target label hops start end")
	}
	target, err := parseVertex(args[0])
	if err != nil {
		return err
	}
	label, err := parseLabel(args[1])
	if err != nil {
		return err
	}
	hops, err := strconv.Atoi(args[2])
	if err != nil || hops < 1 {
		return fmt.Errorf("bad hop count: %s", args[2])
	}
	start, err := parseTimestamp(args[3])
	if err != nil {
		return err
	}
	end, err := parseTimestamp(args[4])
	if err != nil {
		return err
	}

	tx, done := sh.readTx()
	defer done()

	result, err := query.KHop(tx, target, label, hops, start, end)
	if err != nil {
		return err
	}

	tw := tablewriter.NewWriter(w)
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
