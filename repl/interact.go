package repl

import (
	"fmt"
	"io"
	"os"

	"github.com/peterh/liner"

	"github.com/leftmike/graft/graph"
)

const (
	graftHistory = ".graft_history"
)

// Interact runs the shell against stdin with line editing and history
// until exit or EOF.
func Interact(g *graph.Graph) {
	line := liner.NewLiner()
	defer line.Close()

	if f, err := os.Open(graftHistory); err == nil {
		line.ReadHistory(f)
		f.Close()
	}

	sh := NewShell(g)
	for {
		s, err := line.Prompt("graft: ")
		if err != nil {
			break
		}
		line.AppendHistory(s)

		err = sh.Dispatch(s, os.Stdout)
		if err == io.EOF {
			break
		}
	}

	if f, err := os.Create(graftHistory); err != nil {
		fmt.Fprintf(os.Stderr, "graft: error writing history file, %s: %s", graftHistory,
			err)
	} else {
		line.WriteHistory(f)
		f.Close()
	}
}
