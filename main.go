package main

import (
	"github.com/leftmike/graft/cmd"
)

func main() {
	cmd.Execute()
}
