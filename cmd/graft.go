package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/leftmike/graft/config"
	"github.com/leftmike/graft/graph"
)

var (
	graftCmd = &cobra.Command{
		Use:               "graft",
		Short:             "A multi-version graph store",
		Long:              "Graft is an in-memory multi-version property graph store.",
		PersistentPreRunE: graftPreRun,
		PersistentPostRun: graftPostRun,
	}

	logFile   = "graft.log"
	logLevel  = "info"
	logStderr = false
	logWriter io.WriteCloser

	configFile = "graft.hcl"
	noConfig   = false
	listConfig = false
	params     []string

	cfg = config.New()

	dataDir   string
	arenaSize uint64
	walStore  string
)

func init() {
	log.SetFormatter(&log.TextFormatter{
		DisableLevelTruncation: true,
	})

	fs := graftCmd.PersistentFlags()

	fs.StringVar(&logFile, "log-file", logFile, "`file` to use for logging")
	fs.StringVar(&logLevel, "log-level", logLevel,
		"log level: trace, debug, info, warn, error, fatal, or panic")
	fs.BoolVar(&logStderr, "log-stderr", logStderr, "log to standard error")

	fs.StringVar(&configFile, "config", configFile, "`file` to load config from")
	fs.BoolVar(&noConfig, "no-config", noConfig, "don't load a config file")
	fs.BoolVar(&listConfig, "list-config", listConfig, "list the config and then exit")
	fs.StringArrayVar(&params, "param", nil, "set `name=value`; multiple allowed")

	cfg.StringParam(&dataDir, "data", "graftdata", config.Default)
	cfg.Uint64Param(&arenaSize, "arena-size", graph.DefaultArenaSize, config.Default)
	cfg.StringParam(&walStore, "wal-store", "bbolt", config.Default)
}

func graftPreRun(cmd *cobra.Command, args []string) error {
	if !logStderr {
		w, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
		if err != nil {
			return err
		}
		log.SetOutput(w)
		logWriter = w
	}

	ll, err := log.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	log.SetLevel(ll)

	for _, s := range params {
		ss := strings.SplitN(s, "=", 2)
		if len(ss) != 2 {
			return fmt.Errorf("expected name=value; got %s", s)
		}
		err = cfg.Set(ss[0], ss[1])
		if err != nil {
			return err
		}
	}

	if !noConfig {
		err = cfg.Load(configFile)
		if err != nil && !os.IsNotExist(err) {
			return err
		}
	}

	if listConfig {
		cfg.List(
			func(name, val string) {
				fmt.Printf("%s=%s\n", name, val)
			})
		os.Exit(0)
	}
	return nil
}

func graftPostRun(cmd *cobra.Command, args []string) {
	if logWriter != nil {
		logWriter.Close()
		logWriter = nil
	}
}

func openGraph() (*graph.Graph, error) {
	err := os.MkdirAll(dataDir, 0755)
	if err != nil {
		return nil, err
	}

	blockPath := filepath.Join(dataDir, "graft.meta")
	var walPath string
	switch walStore {
	case "bbolt":
		walPath = filepath.Join(dataDir, "graft.wal")
	case "badger", "pebble":
		walPath = filepath.Join(dataDir, "wal")
	case "memory":
		blockPath = ""
	default:
		return nil, fmt.Errorf("unknown wal store: %s", walStore)
	}

	return graph.Open(blockPath, walPath,
		graph.Options{
			ArenaSize: arenaSize,
			WALStore:  walStore,
			Logger:    log.StandardLogger(),
		})
}

func Execute() {
	err := graftCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
