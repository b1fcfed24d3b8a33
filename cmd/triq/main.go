// Command triq is a small embedded analytical store over triplet columns.
//
//	triq create store.triq
//	triq add store.triq schema.toml data.csv
//	triq add-sqlite store.triq source.db events --time-column time
//	triq query store.triq
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/spf13/cobra"

	"github.com/kartikbazzad/triq/internal/cache"
	"github.com/kartikbazzad/triq/internal/catalog"
	"github.com/kartikbazzad/triq/internal/config"
	"github.com/kartikbazzad/triq/internal/exec"
	"github.com/kartikbazzad/triq/internal/ingest"
	"github.com/kartikbazzad/triq/internal/logging"
	"github.com/kartikbazzad/triq/internal/repl"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logLevel string
	cfg := config.Default()

	root := &cobra.Command{
		Use:           "triq",
		Short:         "embedded analytical store over (entity, value, time) triplet columns",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	root.PersistentFlags().IntVar(&cfg.Exec.Workers, "workers", cfg.Exec.Workers, "worker pool size for query execution")
	root.PersistentFlags().IntVar(&cfg.Cache.Capacity, "cache-capacity", cfg.Cache.Capacity, "max cached entries, 0 = unbounded")

	logger := func() log.Logger { return logging.New(os.Stderr, logLevel) }

	create := &cobra.Command{
		Use:   "create FILE",
		Short: "create an empty store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return catalog.Create(args[0], logger())
		},
	}

	add := &cobra.Command{
		Use:   "add FILE SCHEMA CSV",
		Short: "ingest a schema+CSV pair into the store",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			logr := logger()
			cat, err := catalog.Load(args[0], logr)
			if err != nil {
				return err
			}
			schema, err := ingest.LoadSchema(args[1])
			if err != nil {
				return err
			}
			count, err := ingest.FromCSV(cat, schema, args[2], logr)
			if err != nil {
				return err
			}
			if err := cat.Save(args[0]); err != nil {
				return err
			}
			fmt.Printf("added %d triplets\n", count)
			return nil
		},
	}

	var timeColumn string
	addSQLite := &cobra.Command{
		Use:   "add-sqlite FILE DB TABLE",
		Short: "ingest a SQLite table into the store",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			logr := logger()
			cat, err := catalog.Load(args[0], logr)
			if err != nil {
				return err
			}
			count, err := ingest.FromSQLite(cat, args[1], args[2], timeColumn, logr)
			if err != nil {
				return err
			}
			if err := cat.Save(args[0]); err != nil {
				return err
			}
			fmt.Printf("added %d triplets\n", count)
			return nil
		},
	}
	addSQLite.Flags().StringVar(&timeColumn, "time-column", "time", "integer column providing triplet times")

	queryCmd := &cobra.Command{
		Use:   "query FILE",
		Short: "open an interactive query session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logr := logger()
			cat, err := catalog.Load(args[0], logr)
			if err != nil {
				return err
			}

			cc, err := cache.New(cat, cache.Config{Capacity: cfg.Cache.Capacity}, logr)
			if err != nil {
				return err
			}
			cat.OnMutate(cc.Invalidate)

			executor, err := exec.New(cat, cc, exec.Config{
				Workers:      cfg.Exec.Workers,
				WorkerExpiry: cfg.Exec.WorkerExpiry,
				PreAlloc:     cfg.Exec.PreAlloc,
			}, logr)
			if err != nil {
				return err
			}
			defer executor.Close()

			level.Info(logr).Log("msg", "session started", "store", args[0])
			return repl.New(cat, executor, cfg.REPL, os.Stdout, logr).Run(context.Background())
		},
	}

	root.AddCommand(create, add, addSQLite, queryCmd)
	return root
}
