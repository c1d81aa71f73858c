// Copyright 2026 The udb Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The udb tool is a command-line tool for postmortem inspection of
// crashed processes: it reads an executable, a core dump, or both, and
// answers questions about registers, signals, memory mappings,
// symbols, and source lines.
//
// Run "udb --help" for usage.
package main

import (
	"fmt"
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/spf13/cobra"

	"github.com/jesse99/udb/internal/core"
	"github.com/jesse99/udb/internal/dwarf"
)

func main() {
	var logLevel string
	var command string

	root := &cobra.Command{
		Use:   "udb FILE [FILE]",
		Short: "postmortem debugger for ELF executables and core dumps",
		Long: `udb inspects crashed processes. Give it a core dump, an executable,
or both; pairing them enables backtraces annotated with source lines.

With no -c flag udb starts an interactive shell. Type "help" there for
the available commands.`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(logLevel)

			var files []*core.File
			for _, path := range args {
				f, err := core.Open(path, core.WithLogger(logger))
				if err != nil {
					return err
				}
				defer f.Close()
				files = append(files, f)
			}
			pair, err := core.NewPair(files...)
			if err != nil {
				return err
			}

			sh := &shell{
				pair:     pair,
				resolver: dwarf.NewResolver(pair, logger),
				out:      os.Stdout,
			}
			if command != "" {
				return sh.dispatch(command)
			}
			return sh.run()
		},
	}

	root.Flags().StringVar(&logLevel, "log-level", "warn", "minimum log level (debug, info, warn, error)")
	root.Flags().StringVarP(&command, "command", "c", "", "run one shell command and exit")

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "udb: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(lvl string) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)

	var opt level.Option
	switch lvl {
	case "debug":
		opt = level.AllowDebug()
	case "info":
		opt = level.AllowInfo()
	case "error":
		opt = level.AllowError()
	default:
		opt = level.AllowWarn()
	}
	return level.NewFilter(logger, opt)
}
