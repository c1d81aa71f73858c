// Copyright 2026 The udb Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/pkg/errors"

	"github.com/jesse99/udb/internal/core"
	"github.com/jesse99/udb/internal/dwarf"
)

// shell is the interactive command loop.
type shell struct {
	pair     *core.Pair
	resolver *dwarf.Resolver
	out      io.Writer
}

const shellHelp = `Commands:
  bt                     backtrace of the crashed thread
  line ADDR              source file and line for an address
  hexdump ADDR [LEN]     dump memory at a virtual address
  find BYTES             search memory for hex bytes, e.g. find deadbeef
  info header            ELF header
  info segments          program headers
  info loads             load segments
  info sections          section headers
  info mapped            memory mapped files
  info process           process state from the core
  info registers         general purpose registers
  info signals           signal that stopped the process
  info symbols           symbol tables
  info relocations       relocations
  info lines             line table rows
  help                   this message
  quit                   exit`

var shellCommands = []string{
	"bt", "line", "hexdump", "find", "info", "help", "quit",
}

var infoTopics = []string{
	"header", "segments", "loads", "sections", "mapped", "process",
	"registers", "signals", "symbols", "relocations", "lines",
}

// run reads and dispatches commands until EOF or quit.
func (sh *shell) run() error {
	var items []readline.PrefixCompleterInterface
	for _, c := range shellCommands {
		if c == "info" {
			var topics []readline.PrefixCompleterInterface
			for _, t := range infoTopics {
				topics = append(topics, readline.PcItem(t))
			}
			items = append(items, readline.PcItem(c, topics...))
			continue
		}
		items = append(items, readline.PcItem(c))
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:       "udb> ",
		AutoComplete: readline.NewPrefixCompleter(items...),
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err != nil {
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			return nil
		}
		if err := sh.dispatch(line); err != nil {
			fmt.Fprintf(sh.out, "error: %v\n", err)
		}
	}
}

// dispatch runs one command line.
func (sh *shell) dispatch(line string) error {
	fields := strings.Fields(line)
	switch fields[0] {
	case "help":
		fmt.Fprintln(sh.out, shellHelp)
		return nil
	case "bt":
		return sh.backtrace()
	case "line":
		if len(fields) != 2 {
			return errors.New("usage: line ADDR")
		}
		addr, err := parseAddr(fields[1])
		if err != nil {
			return err
		}
		return sh.line(addr)
	case "hexdump":
		if len(fields) < 2 || len(fields) > 3 {
			return errors.New("usage: hexdump ADDR [LEN]")
		}
		addr, err := parseAddr(fields[1])
		if err != nil {
			return err
		}
		length := uint64(256)
		if len(fields) == 3 {
			if length, err = strconv.ParseUint(fields[2], 0, 64); err != nil {
				return errors.Wrapf(err, "bad length %q", fields[2])
			}
		}
		return sh.hexdump(addr, length)
	case "find":
		if len(fields) != 2 {
			return errors.New("usage: find BYTES")
		}
		return sh.find(fields[1])
	case "info":
		if len(fields) != 2 {
			return errors.New("usage: info TOPIC (try help)")
		}
		return sh.info(fields[1])
	}
	return errors.Errorf("unknown command %q (try help)", fields[0])
}

func parseAddr(s string) (core.VirtualAddr, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "bad address %q", s)
	}
	return core.VirtualAddr(v), nil
}

func (sh *shell) info(topic string) error {
	switch topic {
	case "header":
		return sh.infoHeader()
	case "segments":
		return sh.infoSegments()
	case "loads":
		return sh.infoLoads()
	case "sections":
		return sh.infoSections()
	case "mapped":
		return sh.infoMapped()
	case "process":
		return sh.infoProcess()
	case "registers":
		return sh.infoRegisters()
	case "signals":
		return sh.infoSignals()
	case "symbols":
		return sh.infoSymbols()
	case "relocations":
		return sh.infoRelocations()
	case "lines":
		return sh.infoLines()
	}
	return errors.Errorf("unknown info topic %q (try help)", topic)
}
