// Package repl implements the interactive query loop: multi-line query
// input with history, and bordered table output.
package repl

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/peterh/liner"

	"github.com/kartikbazzad/triq/internal/catalog"
	"github.com/kartikbazzad/triq/internal/config"
	"github.com/kartikbazzad/triq/internal/exec"
	"github.com/kartikbazzad/triq/internal/parser"
	"github.com/kartikbazzad/triq/internal/query"
)

type REPL struct {
	catalog  *catalog.Catalog
	executor *exec.Executor
	cfg      config.REPLConfig
	out      io.Writer
	logger   log.Logger
}

func New(cat *catalog.Catalog, executor *exec.Executor, cfg config.REPLConfig, out io.Writer, logger log.Logger) *REPL {
	return &REPL{
		catalog:  cat,
		executor: executor,
		cfg:      cfg,
		out:      out,
		logger:   logger,
	}
}

// Run reads queries until EOF or `exit`. A query is one or more lines
// terminated by a blank line.
func (r *REPL) Run(ctx context.Context) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	r.loadHistory(line)
	defer r.saveHistory(line)

	for {
		text, err := r.readQuery(line)
		if err != nil {
			if err == io.EOF || err == liner.ErrPromptAborted {
				fmt.Fprintln(r.out)
				return nil
			}
			return err
		}
		if text == "exit" {
			return nil
		}
		if text == "" {
			continue
		}

		line.AppendHistory(strings.ReplaceAll(text, "\n", " "))
		r.eval(ctx, text)
	}
}

func (r *REPL) readQuery(line *liner.State) (string, error) {
	var b strings.Builder
	prompt := ">>> "

	for {
		input, err := line.Prompt(prompt)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(input) == "exit" {
			return "exit", nil
		}
		if strings.TrimSpace(input) == "" {
			return strings.TrimRight(b.String(), "\n"), nil
		}
		b.WriteString(input)
		b.WriteByte('\n')
		prompt = "... "
	}
}

func (r *REPL) eval(ctx context.Context, text string) {
	lines, err := parser.Parse(text)
	if err != nil {
		fmt.Fprintf(r.out, "parse error: %v\n", err)
		return
	}

	if err := query.Validate(lines, r.catalog); err != nil {
		fmt.Fprintf(r.out, "invalid query: %v\n", err)
		return
	}

	plan, err := query.Build(lines)
	if err != nil {
		fmt.Fprintf(r.out, "plan error: %v\n", err)
		return
	}
	level.Debug(r.logger).Log("msg", "plan built", "plan", plan)

	start := time.Now()
	result, err := r.executor.Execute(ctx, plan)
	if err != nil {
		fmt.Fprintf(r.out, "execution error: %v\n", err)
		return
	}

	PrintResult(r.out, result, r.cfg.PrintLimit)
	fmt.Fprintf(r.out, "%d row(s) in %.4fs\n", result.Rows, time.Since(start).Seconds())
}

func (r *REPL) loadHistory(line *liner.State) {
	if r.cfg.HistoryFile == "" {
		return
	}
	f, err := os.Open(r.cfg.HistoryFile)
	if err != nil {
		return
	}
	defer f.Close()
	if _, err := line.ReadHistory(f); err != nil {
		level.Warn(r.logger).Log("msg", "failed to read history", "err", err)
	}
}

func (r *REPL) saveHistory(line *liner.State) {
	if r.cfg.HistoryFile == "" {
		return
	}
	f, err := os.Create(r.cfg.HistoryFile)
	if err != nil {
		level.Warn(r.logger).Log("msg", "failed to write history", "err", err)
		return
	}
	defer f.Close()
	if _, err := line.WriteHistory(f); err != nil {
		level.Warn(r.logger).Log("msg", "failed to write history", "err", err)
	}
}
