package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
)

const (
	prompt       = "pagedb> "
	defaultLimit = 30
)

type commandResult int

const (
	commandOK commandResult = iota
	commandExit
	commandError
)

// REPL reads commands from a terminal and runs them against a session.
type REPL struct {
	session *Session
	rl      *readline.Instance
}

func NewREPL(s *Session) *REPL {
	return &REPL{session: s}
}

// Run starts the REPL loop and returns when the user quits or input ends.
func (r *REPL) Run(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     historyFile(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    newCompleter(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer rl.Close()
	r.rl = rl

	PrintSplash(r.session.Out)
	r.printHelp()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		} else if errors.Is(err, io.EOF) {
			fmt.Fprintln(r.session.Out, "OK, goodbye.")
			return nil
		} else if err != nil {
			return fmt.Errorf("readline error: %w", err)
		}

		if r.Execute(ctx, line) == commandExit {
			fmt.Fprintln(r.session.Out, "OK, goodbye.")
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Execute runs one command line. Errors are printed, not returned.
func (r *REPL) Execute(ctx context.Context, line string) commandResult {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return commandOK
	}

	s := r.session
	var err error
	switch cmd := strings.ToLower(fields[0]); cmd {
	case "quit", "exit":
		return commandExit
	case "help", "?":
		r.printHelp()
	case "tables":
		err = s.Tables()
	case "stats":
		s.Stats()
	case "create":
		if len(fields) < 3 {
			err = errors.New("usage: create <table> <column:type>...")
			break
		}
		err = s.Create(fields[1], fields[2:])
	case "load":
		if len(fields) != 4 || strings.ToLower(fields[2]) != "from" {
			err = errors.New("usage: load <table> from <file>")
			break
		}
		err = s.Load(ctx, fields[1], fields[3])
	case "show":
		if len(fields) < 2 || len(fields) > 3 {
			err = errors.New("usage: show <table> [limit]")
			break
		}
		limit := defaultLimit
		if len(fields) == 3 {
			if limit, err = strconv.Atoi(fields[2]); err != nil {
				err = fmt.Errorf("limit %q is not a number", fields[2])
				break
			}
		}
		err = s.Show(ctx, fields[1], limit)
	case "query":
		if len(fields) != 2 {
			err = errors.New("usage: query <file.yaml>")
			break
		}
		err = s.Query(ctx, fields[1], defaultLimit)
	default:
		err = fmt.Errorf("unknown command %q; type help for the list", cmd)
	}

	if err != nil {
		fmt.Fprintf(s.Out, "Error: %v\n", err)
		return commandError
	}
	return commandOK
}

func (r *REPL) printHelp() {
	fmt.Fprint(r.session.Out, `Commands:
  create <table> <column:type>...   create a table (types: int, double, string, bool)
  load <table> from <file>          append the '|'-separated records of file
  tables                            list the tables
  show <table> [limit]              print records of a table
  query <file.yaml>                 run a query document
  stats                             show buffer pool counters
  quit                              leave
`)
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".pagedb_history")
}

func newCompleter() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("create"),
		readline.PcItem("load"),
		readline.PcItem("tables"),
		readline.PcItem("show"),
		readline.PcItem("query"),
		readline.PcItem("stats"),
		readline.PcItem("help"),
		readline.PcItem("quit"),
		readline.PcItem("exit"),
	)
}
