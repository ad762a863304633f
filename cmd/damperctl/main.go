// damperctl is an interactive shell for inspecting a damper statistics
// directory: seek to a point in time on any discovered series, then walk
// forward one second at a time to inspect pass/drop buckets or module
// weight averages.
//
// Usage:
//
//	damperctl <statdir>
//
// Commands (in REPL):
//
//	sets                    List discovered series and their time range
//	seek <set> <RFC3339>    Position the cursor on a series at a time
//	bucket                  Show the pass/drop bucket at the cursor
//	avg                     Show the module weight average at the cursor
//	next [n]                Advance the cursor by n seconds (default 1)
//	help                    Show this help
//	exit / quit / q         Exit
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/peterh/liner"

	"github.com/vmxdev/damper/internal/stats"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: damperctl <statdir>\n")
		return errors.New("missing statistics directory")
	}

	dir := os.Args[1]
	cur, err := stats.Open(dir)
	if err != nil {
		return fmt.Errorf("opening statistics directory: %w", err)
	}
	defer cur.Close()

	repl := &REPL{dir: dir, cur: cur}
	return repl.Run()
}

// REPL is the interactive command loop.
type REPL struct {
	dir     string
	cur     *stats.Cursor
	seeked  bool
	setName string
	liner   *liner.State
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".damperctl_history")
}

// Run starts the REPL loop.
func (r *REPL) Run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(r.completer)

	if f, err := os.Open(historyFile()); err == nil {
		r.liner.ReadHistory(f)
		f.Close()
	}

	fmt.Printf("damperctl - statistics shell (%s)\n", r.dir)
	fmt.Println("Type 'help' for available commands.")
	fmt.Println()

	for {
		line, err := r.liner.Prompt("damperctl> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Println("\nBye!")
				break
			}
			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.liner.AppendHistory(line)

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "exit", "quit", "q":
			fmt.Println("Bye!")
			r.saveHistory()
			return nil

		case "help", "?":
			r.printHelp()

		case "sets":
			r.cmdSets()

		case "seek":
			r.cmdSeek(args)

		case "bucket":
			r.cmdBucket()

		case "avg", "average":
			r.cmdAverage()

		case "next":
			r.cmdNext(args)

		default:
			fmt.Printf("Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}

	r.saveHistory()
	return nil
}

func (r *REPL) saveHistory() {
	if path := historyFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			r.liner.WriteHistory(f)
			f.Close()
		}
	}
}

func (r *REPL) completer(line string) []string {
	commands := []string{"sets", "seek", "bucket", "avg", "average", "next", "help", "exit", "quit", "q"}
	var completions []string
	lower := strings.ToLower(line)
	for _, cmd := range commands {
		if strings.HasPrefix(cmd, lower) {
			completions = append(completions, cmd)
		}
	}
	return completions
}

func (r *REPL) printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  sets                    List discovered series and their time range")
	fmt.Println("  seek <set> <RFC3339>    Position the cursor on a series at a time")
	fmt.Println("  bucket                  Show the pass/drop bucket at the cursor")
	fmt.Println("  avg                     Show the module weight average at the cursor")
	fmt.Println("  next [n]                Advance the cursor by n seconds (default 1)")
	fmt.Println("  help                    Show this help")
	fmt.Println("  exit / quit / q         Exit")
}

func (r *REPL) cmdSets() {
	sets := r.cur.Sets()
	if len(sets) == 0 {
		fmt.Println("(no statistics files found)")
		return
	}
	for _, s := range sets {
		fmt.Printf("%-16s %s .. %s\n", s.Name, s.Start().Format(time.RFC3339), s.End().Format(time.RFC3339))
	}
}

func (r *REPL) cmdSeek(args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: seek <set> <RFC3339 timestamp>")
		return
	}
	t, err := time.Parse(time.RFC3339, args[1])
	if err != nil {
		fmt.Printf("Error parsing timestamp: %v\n", err)
		return
	}
	if err := r.cur.Seek(args[0], t); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	r.seeked = true
	r.setName = args[0]
	fmt.Printf("OK: positioned on %q at %s\n", args[0], t.Format(time.RFC3339))
}

func (r *REPL) cmdBucket() {
	if !r.seeked {
		fmt.Println("Error: seek to a set first")
		return
	}
	b, err := r.cur.Bucket()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("%s  pass=%d/%dB  drop=%d/%dB\n",
		r.cur.Time().Format(time.RFC3339), b.PacketsPass, b.OctetsPass, b.PacketsDrop, b.OctetsDrop)
}

func (r *REPL) cmdAverage() {
	if !r.seeked {
		fmt.Println("Error: seek to a set first")
		return
	}
	avg, err := r.cur.Average()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("%s  avg(%s)=%f\n", r.cur.Time().Format(time.RFC3339), r.setName, avg)
}

func (r *REPL) cmdNext(args []string) {
	if !r.seeked {
		fmt.Println("Error: seek to a set first")
		return
	}
	n := 1
	if len(args) >= 1 {
		var err error
		n, err = strconv.Atoi(args[0])
		if err != nil || n < 1 {
			fmt.Println("Error: n must be a positive integer")
			return
		}
	}
	for i := 0; i < n; i++ {
		r.cur.Next()
	}
	fmt.Printf("OK: advanced to %s\n", r.cur.Time().Format(time.RFC3339))
}
