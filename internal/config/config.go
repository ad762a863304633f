// Package config parses the damper directive file: one directive per
// line, whitespace-tokenised, '#' starts a comment.
package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ModuleDirective is one line forwarded to a scoring module's
// Configure, or a "<module> k <float>" coefficient line.
type ModuleDirective struct {
	Module string
	Arg1   string
	Arg2   string
}

// Config holds every recognised top-level directive plus the ordered
// list of per-module lines (recognised directives are stripped out of
// this list; everything else, including truly unknown module names, is
// kept and forwarded — an unrecognised directive is rejected with an
// error by the module registry, not by the parser, and cmd/damper logs
// that error and carries on).
type Config struct {
	Queue     int
	Limit     uint64 // bytes/sec; LimitUnlimited means no cap
	Packets   int
	NFQLen    int
	Stat      bool
	StatDir   string
	KeepStat  int
	WChart    bool
	Modules   []ModuleDirective
}

// LimitUnlimited is the sentinel stored in Config.Limit for the "no"
// directive argument: accept every packet without buffering it.
const LimitUnlimited = ^uint64(0)

var knownDirectives = map[string]bool{
	"queue":    true,
	"limit":    true,
	"packets":  true,
	"nfqlen":   true,
	"stat":     true,
	"statdir":  true,
	"keepstat": true,
	"wchart":   true,
}

// defaults returns the configuration a bare, directive-free file yields.
func defaults() Config {
	return Config{
		NFQLen:   10000,
		KeepStat: 365,
	}
}

// Parse reads directives from r and returns the resulting Config.
// Malformed recognised directives (bad integers, bad limit suffix) are
// reported as errors; unrecognised directives are forwarded verbatim as
// ModuleDirective entries — whether an unrecognised directive is a typo
// or a real module name is not something the parser can tell, so that
// decision is left to Registry.Configure.
func Parse(r io.Reader) (*Config, error) {
	cfg := defaults()

	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if idx := strings.IndexByte(text, '#'); idx >= 0 {
			text = text[:idx]
		}
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}

		directive := fields[0]
		args := fields[1:]

		if !knownDirectives[directive] {
			d := ModuleDirective{Module: directive}
			if len(args) > 0 {
				d.Arg1 = args[0]
			}
			if len(args) > 1 {
				d.Arg2 = args[1]
			}
			cfg.Modules = append(cfg.Modules, d)
			continue
		}

		if len(args) == 0 {
			return nil, fmt.Errorf("config: line %d: %q requires an argument", line, directive)
		}

		if err := applyDirective(&cfg, directive, args[0]); err != nil {
			return nil, fmt.Errorf("config: line %d: %w", line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return &cfg, nil
}

func applyDirective(cfg *Config, directive, arg string) error {
	switch directive {
	case "queue":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("queue: %w", err)
		}
		cfg.Queue = n
	case "limit":
		limit, err := parseLimit(arg)
		if err != nil {
			return fmt.Errorf("limit: %w", err)
		}
		cfg.Limit = limit
	case "packets":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("packets: %w", err)
		}
		cfg.Packets = n
	case "nfqlen":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("nfqlen: %w", err)
		}
		cfg.NFQLen = n
	case "stat":
		v, err := parseBool(arg)
		if err != nil {
			return fmt.Errorf("stat: %w", err)
		}
		cfg.Stat = v
	case "statdir":
		cfg.StatDir = arg
	case "keepstat":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("keepstat: %w", err)
		}
		cfg.KeepStat = n
	case "wchart":
		v, err := parseBool(arg)
		if err != nil {
			return fmt.Errorf("wchart: %w", err)
		}
		cfg.WChart = v
	}
	return nil
}

func parseBool(arg string) (bool, error) {
	switch arg {
	case "yes":
		return true, nil
	case "no":
		return false, nil
	default:
		return false, fmt.Errorf("expected yes/no, got %q", arg)
	}
}

// parseLimit parses the `limit` directive's argument: "no" for
// LimitUnlimited, or an integer bits/sec value with an optional k/m/g
// suffix, converted to bytes/sec (÷8).
func parseLimit(arg string) (uint64, error) {
	if arg == "no" {
		return LimitUnlimited, nil
	}

	mult := uint64(1)
	numeric := arg
	if n := len(arg); n > 0 {
		switch arg[n-1] {
		case 'k', 'K':
			mult = 1_000
			numeric = arg[:n-1]
		case 'm', 'M':
			mult = 1_000_000
			numeric = arg[:n-1]
		case 'g', 'G':
			mult = 1_000_000_000
			numeric = arg[:n-1]
		}
	}

	bits, err := strconv.ParseUint(numeric, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid limit %q: %w", arg, err)
	}
	return (bits * mult) / 8, nil
}
