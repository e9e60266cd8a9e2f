// Package console parses and executes operator commands.
package console

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/verte-zerg/repostats/internal/model"
	"github.com/verte-zerg/repostats/internal/stats"
)

// DefaultMaxCommandLength bounds a single command line.
const DefaultMaxCommandLength = 1024

var (
	// ErrEmptyCommand is returned for blank command lines.
	ErrEmptyCommand = errors.New("missing command")
	// ErrCommandTooLong is returned when a line exceeds the configured length.
	ErrCommandTooLong = errors.New("command exceeds allowed length")
	// ErrUnknownCommand is returned for commands the console does not know.
	ErrUnknownCommand = errors.New("unknown command")
)

// Store is the counter store the console operates on.
type Store interface {
	stats.Source
	RecordN(ctx context.Context, name string, n int64) error
	Reset(ctx context.Context) error
}

// Options configures a Console.
type Options struct {
	// DefaultLimit is the threshold used by a bare "stats" command.
	DefaultLimit     int64
	DefaultPattern   string
	Rederive         bool
	MaxCommandLength int
	Emphasis         stats.Emphasis
}

// DefaultOptions returns options matching the interactive console defaults.
func DefaultOptions() Options {
	return Options{
		DefaultLimit:     stats.AdaptiveLimit,
		MaxCommandLength: DefaultMaxCommandLength,
		Emphasis:         stats.PlainEmphasis,
	}
}

type handler func(ctx context.Context, c *Console, args []string) (string, error)

type command struct {
	usage   string
	summary string
	run     handler
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"help":   {usage: "help", summary: "List available commands", run: runHelp},
		"stats":  {usage: "stats [threshold|pattern] [pattern]", summary: "Display request statistics (-1 for adaptive threshold)", run: runStats},
		"record": {usage: "record <name> [count]", summary: "Increment a request counter", run: runRecord},
		"reset":  {usage: "reset", summary: "Clear all request counters", run: runReset},
	}
}

var commandOrder = []string{"help", "stats", "record", "reset"}

// Console dispatches command lines against a store. A bare "stats" reuses
// one report command across calls, so a derived adaptive threshold is kept
// unless Options.Rederive is set.
type Console struct {
	store Store
	opts  Options

	mu           sync.Mutex
	defaultStats *stats.Command
}

// New returns a console over st.
func New(st Store, opts Options) *Console {
	if opts.MaxCommandLength <= 0 {
		opts.MaxCommandLength = DefaultMaxCommandLength
	}
	if opts.Emphasis == nil {
		opts.Emphasis = stats.PlainEmphasis
	}
	return &Console{store: st, opts: opts}
}

// MaxCommandLength returns the longest accepted command line.
func (c *Console) MaxCommandLength() int {
	return c.opts.MaxCommandLength
}

// Execute runs one command line and returns its output.
func (c *Console) Execute(ctx context.Context, line string) (string, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", ErrEmptyCommand
	}
	if len(line) > c.opts.MaxCommandLength {
		return "", fmt.Errorf("%w (%d > %d)", ErrCommandTooLong, len(line), c.opts.MaxCommandLength)
	}
	fields := strings.Fields(line)
	name := strings.ToLower(fields[0])
	cmd, ok := commands[name]
	if !ok {
		return "", fmt.Errorf("%w %q, see 'help'", ErrUnknownCommand, fields[0])
	}
	return cmd.run(ctx, c, fields[1:])
}

// StatsFlags marks stats settings the caller has already fixed. Positional
// arguments only fill the settings left open.
type StatsFlags struct {
	Limit   bool
	Pattern bool
}

// ParseStatsArgs maps "stats" arguments onto a stats configuration. A single
// integer argument is a threshold, any other single argument is a pattern,
// and two arguments are a threshold followed by a pattern. When fixed pins
// one setting, a single argument is read as the other one.
func ParseStatsArgs(args []string, defaults model.StatsConfig, fixed StatsFlags) (model.StatsConfig, error) {
	cfg := defaults
	switch len(args) {
	case 0:
	case 1:
		switch {
		case fixed.Limit && fixed.Pattern:
			return model.StatsConfig{}, fmt.Errorf("threshold and pattern are already set, unexpected argument %q", args[0])
		case fixed.Limit:
			cfg.Pattern = args[0]
		case fixed.Pattern:
			limit, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return model.StatsConfig{}, fmt.Errorf("invalid threshold %q", args[0])
			}
			cfg.Limit = limit
		default:
			if limit, err := strconv.ParseInt(args[0], 10, 64); err == nil {
				cfg.Limit = limit
				cfg.Pattern = ""
			} else {
				cfg.Limit = 0
				cfg.Pattern = args[0]
			}
		}
	case 2:
		if fixed.Limit || fixed.Pattern {
			return model.StatsConfig{}, fmt.Errorf("threshold and pattern given both as flags and arguments")
		}
		limit, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return model.StatsConfig{}, fmt.Errorf("invalid threshold %q", args[0])
		}
		cfg.Limit = limit
		cfg.Pattern = args[1]
	default:
		return model.StatsConfig{}, fmt.Errorf("too many arguments for stats (max 2)")
	}
	return cfg, nil
}

func runHelp(_ context.Context, _ *Console, _ []string) (string, error) {
	rows := make([][]string, 0, len(commandOrder))
	for _, name := range commandOrder {
		cmd := commands[name]
		rows = append(rows, []string{cmd.usage, cmd.summary})
	}
	lines := append([]string{"Available commands:"}, indent(formatTable(rows), "  ")...)
	return joinLines(lines), nil
}

func runStats(ctx context.Context, c *Console, args []string) (string, error) {
	var (
		report stats.Report
		err    error
	)
	if len(args) == 0 {
		report, err = c.runDefaultStats(ctx)
	} else {
		report, err = c.runStatsArgs(ctx, args)
	}
	if err != nil {
		return "", err
	}
	return joinLines(stats.RenderLines(report, c.opts.Emphasis)), nil
}

func (c *Console) runDefaultStats(ctx context.Context) (stats.Report, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.defaultStats == nil {
		cmd, err := stats.FromConfig(model.StatsConfig{
			Limit:    c.opts.DefaultLimit,
			Pattern:  c.opts.DefaultPattern,
			Rederive: c.opts.Rederive,
		})
		if err != nil {
			return stats.Report{}, err
		}
		c.defaultStats = cmd
	}
	return c.defaultStats.Execute(ctx, c.store)
}

func (c *Console) runStatsArgs(ctx context.Context, args []string) (stats.Report, error) {
	cfg, err := ParseStatsArgs(args, model.StatsConfig{
		Limit:   c.opts.DefaultLimit,
		Pattern: c.opts.DefaultPattern,
	}, StatsFlags{})
	if err != nil {
		return stats.Report{}, err
	}
	cmd, err := stats.FromConfig(cfg)
	if err != nil {
		return stats.Report{}, err
	}
	return cmd.Execute(ctx, c.store)
}

func runRecord(ctx context.Context, c *Console, args []string) (string, error) {
	if len(args) == 0 || len(args) > 2 {
		return "", fmt.Errorf("usage: %s", commands["record"].usage)
	}
	n := int64(1)
	if len(args) == 2 {
		parsed, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil || parsed <= 0 {
			return "", fmt.Errorf("invalid count %q", args[1])
		}
		n = parsed
	}
	if err := c.store.RecordN(ctx, args[0], n); err != nil {
		return "", err
	}
	return fmt.Sprintf("Recorded %s (+%d)\n", args[0], n), nil
}

func runReset(ctx context.Context, c *Console, args []string) (string, error) {
	if len(args) != 0 {
		return "", fmt.Errorf("usage: %s", commands["reset"].usage)
	}
	if err := c.store.Reset(ctx); err != nil {
		return "", err
	}
	// A threshold derived from the cleared counters no longer applies.
	c.mu.Lock()
	c.defaultStats = nil
	c.mu.Unlock()
	return "Statistics cleared\n", nil
}

func indent(lines []string, prefix string) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = prefix + line
	}
	return out
}

func joinLines(lines []string) string {
	var b strings.Builder
	if err := stats.WriteLines(&b, lines); err != nil {
		// strings.Builder never fails.
		_ = err
	}
	return b.String()
}
