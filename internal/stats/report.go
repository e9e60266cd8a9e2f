package stats

import (
	"context"

	"github.com/verte-zerg/repostats/internal/model"
)

// Source is the counter store queried by a report. FetchStats returns
// entries in the store's native order; a nil filter keeps every entry.
type Source interface {
	CountRecords(ctx context.Context) (int64, error)
	SumRecords(ctx context.Context) (int64, error)
	FetchStats(ctx context.Context, keep model.EntryFilter) ([]model.Entry, error)
}

// RankedEntry is a reported counter with its 1-based position.
type RankedEntry struct {
	Rank  int
	Name  string
	Value int64
}

// Report contains precomputed data for stats rendering.
type Report struct {
	Count     int64
	Sum       int64
	Threshold int64
	Pattern   string
	Entries   []RankedEntry
}

// ThresholdPolicy controls what happens to an adaptive threshold after use.
type ThresholdPolicy int

const (
	// CacheDerived replaces the adaptive threshold with the derived value, so
	// later runs of the same command reuse it.
	CacheDerived ThresholdPolicy = iota
	// RederiveEachRun keeps the command adaptive and derives on every run.
	RederiveEachRun
)

// Option configures a Command.
type Option func(*Command)

// WithPolicy sets the adaptive threshold policy.
func WithPolicy(policy ThresholdPolicy) Option {
	return func(c *Command) {
		c.policy = policy
	}
}

// Command builds stats reports for a threshold and name pattern.
type Command struct {
	threshold Threshold
	pattern   string
	policy    ThresholdPolicy
}

// NewCommand returns a command with an explicit threshold and pattern.
func NewCommand(threshold Threshold, pattern string, opts ...Option) *Command {
	c := &Command{
		threshold: threshold,
		pattern:   pattern,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithThreshold returns a command that matches every name.
func WithThreshold(threshold Threshold, opts ...Option) *Command {
	return NewCommand(threshold, "", opts...)
}

// WithPattern returns a command that reports every value.
func WithPattern(pattern string, opts ...Option) *Command {
	return NewCommand(Fixed(0), pattern, opts...)
}

// FromConfig builds a command from the raw stats configuration.
func FromConfig(cfg model.StatsConfig) (*Command, error) {
	threshold, err := ThresholdFromLimit(cfg.Limit)
	if err != nil {
		return nil, err
	}
	policy := CacheDerived
	if cfg.Rederive {
		policy = RederiveEachRun
	}
	return NewCommand(threshold, cfg.Pattern, WithPolicy(policy)), nil
}

// Threshold returns the currently configured threshold.
func (c *Command) Threshold() Threshold {
	return c.threshold
}

// Pattern returns the name filter.
func (c *Command) Pattern() string {
	return c.pattern
}

// Execute queries src and builds a report. Errors from src are returned as is.
func (c *Command) Execute(ctx context.Context, src Source) (Report, error) {
	count, err := src.CountRecords(ctx)
	if err != nil {
		return Report{}, err
	}
	sum, err := src.SumRecords(ctx)
	if err != nil {
		return Report{}, err
	}

	effective := c.threshold.Resolve(count, sum)
	if c.threshold.IsAdaptive() && c.policy == CacheDerived {
		c.threshold = effective
	}

	limit := effective.Value()
	pattern := c.pattern
	entries, err := src.FetchStats(ctx, func(e model.Entry) bool {
		return MeetsThreshold(e.Value, limit) && MatchesPattern(e.Name, pattern)
	})
	if err != nil {
		return Report{}, err
	}

	return Report{
		Count:     count,
		Sum:       sum,
		Threshold: limit,
		Pattern:   pattern,
		Entries:   rankEntries(entries),
	}, nil
}

func rankEntries(entries []model.Entry) []RankedEntry {
	ranked := make([]RankedEntry, len(entries))
	for i, e := range entries {
		ranked[i] = RankedEntry{
			Rank:  i + 1,
			Name:  e.Name,
			Value: e.Value,
		}
	}
	return ranked
}
