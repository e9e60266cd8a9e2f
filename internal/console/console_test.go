package console

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/repostats/internal/model"
	"github.com/verte-zerg/repostats/internal/stats"
	"github.com/verte-zerg/repostats/internal/store"
)

func newTestConsole(t *testing.T, opts Options) (*Console, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "repostats.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = st.Close()
	})
	ctx := context.Background()
	require.NoError(t, st.RecordN(ctx, "a/b/x", 10))
	require.NoError(t, st.RecordN(ctx, "a/b/y", 30))
	require.NoError(t, st.RecordN(ctx, "c/d", 5))
	return New(st, opts), st
}

func TestParseStatsArgs(t *testing.T) {
	defaults := model.StatsConfig{Limit: -1, Pattern: "default", Rederive: true}
	cases := []struct {
		name string
		args []string
		want model.StatsConfig
	}{
		{name: "no args", args: nil, want: defaults},
		{name: "threshold", args: []string{"12"}, want: model.StatsConfig{Limit: 12, Rederive: true}},
		{name: "adaptive", args: []string{"-1"}, want: model.StatsConfig{Limit: -1, Rederive: true}},
		{name: "pattern", args: []string{"a/b"}, want: model.StatsConfig{Limit: 0, Pattern: "a/b", Rederive: true}},
		{name: "both", args: []string{"3", "a/b"}, want: model.StatsConfig{Limit: 3, Pattern: "a/b", Rederive: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseStatsArgs(tc.args, defaults, StatsFlags{})
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := ParseStatsArgs([]string{"x", "y"}, defaults, StatsFlags{})
	require.Error(t, err)
	_, err = ParseStatsArgs([]string{"1", "2", "3"}, defaults, StatsFlags{})
	require.Error(t, err)
}

func TestParseStatsArgsKeepsFixedSettings(t *testing.T) {
	defaults := model.StatsConfig{Limit: 10, Pattern: "foo"}

	got, err := ParseStatsArgs([]string{"lib"}, defaults, StatsFlags{Limit: true})
	require.NoError(t, err)
	assert.Equal(t, model.StatsConfig{Limit: 10, Pattern: "lib"}, got)

	// With the threshold fixed, a numeric argument is still a pattern.
	got, err = ParseStatsArgs([]string{"2024"}, defaults, StatsFlags{Limit: true})
	require.NoError(t, err)
	assert.Equal(t, model.StatsConfig{Limit: 10, Pattern: "2024"}, got)

	got, err = ParseStatsArgs([]string{"5"}, defaults, StatsFlags{Pattern: true})
	require.NoError(t, err)
	assert.Equal(t, model.StatsConfig{Limit: 5, Pattern: "foo"}, got)

	_, err = ParseStatsArgs([]string{"lib"}, defaults, StatsFlags{Pattern: true})
	require.Error(t, err)
	_, err = ParseStatsArgs([]string{"lib"}, defaults, StatsFlags{Limit: true, Pattern: true})
	require.Error(t, err)
	_, err = ParseStatsArgs([]string{"1", "lib"}, defaults, StatsFlags{Limit: true})
	require.Error(t, err)

	got, err = ParseStatsArgs(nil, defaults, StatsFlags{Limit: true, Pattern: true})
	require.NoError(t, err)
	assert.Equal(t, defaults, got)
}

func TestExecuteStats(t *testing.T) {
	c, _ := newTestConsole(t, DefaultOptions())
	out, err := c.Execute(context.Background(), "stats 10 a/b")
	require.NoError(t, err)
	want := strings.Join([]string{
		"",
		"Statistics:",
		"  Requests count: 3 (sum: 45)",
		"  Recorded:  (limiter: 10, pattern: 'a/b')",
		"    1. (10) a/b/x",
		"    2. (30) a/b/y",
		"",
	}, "\n") + "\n"
	assert.Equal(t, want, out)
}

func TestExecuteStatsDefaultsToAdaptive(t *testing.T) {
	c, _ := newTestConsole(t, DefaultOptions())
	out, err := c.Execute(context.Background(), "stats")
	require.NoError(t, err)
	// mean 15, +20% = 18
	assert.Contains(t, out, "(limiter: 18, pattern: '')")
	assert.Contains(t, out, "    1. (30) a/b/y")
	assert.NotContains(t, out, "a/b/x")
}

func TestExecuteStatsAdaptivePolicy(t *testing.T) {
	cases := []struct {
		name        string
		rederive    bool
		wantLimiter string
		wantHidden  bool
	}{
		// mean 15 -> 18, reused after the new record
		{name: "cache derived", rederive: false, wantLimiter: "(limiter: 18, pattern: '')", wantHidden: false},
		// mean 35 -> 42 on the second run
		{name: "rederive each run", rederive: true, wantLimiter: "(limiter: 42, pattern: '')", wantHidden: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.Rederive = tc.rederive
			c, _ := newTestConsole(t, opts)
			ctx := context.Background()

			out, err := c.Execute(ctx, "stats")
			require.NoError(t, err)
			assert.Contains(t, out, "(limiter: 18, pattern: '')")

			_, err = c.Execute(ctx, "record z 95")
			require.NoError(t, err)

			out, err = c.Execute(ctx, "stats")
			require.NoError(t, err)
			assert.Contains(t, out, tc.wantLimiter)
			assert.Contains(t, out, "(95) z")
			if tc.wantHidden {
				assert.NotContains(t, out, "a/b/y")
			} else {
				assert.Contains(t, out, "    1. (30) a/b/y")
			}
		})
	}
}

func TestExecuteResetDropsDerivedThreshold(t *testing.T) {
	c, _ := newTestConsole(t, DefaultOptions())
	ctx := context.Background()

	out, err := c.Execute(ctx, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "(limiter: 18, pattern: '')")

	_, err = c.Execute(ctx, "reset")
	require.NoError(t, err)
	_, err = c.Execute(ctx, "record q 2")
	require.NoError(t, err)

	out, err = c.Execute(ctx, "stats")
	require.NoError(t, err)
	// mean 2, +20% rounds to 2
	assert.Contains(t, out, "(limiter: 2, pattern: '')")
	assert.Contains(t, out, "    1. (2) q")
}

func TestExecuteStatsWithArgsIgnoresCachedThreshold(t *testing.T) {
	c, _ := newTestConsole(t, DefaultOptions())
	ctx := context.Background()

	_, err := c.Execute(ctx, "stats")
	require.NoError(t, err)
	out, err := c.Execute(ctx, "stats -1")
	require.NoError(t, err)
	assert.Contains(t, out, "(limiter: 18, pattern: '')")
	_, err = c.Execute(ctx, "record z 95")
	require.NoError(t, err)
	out, err = c.Execute(ctx, "stats -1")
	require.NoError(t, err)
	assert.Contains(t, out, "(limiter: 42, pattern: '')")
}

func TestExecuteStatsPatternOnly(t *testing.T) {
	c, _ := newTestConsole(t, DefaultOptions())
	out, err := c.Execute(context.Background(), "stats c/")
	require.NoError(t, err)
	assert.Contains(t, out, "(limiter: 0, pattern: 'c/')")
	assert.Contains(t, out, "    1. (5) c/d")
}

func TestExecuteStatsUsesEmphasis(t *testing.T) {
	opts := DefaultOptions()
	opts.Emphasis = func(s string) string { return "<" + s + ">" }
	c, _ := newTestConsole(t, opts)
	out, err := c.Execute(context.Background(), "stats 100")
	require.NoError(t, err)
	assert.Contains(t, out, "  Recorded: []  (limiter: <100>, pattern: '<>')")
}

func TestExecuteStatsRejectsInvalidThreshold(t *testing.T) {
	c, _ := newTestConsole(t, DefaultOptions())
	_, err := c.Execute(context.Background(), "stats -4")
	require.ErrorIs(t, err, stats.ErrInvalidThreshold)
}

func TestExecuteRecordAndReset(t *testing.T) {
	c, st := newTestConsole(t, DefaultOptions())
	ctx := context.Background()

	out, err := c.Execute(ctx, "record e/f 4")
	require.NoError(t, err)
	assert.Equal(t, "Recorded e/f (+4)\n", out)
	_, err = c.Execute(ctx, "record e/f")
	require.NoError(t, err)

	entries, err := st.FetchStats(ctx, func(e model.Entry) bool { return e.Name == "e/f" })
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(5), entries[0].Value)

	_, err = c.Execute(ctx, "record e/f zero")
	require.Error(t, err)
	_, err = c.Execute(ctx, "record")
	require.Error(t, err)

	out, err = c.Execute(ctx, "RESET")
	require.NoError(t, err)
	assert.Equal(t, "Statistics cleared\n", out)
	count, err := st.CountRecords(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestExecuteHelp(t *testing.T) {
	c, _ := newTestConsole(t, DefaultOptions())
	out, err := c.Execute(context.Background(), "help")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Available commands:\n"))
	for _, name := range commandOrder {
		assert.Contains(t, out, commands[name].usage)
	}
}

func TestExecuteRejectsBadLines(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxCommandLength = 8
	c, _ := newTestConsole(t, opts)
	ctx := context.Background()

	_, err := c.Execute(ctx, "   ")
	require.ErrorIs(t, err, ErrEmptyCommand)

	_, err = c.Execute(ctx, "stats 1 a/b/c")
	require.ErrorIs(t, err, ErrCommandTooLong)
	assert.Contains(t, err.Error(), "(13 > 8)")

	_, err = c.Execute(ctx, "deploy")
	require.ErrorIs(t, err, ErrUnknownCommand)
}

type failingStore struct {
	Store
	err error
}

func (f failingStore) CountRecords(context.Context) (int64, error) {
	return 0, f.err
}

func TestExecuteStatsPropagatesStoreErrors(t *testing.T) {
	boom := errors.New("store unavailable")
	c := New(failingStore{err: boom}, Options{})
	_, err := c.Execute(context.Background(), "stats 0")
	require.ErrorIs(t, err, boom)
	assert.Equal(t, DefaultMaxCommandLength, c.MaxCommandLength())
}
