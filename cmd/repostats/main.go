// Package main provides the CLI entrypoint for repostats.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/repostats/internal/config"
	"github.com/verte-zerg/repostats/internal/console"
	"github.com/verte-zerg/repostats/internal/consoleui"
	"github.com/verte-zerg/repostats/internal/model"
	"github.com/verte-zerg/repostats/internal/server"
	"github.com/verte-zerg/repostats/internal/stats"
	"github.com/verte-zerg/repostats/internal/store"
)

const (
	defaultThreshold = stats.AdaptiveLimit
	defaultLogLevel  = "info"
)

var (
	dbPath string

	statsThreshold int64
	statsPattern   string
	statsColor     bool

	recordCount int64

	serveAddr string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "repostats",
		Short:         "Request statistics for an artifact repository",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "path to the SQLite database (default: XDG data dir)")

	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newRecordCmd())
	rootCmd.AddCommand(newConsoleCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats [threshold|pattern] [pattern]",
		Short: "Show request statistics",
		Long: "Show request counters whose value is at least the threshold and whose name contains the pattern.\n" +
			"A threshold of -1 derives it from the mean counter value plus 20%.\n" +
			"Pass negative positional thresholds after --, e.g. 'repostats stats -- -1'.\n" +
			"With --threshold or --pattern set, a single argument fills the other setting.",
		Args: cobra.MaximumNArgs(2),
		RunE: runStatsCmd,
	}
	cmd.Flags().Int64Var(&statsThreshold, "threshold", defaultThreshold, "minimum counter value, -1 for adaptive")
	cmd.Flags().StringVar(&statsPattern, "pattern", "", "only show counters whose name contains this text")
	cmd.Flags().BoolVar(&statsColor, "color", false, "force bold emphasis even when not writing to a terminal")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, args []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyInt64Config(cmd, "threshold", &statsThreshold, fileCfg.Stats.Threshold)
	applyStringConfig(cmd, "pattern", &statsPattern, fileCfg.Stats.Pattern)

	cfg, err := console.ParseStatsArgs(args, model.StatsConfig{
		Limit:   statsThreshold,
		Pattern: statsPattern,
	}, console.StatsFlags{
		Limit:   cmd.Flags().Changed("threshold"),
		Pattern: cmd.Flags().Changed("pattern"),
	})
	if err != nil {
		return err
	}
	statsCmd, err := stats.FromConfig(cfg)
	if err != nil {
		return err
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	report, err := statsCmd.Execute(cmd.Context(), st)
	if err != nil {
		return fmt.Errorf("failed to build report: %w", err)
	}
	out := cmd.OutOrStdout()
	if err := stats.WriteLines(out, stats.RenderLines(report, stats.EmphasisFor(out, statsColor))); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func newRecordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record <name>...",
		Short: "Increment request counters",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runRecordCmd,
	}
	cmd.Flags().Int64Var(&recordCount, "count", 1, "amount to add to each counter")
	return cmd
}

func runRecordCmd(cmd *cobra.Command, args []string) error {
	if recordCount <= 0 {
		return fmt.Errorf("--count must be > 0")
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	for _, name := range args {
		if err := st.RecordN(cmd.Context(), name, recordCount); err != nil {
			return fmt.Errorf("failed to record %s: %w", name, err)
		}
	}
	return nil
}

func newConsoleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Open the interactive operator console",
		Args:  cobra.NoArgs,
		RunE:  runConsoleCmd,
	}
}

func runConsoleCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	opts := consoleOptions(fileCfg)
	opts.Emphasis = consoleui.Emphasis
	c := console.New(st, opts)

	program := tea.NewProgram(consoleui.NewModel(cmd.Context(), c), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run console: %w", err)
	}
	return nil
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve remote command execution and Prometheus metrics",
		Args:  cobra.NoArgs,
		RunE:  runServeCmd,
	}
	cmd.Flags().StringVar(&serveAddr, "addr", server.DefaultAddr, "listen address")
	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "addr", &serveAddr, fileCfg.Server.Addr)

	level := defaultLogLevel
	if fileCfg.Log.Level != nil {
		level = *fileCfg.Log.Level
	}
	if err := setupLogger(level); err != nil {
		return err
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	srvCfg := server.Config{Addr: serveAddr}
	if fileCfg.Server.MetricsPath != nil {
		srvCfg.MetricsPath = *fileCfg.Server.MetricsPath
	}
	for _, tok := range fileCfg.Server.Tokens {
		srvCfg.Tokens = append(srvCfg.Tokens, server.Token{
			Alias:   tok.Alias,
			Secret:  tok.Token,
			Manager: tok.Manager,
		})
	}
	if len(srvCfg.Tokens) == 0 {
		slog.Warn("no access tokens configured; remote execution is disabled")
	}

	srv := server.New(srvCfg, console.New(st, consoleOptions(fileCfg)), st)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	slog.Info("shutdown complete")
	return nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o600); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func openStore() (*store.Store, error) {
	path := dbPath
	if path == "" {
		path = config.DefaultDBPath()
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	return st, nil
}

func closeStore(st *store.Store) {
	if cerr := st.Close(); cerr != nil {
		logErrf("failed to close db: %v\n", cerr)
	}
}

func consoleOptions(fileCfg config.FileConfig) console.Options {
	opts := console.DefaultOptions()
	if fileCfg.Stats.Threshold != nil {
		opts.DefaultLimit = *fileCfg.Stats.Threshold
	}
	if fileCfg.Stats.Pattern != nil {
		opts.DefaultPattern = *fileCfg.Stats.Pattern
	}
	if fileCfg.Stats.Rederive != nil {
		opts.Rederive = *fileCfg.Stats.Rederive
	}
	if fileCfg.Server.MaxCommandLength != nil {
		opts.MaxCommandLength = *fileCfg.Server.MaxCommandLength
	}
	return opts
}

func setupLogger(level string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: lvl,
	}))
	slog.SetDefault(logger)
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyInt64Config(cmd *cobra.Command, name string, target, value *int64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# repostats configuration
# Uncomment a value to enable it. CLI flags override config values.

[stats]
# threshold = %d          # Minimum counter value; -1 derives it from the mean + 20%%
# pattern = ""            # Only show counters whose name contains this text
# rederive = false        # Console and server: derive the adaptive threshold on every bare 'stats'

[server]
# addr = %q
# metrics-path = %q
# max-command-length = %d

# [[server.tokens]]
# alias = "admin"
# token = "change-me"
# manager = true

[log]
# level = %q
`,
		defaultThreshold,
		server.DefaultAddr,
		server.DefaultMetricsPath,
		console.DefaultMaxCommandLength,
		defaultLogLevel,
	)
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
