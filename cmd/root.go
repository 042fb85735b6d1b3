package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"stampede/internal/banner"
	"stampede/internal/cli"
	"stampede/internal/output"
	"stampede/internal/runner"
	"stampede/internal/storage"
)

// ErrRunFailed is returned with --fail-on-error when any call failed.
var ErrRunFailed = errors.New("one or more calls failed")

var (
	cfgFile string

	// CLI Flags
	noDelay       bool
	sequential    bool
	writeResponse bool
	writeRaw      bool
	delayMs       int
	dumpFailedIDs bool
	exportPath    string
	liveView      bool
	failOnError   bool
	noHistory     bool
)

var rootCmd = &cobra.Command{
	Use:   "stampede [count] [url] [body-file]",
	Short: "stampede - synchronized HTTP burst tester",
	Long: `
stampede fires a number of HTTP calls at one endpoint and reports how they fared.

By default every call is started at the same instant after a short countdown,
so they land on the server together. Use --sequential or --delay-between-calls
to send them one at a time instead.

A body file containing anything other than {} turns every call into a JSON POST.
Any activityId=<guid> in the URL is replaced by a fresh id per call.`,
	Example: `  stampede 100 http://localhost:8080/fast
  stampede 50 "http://localhost:8080/test?activityId=00000000-0000-0000-0000-000000000000" body.json
  stampede 10 http://localhost:8080/slow --delay-between-calls:250
  stampede 500 http://localhost:8080/error --no-delay --dump-failed-ids`,
	Args:          cobra.MaximumNArgs(3),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}

		cfg, err := buildConfig(args, runFlags{
			NoDelay:       noDelay,
			Sequential:    sequential,
			WriteResponse: writeResponse,
			WriteRaw:      writeRaw,
			DelayMs:       delayMs,
			DelaySet:      cmd.Flags().Changed("delay-between-calls"),
			DumpFailedIDs: dumpFailedIDs,
			OutDir:        viper.GetString("out-dir"),
			TimeoutSec:    viper.GetInt("timeout"),
			MaxConns:      viper.GetInt("max-conns"),
			Insecure:      viper.GetBool("insecure"),
		})
		if err != nil {
			return err
		}

		opts := cli.Options{
			TimingsFile: viper.GetString("timings-file"),
			ExportPath:  exportPath,
			Live:        liveView,
		}

		if !noHistory {
			store, err := openHistory()
			if err != nil {
				output.Logger.Warn("Run history disabled", "error", err)
			} else {
				defer store.Close()
				opts.History = store
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		summary, err := cli.Start(ctx, cfg, opts)
		if err != nil {
			return err
		}
		if failOnError && summary.AnyFailure {
			return ErrRunFailed
		}
		return nil
	},
}

// Execute runs the root command with os.Args.
func Execute() {
	// Custom Help with Banner
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Println(banner.GetString())
		cmd.Usage()
	})

	rootCmd.SetArgs(normalizeArgs(os.Args[1:]))

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(historyCmd)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.stampede.yaml)")
	pf.String("log-level", "info", "Log level (debug, info, warn, error)")
	pf.String("log-format", "text", "Log format (text or json)")
	pf.String("history-db", "", "Run history database (default is $HOME/.stampede/history.db)")

	f := rootCmd.Flags()
	f.BoolVar(&noDelay, "no-delay", false, "Skip the countdown before a synchronized burst")
	f.BoolVar(&sequential, "sequential", false, "Send one call at a time")
	f.BoolVar(&writeResponse, "write-response", false, "Write every response body to response-<slot>-<runId>.json")
	f.BoolVar(&writeRaw, "write-raw", false, "Write response bodies byte for byte instead of re-indented JSON")
	f.IntVar(&delayMs, "delay-between-calls", 0, "Delay in ms after each call, implies --sequential")
	f.BoolVar(&dumpFailedIDs, "dump-failed-ids", false, "Print the activity id of every failed call")
	f.String("out-dir", ".", "Directory for response files")
	f.String("timings-file", storage.DefaultTimingsFile, "Append-only run log")
	f.Int("timeout", runner.DefaultTimeoutSec, "Request timeout in seconds")
	f.Int("max-conns", runner.DefaultMaxConns, "Connection pool size")
	f.Bool("insecure", false, "Skip TLS certificate verification")
	f.StringVar(&exportPath, "export", "", "Write every call to this file (.json or CSV)")
	f.BoolVar(&liveView, "live", false, "Show a live dashboard instead of the glyph stream")
	f.BoolVar(&failOnError, "fail-on-error", false, "Exit with status 1 when any call failed")
	f.BoolVar(&noHistory, "no-history", false, "Do not record this run in the history database")

	for _, name := range []string{"log-level", "log-format", "history-db"} {
		viper.BindPFlag(name, pf.Lookup(name))
	}
	for _, name := range []string{"out-dir", "timings-file", "timeout", "max-conns", "insecure"} {
		viper.BindPFlag(name, f.Lookup(name))
	}

	rootCmd.SetGlobalNormalizationFunc(lowerCaseFlags)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigType("yaml")
			viper.SetConfigName(".stampede")
		}
	}
	viper.SetEnvPrefix("stampede")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			fmt.Fprintln(os.Stderr, "Error: reading config:", err)
			os.Exit(1)
		}
	}

	if err := output.Configure(os.Stderr, viper.GetString("log-level"), viper.GetString("log-format")); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func openHistory() (*storage.Store, error) {
	path := viper.GetString("history-db")
	if path == "" {
		var err error
		if path, err = storage.DefaultHistoryPath(); err != nil {
			return nil, err
		}
	}
	return storage.Open(path)
}

// runFlags are the resolved flag values a run is built from.
type runFlags struct {
	NoDelay       bool
	Sequential    bool
	WriteResponse bool
	WriteRaw      bool
	DelayMs       int
	DelaySet      bool
	DumpFailedIDs bool
	OutDir        string
	TimeoutSec    int
	MaxConns      int
	Insecure      bool
}

// buildConfig turns the positional arguments and flags into a validated run
// configuration: [count] [url] [body-file].
func buildConfig(args []string, f runFlags) (runner.Config, error) {
	cfg := runner.Config{
		Count:         runner.DefaultCallCount,
		Body:          []byte("{}"),
		Mode:          runner.ModeParallel,
		WriteResponse: f.WriteResponse,
		WriteRaw:      f.WriteRaw,
		OutDir:        f.OutDir,
		NoCountdown:   f.NoDelay,
		DumpFailedIDs: f.DumpFailedIDs,
		TimeoutSec:    f.TimeoutSec,
		MaxConns:      f.MaxConns,
		Insecure:      f.Insecure,
	}

	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return cfg, fmt.Errorf("%w: call count %q is not a number", runner.ErrInvalidConfig, args[0])
		}
		cfg.Count = n
	}

	if len(args) > 1 {
		cfg.URL = args[1]
	}

	if len(args) > 2 && !strings.HasPrefix(args[2], "--") {
		body, err := os.ReadFile(args[2])
		if err != nil {
			return cfg, fmt.Errorf("read body file: %w", err)
		}
		cfg.Body = body
	}

	if f.DelayMs < 0 {
		return cfg, fmt.Errorf("%w: delay between calls must not be negative, got %d", runner.ErrInvalidConfig, f.DelayMs)
	}
	if f.Sequential || f.DelaySet {
		cfg.Mode = runner.ModeSequential
		cfg.NoCountdown = true
		cfg.DelayBetweenCalls = time.Duration(f.DelayMs) * time.Millisecond
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

var helpAliases = map[string]bool{
	"--help": true,
	"-help":  true,
	"/help":  true,
	"--?":    true,
	"/?":     true,
}

// normalizeArgs rewrites the legacy argument spellings into ones cobra
// understands: every help alias becomes --help and
// --delay-between-calls:N becomes --delay-between-calls=N.
func normalizeArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		lower := strings.ToLower(a)
		switch {
		case helpAliases[lower]:
			out = append(out, "--help")
		case strings.HasPrefix(lower, "--delay-between-calls:"):
			out = append(out, "--delay-between-calls="+a[len("--delay-between-calls:"):])
		default:
			out = append(out, a)
		}
	}
	return out
}

func lowerCaseFlags(f *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ToLower(name))
}
