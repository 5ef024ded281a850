// Package loadgen seeds a running wearsense service with sensor readings and
// comfort votes and checks that the analytics report accounts for them.
package loadgen

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/wearsense/pkg/logger"
)

// Default configuration constants.
const (
	defaultSessions        = 200
	defaultReadings        = 2
	defaultVotes           = 3
	defaultWorkers         = 2 // multiplier for runtime.NumCPU()
	defaultTimeout         = 30 * time.Second
	defaultRunTimeout      = 10 * time.Minute
	defaultBaseURL         = "http://localhost:9080"
	logFilePermission      = 0o600
	logFileTimestampLayout = "20060102_150405"
)

// SetupLogging initializes the global logger writing to stdout and, when
// logFile is set, to that file as well.
func SetupLogging(logFile, format string) (io.Closer, error) {
	if logFile == "" {
		return io.NopCloser(nil), logger.InitWithFormat(format, os.Stdout)
	}
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}
	if err := logger.InitWithFormat(format, io.MultiWriter(os.Stdout, file)); err != nil {
		_ = file.Close()
		return nil, err
	}
	return file, nil
}

// NewCommand builds the wearsense-load root command.
func NewCommand() *cobra.Command {
	cfg := &Config{}
	var (
		logFile    string
		logFormat  string
		runTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "wearsense-load",
		Short: "Seed a wearsense service with readings and comfort votes",
		Long: `wearsense-load creates many sessions concurrently. Each session posts
sensor readings (which create the session) and then its comfort votes.
Afterwards the combined report is fetched and the comfort distribution is
checked against what was submitted.`,
		Example: `  wearsense-load --sessions 1000 --workers 16
  wearsense-load --url http://localhost:8080 --votes 5 --output plan.json`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if logFile == "timestamp" {
				logFile = "load_" + time.Now().Format(logFileTimestampLayout) + ".log"
			}
			closer, err := SetupLogging(logFile, logFormat)
			if err != nil {
				return err
			}
			defer closer.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout)
			defer cancel()

			_, err = Run(ctx, cfg)
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.BaseURL, "url", defaultBaseURL, "Base URL of the service")
	flags.IntVar(&cfg.Sessions, "sessions", defaultSessions, "Number of sessions to seed")
	flags.IntVar(&cfg.ReadingsPerSession, "readings", defaultReadings, "Sensor readings per session")
	flags.IntVar(&cfg.VotesPerSession, "votes", defaultVotes, "Comfort votes per session")
	flags.IntVar(&cfg.Workers, "workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent sessions")
	flags.DurationVar(&cfg.Timeout, "timeout", defaultTimeout, "HTTP request timeout")
	flags.Uint64Var(&cfg.Seed, "seed", uint64(time.Now().UnixNano()), "Seed for generated values")
	flags.StringVar(&cfg.OutputFile, "output", "", "Write the generated plan to this JSON file")
	flags.BoolVar(&cfg.Verbose, "verbose", false, "Log every failed request")
	flags.StringVar(&logFile, "log", "", `Also log to this file ("timestamp" picks a name)`)
	flags.StringVar(&logFormat, "log-format", logger.FormatText, "Log format: text or json")
	flags.DurationVar(&runTimeout, "run-timeout", defaultRunTimeout, "Upper bound for the whole run")

	return cmd
}
