// Command careonctl is the operator console for the Careon ledgers. It opens
// the same documents the API serves, guarded by the same locks.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/starlightdeck/careon/internal/app"
	"github.com/starlightdeck/careon/pkg/config"
	"github.com/starlightdeck/careon/pkg/logger"
	"github.com/starlightdeck/careon/pkg/redis"
)

const programName = "careonctl"

var globalFlags = struct {
	debug   bool
	envFile string
	output  string
}{}

type appKey struct{}

// session carries what every subcommand needs once the root has loaded config.
type session struct {
	cfg   *config.Config
	logg  *logger.Logger
	app   *app.App
	redis *redis.Client
	out   io.Writer
}

func (s *session) close() {
	if s == nil || s.redis == nil {
		return
	}
	if err := s.redis.Close(); err != nil {
		s.logg.Error(context.Background(), "error closing redis", err)
	}
}

func fromCommand(cmd *cobra.Command) (*session, error) {
	s, ok := cmd.Context().Value(appKey{}).(*session)
	if !ok || s == nil {
		return nil, fmt.Errorf("no session in command context")
	}
	return s, nil
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "Inspect and operate the Careon bank and deposit code ledgers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().
		BoolVarP(&globalFlags.debug, "debug", "D", false, "enable debug logging")
	rootCmd.PersistentFlags().
		StringVar(&globalFlags.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().
		StringVarP(&globalFlags.output, "output", "o", formatJSON, "output format: json or yaml")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := validateFormat(globalFlags.output); err != nil {
			return err
		}
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, s))
		return nil
	}
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if s, err := fromCommand(cmd); err == nil {
			s.close()
		}
	}

	rootCmd.AddCommand(
		summaryCommand(),
		historyCommand(),
		phrasesCommand(),
		mintCommand(),
		redeemCommand(),
		eventsCommand(),
		outstandingCommand(),
		purchaseCommand(),
		rewardCommand(),
		devtoolCommand(),
		repairCommand(),
		hashPasswordCommand(),
	)
	return rootCmd
}

func openSession(cmd *cobra.Command) (*session, error) {
	level := "info"
	if globalFlags.debug {
		level = "debug"
	}
	logg := logger.New(logger.Options{
		ServiceName: programName,
		Level:       logger.ParseLevel(level),
		Format:      "console",
		Output:      cmd.ErrOrStderr(),
	})

	if globalFlags.envFile != "" {
		if err := godotenv.Load(globalFlags.envFile); err != nil {
			logg.Debug(cmd.Context(), "env file not loaded, relying on environment")
		}
	}

	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		logg.Debug(cmd.Context(), fmt.Sprintf(format, args...))
	})); err != nil {
		return nil, fmt.Errorf("set GOMAXPROCS: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	s := &session{cfg: cfg, logg: logg, out: cmd.OutOrStdout()}
	if cfg.Redis.Enabled() {
		s.redis, err = redis.New(cmd.Context(), cfg.Redis, logg)
		if err != nil {
			return nil, fmt.Errorf("bootstrap redis: %w", err)
		}
	}

	s.app, err = app.New(cfg, logg, app.Options{Redis: s.redis})
	if err != nil {
		s.close()
		return nil, fmt.Errorf("wire services: %w", err)
	}
	return s, nil
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", programName, err)
		os.Exit(1)
	}
}
