package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/animeqa/animeqa/internal/backend"
	"github.com/animeqa/animeqa/internal/config"
	"github.com/animeqa/animeqa/internal/exitcode"
	"github.com/animeqa/animeqa/internal/logging"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/animeqa/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&backendURLFlag, "backend-url", "", "Backend base URL (overrides config and env)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, error")
}

var rootCmd = &cobra.Command{
	Use:   "animeqa",
	Short: "Ask questions about anime from the terminal",
	Long: `animeqa sends questions to the Anime Q&A backend and shows the answers,
either all at once or streamed as they are generated.

Examples:
  animeqa                                   # interactive form
  animeqa ask "Who is the strongest Hashira?"
  animeqa ask --mode events "Recommend a slice of life anime"
  animeqa init -i                           # build the retrieval index
  animeqa config                            # view configuration`,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	SilenceUsage:      true,
	PersistentPreRunE: loadRuntime,
	RunE:              runForm,
}

var configPath string
var backendURLFlag string
var logLevelFlag string

// Loaded by loadRuntime before any command runs.
var cfg *config.Config
var logger = slog.Default()

func loadRuntime(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := loaded.ApplyOverrides(backendURLFlag, logLevelFlag); err != nil {
		return err
	}
	if err := loaded.Validate(); err != nil {
		return err
	}

	l, err := logging.Init(loaded.Log)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: file logging disabled: %v\n", err)
	}

	cfg = loaded
	logger = l
	logger.Debug("config_loaded", "backend_url", cfg.BackendURL, "command", cmd.Name())
	return nil
}

// newClient builds a backend client from the loaded config. A positive
// timeout replaces the configured buffered ceiling.
func newClient(timeout time.Duration) *backend.Client {
	if timeout <= 0 {
		timeout = cfg.Timeout
	}
	return backend.NewClient(cfg.BackendURL,
		backend.WithTimeout(timeout),
		backend.WithStreamTimeout(cfg.StreamTimeout),
		backend.WithLogger(logger),
	)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var exitErr exitcode.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(exitcode.Error)
	}
}
