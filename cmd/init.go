package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/animeqa/animeqa/internal/backend"
	"github.com/animeqa/animeqa/internal/config"
	"github.com/animeqa/animeqa/internal/exitcode"
	"github.com/animeqa/animeqa/internal/ui"
	"github.com/spf13/cobra"
)

var (
	initDataDir        string
	initDBDir          string
	initEmbeddingModel string
	initLLMModel       string
	initKDocs          int
	initInteractive    bool
	initSave           bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Build the backend's retrieval index",
	Long: `Ask the backend to (re)build its document index and answer pipeline.

Settings start from the "initialize" section of the config file. Flags
override them, and -i opens a form to edit them interactively.

Examples:
  animeqa init
  animeqa init --data-dir ./data --k-docs 5
  animeqa init -i
  animeqa init --llm-model llama3 --save`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initDataDir, "data-dir", "", "Directory of source documents")
	initCmd.Flags().StringVar(&initDBDir, "db-dir", "", "Directory of the vector store")
	initCmd.Flags().StringVar(&initEmbeddingModel, "embedding-model", "", "Embedding model name")
	initCmd.Flags().StringVar(&initLLMModel, "llm-model", "", "Answer model name")
	initCmd.Flags().IntVar(&initKDocs, "k-docs", 0, "Documents retrieved per question (1-10)")
	initCmd.Flags().BoolVarP(&initInteractive, "interactive", "i", false, "Edit the settings in a form first")
	initCmd.Flags().BoolVar(&initSave, "save", false, "Save the settings to the config file")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	settings := initSettings(cmd, cfg.Initialize)

	if initInteractive {
		save, err := ui.PromptInitialize(&settings)
		if err != nil {
			if errors.Is(err, ui.ErrAborted) {
				return exitcode.Cancel()
			}
			return err
		}
		initSave = initSave || save
	}

	if err := settings.Validate(); err != nil {
		return exitcode.ExitError{Code: exitcode.Validation, Message: err.Error(), Err: err}
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	styles := ui.DefaultStyles()
	out := cmd.OutOrStdout()
	fmt.Fprintln(cmd.ErrOrStderr(), styles.Muted.Render("Initializing "+cfg.BackendURL+"..."))

	msg, err := newClient(0).Initialize(ctx, backend.InitializeRequest{
		DataDir:        settings.DataDir,
		DBDir:          settings.DBDir,
		EmbeddingModel: settings.EmbeddingModel,
		LLMModel:       settings.LLMModel,
		KDocs:          settings.KDocs,
	})
	if err != nil {
		logger.Error("initialize_failed", "error", err)
		return exitcode.FromError(err)
	}
	fmt.Fprintln(out, styles.FormatResult(true, msg))

	if initSave {
		cfg.Initialize = settings
		path, err := config.SaveInitialize(settings, configPath)
		if err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		fmt.Fprintln(out, styles.Muted.Render("Saved settings to "+path))
	}
	return nil
}

// initSettings applies the flags the user set on top of base.
func initSettings(cmd *cobra.Command, base config.InitializeConfig) config.InitializeConfig {
	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		base.DataDir = initDataDir
	}
	if flags.Changed("db-dir") {
		base.DBDir = initDBDir
	}
	if flags.Changed("embedding-model") {
		base.EmbeddingModel = initEmbeddingModel
	}
	if flags.Changed("llm-model") {
		base.LLMModel = initLLMModel
	}
	if flags.Changed("k-docs") {
		base.KDocs = initKDocs
	}
	return base
}
