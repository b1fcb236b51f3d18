package ui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/animeqa/animeqa/internal/config"
	"github.com/charmbracelet/huh"
)

// ErrAborted is returned when the user leaves a prompt with esc or ctrl+c.
var ErrAborted = errors.New("aborted")

// PromptInitialize asks for the retrieval settings, starting from ic. It
// reports whether the user also wants them saved to the config file.
func PromptInitialize(ic *config.InitializeConfig) (save bool, err error) {
	form := newInitializeForm(ic, &save)
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, ErrAborted
		}
		return false, err
	}
	return save, nil
}

func newInitializeForm(ic *config.InitializeConfig, save *bool) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Data directory").
				Description("Folder with the anime documents to index").
				Value(&ic.DataDir).
				Validate(requireValue("data directory")),
			huh.NewInput().
				Title("Vector store directory").
				Value(&ic.DBDir).
				Validate(requireValue("vector store directory")),
			huh.NewInput().
				Title("Embedding model").
				Value(&ic.EmbeddingModel).
				Validate(requireValue("embedding model")),
			huh.NewInput().
				Title("LLM model").
				Placeholder("groq:llama-3.1-8b-instant").
				Value(&ic.LLMModel).
				Validate(requireValue("LLM model")),
			huh.NewSelect[int]().
				Title("Documents to retrieve").
				Options(kDocsOptions()...).
				Value(&ic.KDocs),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save these settings to the config file?").
				Affirmative("Save").
				Negative("Just this once").
				Value(save),
		),
	)
}

func requireValue(name string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}

func kDocsOptions() []huh.Option[int] {
	opts := make([]huh.Option[int], 0, config.MaxKDocs-config.MinKDocs+1)
	for k := config.MinKDocs; k <= config.MaxKDocs; k++ {
		opts = append(opts, huh.NewOption(strconv.Itoa(k), k))
	}
	return opts
}
