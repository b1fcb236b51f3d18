package cmd

import (
	"github.com/animeqa/animeqa/internal/backend"
	"github.com/animeqa/animeqa/internal/tui/form"
	"github.com/animeqa/animeqa/internal/ui"
	"github.com/spf13/cobra"
)

var formCmd = &cobra.Command{
	Use:   "form",
	Short: "Open the interactive question form",
	Long: `Open the interactive question form.

Keys:
  enter       submit and wait for the whole answer
  ctrl+s      stream the answer as it is generated
  esc         cancel the running request
  ctrl+r      clear the question and the answer
  alt+enter   insert a newline
  ctrl+c      quit`,
	Args: cobra.NoArgs,
	RunE: runForm,
}

func init() {
	rootCmd.AddCommand(formCmd)
}

func runForm(cmd *cobra.Command, args []string) error {
	transport, err := backend.ParseTransport(cfg.StreamTransport)
	if err != nil {
		return err
	}
	b, err := form.NewClientBackend(newClient(0), transport)
	if err != nil {
		return err
	}

	logger.Info("form_start", "backend_url", cfg.BackendURL, "transport", string(transport))
	return form.Run(cmd.Context(), form.Options{
		Backend: b,
		Styles:  ui.DefaultStyles(),
		Logger:  logger,
	})
}
