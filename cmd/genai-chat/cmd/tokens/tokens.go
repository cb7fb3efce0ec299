package tokens

import (
	"fmt"

	"github.com/spf13/cobra"

	"genai-chat/cmd/genai-chat/cmd/cli"
	"genai-chat/internal/app"
)

// Cmd represents the tokens command
var Cmd = &cobra.Command{
	Use:   "tokens [text]",
	Short: "Count the tokens a text occupies for the configured model",
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := cli.Prompt(args, cmd.InOrStdin())
		if err != nil {
			return err
		}
		settings, err := cli.LoadSettings(cmd)
		if err != nil {
			return err
		}
		model, err := app.InitializeChatModel(cmd.Context(), settings)
		if err != nil {
			return err
		}
		n, err := model.GetNumTokens(cmd.Context(), text)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), n)
		return nil
	},
}
