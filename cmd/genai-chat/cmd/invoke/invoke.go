package invoke

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"genai-chat/cmd/genai-chat/cmd/cli"
	"genai-chat/internal/app"
)

var (
	flags      cli.PromptFlags
	jsonOutput bool
)

func init() {
	flags.Register(Cmd)
	Cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the whole reply message as JSON")
}

// Cmd represents the invoke command
var Cmd = &cobra.Command{
	Use:   "invoke [prompt]",
	Short: "Send one prompt and print the complete reply",
	Long: `Send one prompt and print the complete reply.

The prompt is taken from the arguments, or from stdin when there are none.
Images are attached with --image, which may be repeated.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		prompt, err := cli.Prompt(args, cmd.InOrStdin())
		if err != nil {
			return err
		}
		opts, err := flags.Options(cmd)
		if err != nil {
			return err
		}
		settings, err := cli.LoadSettings(cmd)
		if err != nil {
			return err
		}
		if flags.ConvertSystem {
			settings.Chat.Model.ConvertSystemMessageToHuman = true
		}

		model, err := app.InitializeChatModel(cmd.Context(), settings)
		if err != nil {
			return err
		}
		msg, err := model.Invoke(cmd.Context(), flags.Messages(prompt), opts...)
		if err != nil {
			return err
		}

		if jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(msg)
		}
		fmt.Fprintln(cmd.OutOrStdout(), msg.Text())
		if u := msg.ResponseMetadata.Usage; u != nil && settings.Env.LogLevel == "debug" {
			fmt.Fprintf(cmd.ErrOrStderr(), "tokens: %d prompt, %d completion\n", u.PromptTokens, u.CompletionTokens)
		}
		return nil
	},
}
