package stream

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"genai-chat/cmd/genai-chat/cmd/cli"
	"genai-chat/internal/app"
)

var flags cli.PromptFlags

func init() {
	flags.Register(Cmd)
}

// Cmd represents the stream command
var Cmd = &cobra.Command{
	Use:   "stream [prompt]",
	Short: "Send one prompt and print the reply as it arrives",
	Long: `Send one prompt and print the reply chunk by chunk as it arrives.

Takes the same flags as invoke. Interrupting the command closes the stream.`,
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
		s, err := model.Stream(cmd.Context(), flags.Messages(prompt), opts...)
		if err != nil {
			return err
		}
		defer s.Close()

		out := cmd.OutOrStdout()
		for {
			chunk, err := s.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				fmt.Fprintln(out)
				return err
			}
			fmt.Fprint(out, chunk.Content)
		}
		fmt.Fprintln(out)
		return nil
	},
}
