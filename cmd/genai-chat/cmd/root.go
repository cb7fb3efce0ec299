package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"genai-chat/cmd/genai-chat/cmd/batch"
	"genai-chat/cmd/genai-chat/cmd/invoke"
	"genai-chat/cmd/genai-chat/cmd/serve"
	"genai-chat/cmd/genai-chat/cmd/stream"
	"genai-chat/cmd/genai-chat/cmd/tokens"
	"genai-chat/cmd/genai-chat/cmd/version"
	apperrors "genai-chat/internal/app/errors"
)

var (
	Verbose    bool
	ConfigPath string
	Model      string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "genai-chat",
	Short: "Chat with Gemini models from the command line or over HTTP",
	Long: `Chat with Gemini models from the command line or over HTTP.
- invoke and stream send one prompt, optionally with images and a system instruction
- batch sends a file of prompts concurrently and can export the replies to Excel
- serve starts the HTTP gateway with streaming, batch and token counting endpoints

The API key is read from GEMINI_API_KEY (or GOOGLE_API_KEY), a .env file is
loaded when present, and a YAML config file can be given with --config.`,
	TraverseChildren: true,
	SilenceUsage:     true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if apperrors.IsValidationError(err) {
			fmt.Fprintln(os.Stderr, "Check your environment, .env file or --config. See .env.example and config.example.yaml.")
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(invoke.Cmd)
	rootCmd.AddCommand(stream.Cmd)
	rootCmd.AddCommand(batch.Cmd)
	rootCmd.AddCommand(tokens.Cmd)
	rootCmd.AddCommand(serve.Cmd)
	rootCmd.AddCommand(version.Cmd)

	rootCmd.PersistentFlags().BoolVarP(&Verbose, "verbose", "V", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&ConfigPath, "config", "c", "",
		"config file (default is $GENAI_CHAT_CONFIG)")
	rootCmd.PersistentFlags().StringVarP(&Model, "model", "m", "",
		"model name, overrides the config file and GENAI_CHAT_MODEL")
}
