package batch

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"genai-chat/cmd/genai-chat/cmd/cli"
	"genai-chat/internal/app"
	"genai-chat/internal/app/chat"
	"genai-chat/internal/app/runner"
	"genai-chat/internal/app/runner/export"
	"genai-chat/internal/config"
)

var (
	inputPath   string
	outputPath  string
	system      string
	concurrency int
	progress    bool
	safety      []string
)

func init() {
	Cmd.Flags().StringVarP(&inputPath, "input", "f", "-", "file with one prompt per line, - for stdin")
	Cmd.Flags().StringVarP(&outputPath, "output", "o", "", "write the results to this .xlsx file")
	Cmd.Flags().StringVarP(&system, "system", "s", "", "system instruction sent with every prompt")
	Cmd.Flags().IntVar(&concurrency, "concurrency", 0, "maximum number of requests in flight (1-100)")
	Cmd.Flags().BoolVar(&progress, "progress", false, "show a progress bar even when stderr is not a terminal")
	Cmd.Flags().StringSliceVar(&safety, "safety", nil, "safety setting as CATEGORY=THRESHOLD (repeatable)")
}

// Cmd represents the batch command
var Cmd = &cobra.Command{
	Use:   "batch",
	Short: "Send a file of prompts concurrently",
	Long: `Send a file of prompts concurrently, each as its own conversation.

- One prompt per line; blank lines and lines starting with # are skipped
- Replies are printed in input order, or exported to Excel with --output
- A failed prompt does not stop the others; the command exits non-zero
  when any prompt failed`,
	RunE: func(cmd *cobra.Command, args []string) error {
		prompts, err := readPrompts(cmd.InOrStdin())
		if err != nil {
			return err
		}
		if len(prompts) == 0 {
			return fmt.Errorf("no prompts in %s", inputPath)
		}

		settings, err := cli.LoadSettings(cmd)
		if err != nil {
			return err
		}
		if concurrency != 0 {
			if err := config.ValidateConcurrency(concurrency); err != nil {
				return err
			}
			settings.Chat.Model.MaxConcurrency = concurrency
		}
		var opts []chat.CallOption
		if len(safety) > 0 {
			s, err := cli.ParseSafety(safety)
			if err != nil {
				return err
			}
			opts = append(opts, chat.WithSafetySettings(s))
		}

		model, err := app.InitializeChatModel(cmd.Context(), settings)
		if err != nil {
			return err
		}
		logger, err := cli.Logger(settings)
		if err != nil {
			return err
		}
		defer logger.Sync()

		r := runner.NewRunner(model, runner.ProgressConfig{
			Enabled: runner.ShouldShowProgress(progress),
			Writer:  cmd.ErrOrStderr(),
		}, logger)
		results, runErr := r.Run(cmd.Context(), prompts, system, opts...)

		if outputPath != "" {
			if err := export.ToExcel(results, outputPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d results to %s\n", len(results), outputPath)
		} else {
			printResults(cmd.OutOrStdout(), results)
		}

		if runErr != nil {
			failed := len(chat.BatchItemErrors(runErr))
			return fmt.Errorf("%d of %d prompts failed", failed, len(prompts))
		}
		return nil
	},
}

func readPrompts(stdin io.Reader) ([]string, error) {
	if inputPath == "-" {
		return runner.ReadPrompts(stdin)
	}
	f, err := os.Open(inputPath)
	if err != nil {
		return nil, fmt.Errorf("open prompts: %w", err)
	}
	defer f.Close()
	return runner.ReadPrompts(f)
}

func printResults(w io.Writer, results []runner.Result) {
	for _, res := range results {
		if res.Err != nil {
			fmt.Fprintf(w, "[%d] error: %v\n", res.Index+1, res.Err)
			continue
		}
		fmt.Fprintf(w, "[%d] %s\n", res.Index+1, res.Text())
	}
}
