// Package cli holds what the genai-chat subcommands share: settings
// resolution and the prompt flags of invoke and stream.
package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"genai-chat/internal/app/chat"
	"genai-chat/internal/app/logging"
	"genai-chat/internal/config"
)

// LoadSettings resolves settings from .env, the environment and the config
// file, then applies the --config, --model and --verbose flags.
func LoadSettings(cmd *cobra.Command) (*config.Settings, error) {
	envFile, err := config.LoadEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}
	envCfg, err := config.ParseEnv()
	if err != nil {
		return nil, err
	}

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		envCfg.ConfigPath = path
	}
	if model, _ := cmd.Flags().GetString("model"); model != "" {
		envCfg.Model = model
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		envCfg.LogLevel = "debug"
	}

	chatCfg, err := config.Resolve(envCfg)
	if err != nil {
		return nil, err
	}
	return &config.Settings{Env: envCfg, Chat: chatCfg, EnvFile: envFile}, nil
}

func Logger(settings *config.Settings) (*zap.Logger, error) {
	return logging.NewLoggerAt(settings.Env.Development, settings.Env.LogLevel)
}

// Prompt joins args, or reads all of stdin when there are none.
func Prompt(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read prompt: %w", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", fmt.Errorf("no prompt given")
	}
	return prompt, nil
}

// PromptFlags are the per-call flags of invoke and stream.
type PromptFlags struct {
	System          string
	Images          []string
	Temperature     float32
	MaxOutputTokens int32
	Stop            []string
	Safety          []string
	ConvertSystem   bool
}

func (f *PromptFlags) Register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.System, "system", "s", "", "system instruction sent before the prompt")
	fs.StringSliceVarP(&f.Images, "image", "i", nil,
		"image to attach: data: URL, gs:// or s3:// reference, http(s) URL or local path (repeatable)")
	fs.Float32VarP(&f.Temperature, "temperature", "t", 0, "sampling temperature between 0 and 2")
	fs.Int32Var(&f.MaxOutputTokens, "max-output-tokens", 0, "upper bound on generated tokens")
	fs.StringSliceVar(&f.Stop, "stop", nil, "stop sequence (repeatable)")
	fs.StringSliceVar(&f.Safety, "safety", nil,
		"safety setting as CATEGORY=THRESHOLD, e.g. HARM_CATEGORY_DANGEROUS_CONTENT=BLOCK_LOW_AND_ABOVE")
	fs.BoolVar(&f.ConvertSystem, "convert-system", false,
		"send the system instruction as text of the first human turn")
}

// Options turns the flags that were set into call options.
func (f *PromptFlags) Options(cmd *cobra.Command) ([]chat.CallOption, error) {
	var opts []chat.CallOption
	if cmd.Flags().Changed("temperature") {
		opts = append(opts, chat.WithTemperature(f.Temperature))
	}
	if f.MaxOutputTokens > 0 {
		opts = append(opts, chat.WithMaxOutputTokens(f.MaxOutputTokens))
	}
	if len(f.Stop) > 0 {
		opts = append(opts, chat.WithStopSequences(f.Stop...))
	}
	if len(f.Safety) > 0 {
		safety, err := ParseSafety(f.Safety)
		if err != nil {
			return nil, err
		}
		opts = append(opts, chat.WithSafetySettings(safety))
	}
	return opts, nil
}

// Messages builds the conversation: the optional system message, then one
// human turn with the prompt and any images.
func (f *PromptFlags) Messages(prompt string) []chat.Message {
	var msgs []chat.Message
	if f.System != "" {
		msgs = append(msgs, chat.SystemMessage(f.System))
	}
	if len(f.Images) == 0 {
		return append(msgs, chat.HumanMessage(prompt))
	}
	parts := []chat.Part{chat.TextPart(prompt)}
	for _, img := range f.Images {
		parts = append(parts, chat.ImagePart(img))
	}
	return append(msgs, chat.HumanParts(parts...))
}

// ParseSafety parses CATEGORY=THRESHOLD pairs.
func ParseSafety(pairs []string) (chat.SafetySettings, error) {
	raw := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		category, threshold, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("safety setting %q is not CATEGORY=THRESHOLD", pair)
		}
		raw[strings.TrimSpace(category)] = strings.TrimSpace(threshold)
	}
	return chat.ParseSafetySettings(raw)
}
