package chat

import "github.com/samber/lo"

// ToolMode selects how the model may use declared tools.
type ToolMode string

const (
	ToolModeAuto ToolMode = "AUTO"
	ToolModeAny  ToolMode = "ANY"
	ToolModeNone ToolMode = "NONE"
)

// ToolConfig restricts function calling. Mode ANY forces a call; with
// AllowedFunctionNames the call is limited to those tools.
type ToolConfig struct {
	Mode                 ToolMode `json:"mode"`
	AllowedFunctionNames []string `json:"allowed_function_names,omitempty"`
}

// CallOptions are generation parameters resolved for one request.
type CallOptions struct {
	Temperature     *float32
	TopP            *float32
	TopK            *float32
	MaxOutputTokens int32
	StopSequences   []string
	SafetySettings  SafetySettings
	Tools           []Tool
	ToolConfig      *ToolConfig
	Tags            []string
}

// CallOption adjusts CallOptions for one call, or for every call when bound
// with Bind.
type CallOption func(*CallOptions)

func WithTemperature(t float32) CallOption {
	return func(o *CallOptions) { o.Temperature = &t }
}

func WithTopP(p float32) CallOption {
	return func(o *CallOptions) { o.TopP = &p }
}

func WithTopK(k float32) CallOption {
	return func(o *CallOptions) { o.TopK = &k }
}

func WithMaxOutputTokens(n int32) CallOption {
	return func(o *CallOptions) { o.MaxOutputTokens = n }
}

// WithStopSequences replaces the stop sequences.
func WithStopSequences(stop ...string) CallOption {
	return func(o *CallOptions) { o.StopSequences = append([]string(nil), stop...) }
}

// WithSafetySettings overrides thresholds per category; categories not in s
// keep their current threshold.
func WithSafetySettings(s SafetySettings) CallOption {
	return func(o *CallOptions) { o.SafetySettings = o.SafetySettings.Merge(s) }
}

// WithTools declares additional tools. A tool with the same name as an
// already declared one replaces it.
func WithTools(tools ...Tool) CallOption {
	return func(o *CallOptions) {
		merged := lo.Filter(o.Tools, func(existing Tool, _ int) bool {
			return !lo.ContainsBy(tools, func(t Tool) bool { return t.Name == existing.Name })
		})
		o.Tools = append(merged, tools...)
	}
}

func WithToolConfig(cfg ToolConfig) CallOption {
	return func(o *CallOptions) {
		cfg.AllowedFunctionNames = append([]string(nil), cfg.AllowedFunctionNames...)
		o.ToolConfig = &cfg
	}
}

// WithToolChoice forces the model to call the named tool.
func WithToolChoice(name string) CallOption {
	return WithToolConfig(ToolConfig{Mode: ToolModeAny, AllowedFunctionNames: []string{name}})
}

// WithToolChoiceAny forces the model to call one of the declared tools.
func WithToolChoiceAny() CallOption {
	return WithToolConfig(ToolConfig{Mode: ToolModeAny})
}

// WithTags labels the call in logs and metrics.
func WithTags(tags ...string) CallOption {
	return func(o *CallOptions) { o.Tags = lo.Uniq(append(append([]string(nil), o.Tags...), tags...)) }
}

// with returns a copy of o with opts applied. o itself is never modified.
func (o CallOptions) with(opts ...CallOption) CallOptions {
	out := o.clone()
	for _, opt := range opts {
		if opt != nil {
			opt(&out)
		}
	}
	return out
}

func (o CallOptions) clone() CallOptions {
	out := o
	if o.Temperature != nil {
		v := *o.Temperature
		out.Temperature = &v
	}
	if o.TopP != nil {
		v := *o.TopP
		out.TopP = &v
	}
	if o.TopK != nil {
		v := *o.TopK
		out.TopK = &v
	}
	out.StopSequences = append([]string(nil), o.StopSequences...)
	out.SafetySettings = o.SafetySettings.Merge(nil)
	out.Tools = append([]Tool(nil), o.Tools...)
	if o.ToolConfig != nil {
		tc := *o.ToolConfig
		tc.AllowedFunctionNames = append([]string(nil), o.ToolConfig.AllowedFunctionNames...)
		out.ToolConfig = &tc
	}
	out.Tags = append([]string(nil), o.Tags...)
	return out
}
