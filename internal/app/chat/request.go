package chat

import (
	"context"
	"encoding/base64"
	"fmt"
	"iter"
	"strings"

	"github.com/samber/lo"
)

// Request is a validated conversation ready for a Backend. System messages
// are already folded into System (or into the first human turn), tool
// messages carry their tool name and image parts carry resolved bytes.
type Request struct {
	Model    string
	System   string
	Messages []Message
	Options  CallOptions
}

// Backend talks to one provider API. Implementations translate Request into
// the provider's wire format and map failures onto *Error.
type Backend interface {
	Name() string
	Generate(ctx context.Context, req *Request) (*Message, error)
	Stream(ctx context.Context, req *Request) iter.Seq2[*MessageChunk, error]
	CountTokens(ctx context.Context, req *Request) (int, error)
}

// Image is a resolved image reference. Either Data or FileURI is set.
type Image struct {
	Data     []byte
	MIMEType string
	FileURI  string
}

// ImageLoader resolves the ImageURL of an image part.
type ImageLoader interface {
	Load(ctx context.Context, ref string) (*Image, error)
}

// ImageLoaderFunc adapts a function to ImageLoader.
type ImageLoaderFunc func(ctx context.Context, ref string) (*Image, error)

func (f ImageLoaderFunc) Load(ctx context.Context, ref string) (*Image, error) {
	return f(ctx, ref)
}

// ParseDataURL decodes a data:<mime>;base64,<payload> URL.
func ParseDataURL(ref string) (*Image, error) {
	rest, ok := strings.CutPrefix(ref, "data:")
	if !ok {
		return nil, fmt.Errorf("not a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("data URL has no payload")
	}
	mimeType, encoding, _ := strings.Cut(meta, ";")
	if encoding != "base64" {
		return nil, fmt.Errorf("data URL must be base64 encoded")
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode data URL: %w", err)
	}
	return &Image{Data: data, MIMEType: mimeType}, nil
}

// defaultImageLoader understands data URLs and gs:// references. Other
// schemes need the imageloader package.
var defaultImageLoader = ImageLoaderFunc(func(_ context.Context, ref string) (*Image, error) {
	switch {
	case strings.HasPrefix(ref, "data:"):
		return ParseDataURL(ref)
	case strings.HasPrefix(ref, "gs://"):
		return &Image{FileURI: ref, MIMEType: mimeFromExt(ref)}, nil
	default:
		return nil, fmt.Errorf("no image loader configured for %q", ref)
	}
})

func mimeFromExt(ref string) string {
	lower := strings.ToLower(ref)
	switch {
	case strings.HasSuffix(lower, ".png"):
		return "image/png"
	case strings.HasSuffix(lower, ".gif"):
		return "image/gif"
	case strings.HasSuffix(lower, ".webp"):
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

// prepare validates messages against the model and turns them into a
// backend request.
func (m *ChatModel) prepare(ctx context.Context, messages []Message, opts []CallOption) (*Request, error) {
	callOpts := m.defaults.with(opts...)
	if err := validateRequest(m.info, messages, callOpts); err != nil {
		return nil, err
	}

	req := &Request{Model: m.info.ID, Options: callOpts}

	var system []string
	rest := make([]Message, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == RoleSystem {
			if text := msg.Text(); text != "" {
				system = append(system, text)
			}
			continue
		}
		rest = append(rest, msg.clone())
	}

	if len(system) > 0 {
		text := strings.Join(system, "\n\n")
		if m.cfg.ConvertSystemMessageToHuman || !m.info.Capabilities.SystemInstruction {
			rest = prependToFirstHuman(rest, text)
		} else {
			req.System = text
		}
	}

	if err := resolveToolNames(m.info.ID, rest); err != nil {
		return nil, err
	}
	if err := m.resolveImages(ctx, rest); err != nil {
		return nil, err
	}

	req.Messages = rest
	return req, nil
}

func prependToFirstHuman(messages []Message, text string) []Message {
	_, idx, ok := lo.FindIndexOf(messages, func(m Message) bool { return m.Role == RoleHuman })
	if !ok {
		return append([]Message{HumanMessage(text)}, messages...)
	}
	human := messages[idx]
	human.Parts = append([]Part{TextPart(text)}, human.ContentParts()...)
	human.Content = ""
	messages[idx] = human
	return messages
}

// resolveToolNames fills the Name of tool messages from the assistant tool
// call they answer.
func resolveToolNames(model string, messages []Message) error {
	names := map[string]string{}
	for i, msg := range messages {
		switch msg.Role {
		case RoleAI:
			for _, tc := range msg.ToolCalls {
				if tc.ID != "" {
					names[tc.ID] = tc.Name
				}
			}
		case RoleTool:
			if msg.Name != "" {
				continue
			}
			name, ok := names[msg.ToolCallID]
			if !ok {
				return InvalidRequestf(model, "tool message at position %d answers unknown tool call %q", i, msg.ToolCallID)
			}
			messages[i].Name = name
		}
	}
	return nil
}

func (m *ChatModel) resolveImages(ctx context.Context, messages []Message) error {
	for i := range messages {
		for j, p := range messages[i].Parts {
			if p.Type != PartTypeImage || len(p.Data) > 0 || p.FileURI != "" {
				continue
			}
			img, err := m.images.Load(ctx, p.ImageURL)
			if err != nil {
				return &Error{
					Kind:    KindInvalidRequest,
					Message: fmt.Sprintf("load image %s", truncate(p.ImageURL, 64)),
					Model:   m.info.ID,
					Err:     err,
				}
			}
			p.Data, p.MIMEType, p.FileURI = img.Data, img.MIMEType, img.FileURI
			messages[i].Parts[j] = p
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
