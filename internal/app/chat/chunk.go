package chat

import (
	"encoding/json"
	"strings"
)

// ToolCallChunk is a fragment of a tool call received while streaming.
// Fragments sharing an Index belong to the same call; their Name and Args
// text concatenate in arrival order.
type ToolCallChunk struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Args  string `json:"args,omitempty"`
	Index int    `json:"index"`
}

// MessageChunk is a partial assistant message produced by Stream.
type MessageChunk struct {
	Content          string           `json:"content"`
	ToolCallChunks   []ToolCallChunk  `json:"tool_call_chunks,omitempty"`
	FunctionCall     *FunctionCall    `json:"function_call,omitempty"`
	ResponseMetadata ResponseMetadata `json:"response_metadata"`
}

// Add combines c with the chunk that arrived after it and returns the result.
// Neither operand is modified, and c may be nil, so a stream can be gathered
// with
//
//	var gathered *MessageChunk
//	gathered = gathered.Add(chunk)
func (c *MessageChunk) Add(other *MessageChunk) *MessageChunk {
	if c == nil {
		if other == nil {
			return nil
		}
		return other.clone()
	}
	out := c.clone()
	if other == nil {
		return out
	}

	out.Content += other.Content

	for _, tc := range other.ToolCallChunks {
		merged := false
		for i := range out.ToolCallChunks {
			if out.ToolCallChunks[i].Index != tc.Index {
				continue
			}
			existing := &out.ToolCallChunks[i]
			if existing.ID == "" {
				existing.ID = tc.ID
			}
			existing.Name += tc.Name
			existing.Args += tc.Args
			merged = true
			break
		}
		if !merged {
			out.ToolCallChunks = append(out.ToolCallChunks, tc)
		}
	}

	// FunctionCall keeps the first call, as Invoke does. A payload without
	// a name continues the call before it; a named payload is a later call.
	switch {
	case other.FunctionCall == nil:
	case out.FunctionCall == nil:
		fc := *other.FunctionCall
		out.FunctionCall = &fc
	case other.FunctionCall.Name == "":
		out.FunctionCall.Arguments += other.FunctionCall.Arguments
	}

	out.ResponseMetadata = mergeMetadata(out.ResponseMetadata, other.ResponseMetadata)
	return out
}

// Message converts a gathered chunk into a complete assistant message.
// Tool-call argument text is parsed as a JSON object; calls whose arguments
// do not parse are reported in InvalidToolCalls.
func (c *MessageChunk) Message() *Message {
	if c == nil {
		return &Message{Role: RoleAI}
	}
	msg := &Message{
		Role:             RoleAI,
		Content:          c.Content,
		ResponseMetadata: c.ResponseMetadata,
	}
	if c.FunctionCall != nil {
		fc := *c.FunctionCall
		msg.FunctionCall = &fc
	}
	for _, tc := range c.ToolCallChunks {
		args := map[string]any{}
		if strings.TrimSpace(tc.Args) != "" {
			if err := json.Unmarshal([]byte(tc.Args), &args); err != nil {
				msg.InvalidToolCalls = append(msg.InvalidToolCalls, InvalidToolCall{
					ID:    tc.ID,
					Name:  tc.Name,
					Args:  tc.Args,
					Error: err.Error(),
				})
				continue
			}
		}
		msg.ToolCalls = append(msg.ToolCalls, ToolCall{ID: tc.ID, Name: tc.Name, Args: args})
	}
	return msg
}

func (c *MessageChunk) clone() *MessageChunk {
	out := *c
	out.ToolCallChunks = append([]ToolCallChunk(nil), c.ToolCallChunks...)
	if c.FunctionCall != nil {
		fc := *c.FunctionCall
		out.FunctionCall = &fc
	}
	out.ResponseMetadata.SafetyRatings = append([]SafetyRating(nil), c.ResponseMetadata.SafetyRatings...)
	return &out
}

func mergeMetadata(a, b ResponseMetadata) ResponseMetadata {
	if b.Model != "" {
		a.Model = b.Model
	}
	if b.FinishReason != "" {
		a.FinishReason = b.FinishReason
	}
	if len(b.SafetyRatings) > 0 {
		a.SafetyRatings = append([]SafetyRating(nil), b.SafetyRatings...)
	}
	// usage is cumulative on the wire, so the newest report wins
	if b.Usage != nil {
		u := *b.Usage
		a.Usage = &u
	}
	return a
}
