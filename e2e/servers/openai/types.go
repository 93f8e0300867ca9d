package openai

import (
	"encoding/json"
	"strings"
)

// ChatCompletionRequest mirrors the subset of the OpenAI chat completions
// request the judge client sends: a model, plain or multimodal messages, and
// sampling parameters.
type ChatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   *int64    `json:"max_tokens,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
}

// Message is a chat message whose content may be a plain string or an array
// of text and image parts.
type Message struct {
	Role    string         `json:"role"`
	Content MessageContent `json:"content"`
}

// ContentPart is one element of a multimodal message.
type ContentPart struct {
	Type     string // "text" or "image_url"
	Text     string
	ImageURL string
	Detail   string
}

// MessageContent normalizes both content encodings into a part list.
type MessageContent struct {
	Parts []ContentPart
}

// UnmarshalJSON accepts either a bare string or an array of content parts.
func (c *MessageContent) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.Parts = []ContentPart{{Type: "text", Text: s}}
		return nil
	}

	var raw []struct {
		Type     string `json:"type"`
		Text     string `json:"text,omitempty"`
		ImageURL *struct {
			URL    string `json:"url"`
			Detail string `json:"detail,omitempty"`
		} `json:"image_url,omitempty"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	c.Parts = make([]ContentPart, 0, len(raw))
	for _, part := range raw {
		p := ContentPart{Type: part.Type, Text: part.Text}
		if part.ImageURL != nil {
			p.ImageURL = part.ImageURL.URL
			p.Detail = part.ImageURL.Detail
		}
		c.Parts = append(c.Parts, p)
	}
	return nil
}

// Text joins all text parts with newlines.
func (c MessageContent) Text() string {
	var texts []string
	for _, part := range c.Parts {
		if part.Type == "text" {
			texts = append(texts, part.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// Images returns the image URLs (data URLs in practice) in order.
func (c MessageContent) Images() []string {
	var urls []string
	for _, part := range c.Parts {
		if part.Type == "image_url" {
			urls = append(urls, part.ImageURL)
		}
	}
	return urls
}

// Text returns the concatenated text content of all messages in the request,
// system and user alike.
func (r *ChatCompletionRequest) Text() string {
	var texts []string
	for _, msg := range r.Messages {
		if t := msg.Content.Text(); t != "" {
			texts = append(texts, t)
		}
	}
	return strings.Join(texts, "\n")
}

// ImageCount returns the total number of image parts across all messages.
func (r *ChatCompletionRequest) ImageCount() int {
	var n int
	for _, msg := range r.Messages {
		n += len(msg.Content.Images())
	}
	return n
}

// ChatCompletionResponse matches the OpenAI API response format.
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

// Choice represents a completion choice.
type Choice struct {
	Index        int           `json:"index"`
	Message      ChoiceMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

// ChoiceMessage is the assistant message of a completion choice. Responses
// always carry plain string content.
type ChoiceMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage contains token usage information.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
