package openai

import (
	"fmt"
	"strings"
	"time"
)

// TextCompletion creates a plain chat completion response with the given content
func TextCompletion(content string) *Response {
	return &Response{
		Body: &ChatCompletionResponse{
			ID:      "chatcmpl-mock",
			Object:  "chat.completion",
			Created: time.Now().Unix(),
			Model:   "gpt-4o",
			Choices: []Choice{{
				Index: 0,
				Message: ChoiceMessage{
					Role:    "assistant",
					Content: content,
				},
				FinishReason: "stop",
			}},
			Usage: &Usage{
				PromptTokens:     100,
				CompletionTokens: 50,
				TotalTokens:      150,
			},
		},
	}
}

// KeyPointsCompletion formats a key-point extraction response in the shape
// the judge instructions demand: a "**Key Points**:" header followed by a
// numbered list.
func KeyPointsCompletion(points ...string) *Response {
	var b strings.Builder
	b.WriteString("**Key Points**:\n")
	for i, point := range points {
		fmt.Fprintf(&b, "%d. %s\n", i+1, point)
	}
	return TextCompletion(strings.TrimRight(b.String(), "\n"))
}

// ScoreCompletion formats a screenshot relevance-scoring response with the
// "### Reasoning" / "### Score" sections the score parser expects.
func ScoreCompletion(reasoning string, score int) *Response {
	return TextCompletion(fmt.Sprintf("### Reasoning: %s\n### Score: %d", reasoning, score))
}

// VerdictCompletion formats a verdict response. Status should be "success" or
// "failure".
func VerdictCompletion(thoughts, status string) *Response {
	return TextCompletion(fmt.Sprintf("Thoughts: %s\nStatus: %q", thoughts, status))
}

// APIErrorResponse creates an OpenAI-style error response with the given status code
func APIErrorResponse(statusCode int, errType, message string) *Response {
	return &Response{
		StatusCode: statusCode,
		Error: &APIError{
			Error: APIErrorDetail{
				Message: message,
				Type:    errType,
			},
		},
	}
}

// RateLimited creates a 429 rate limit error response
func RateLimited() *Response {
	return APIErrorResponse(429, "rate_limit_error",
		"Rate limit exceeded. Please retry after some time.")
}

// ServiceUnavailable creates a 503 service unavailable response
func ServiceUnavailable() *Response {
	return APIErrorResponse(503, "server_error",
		"The server is currently unavailable. Please try again later.")
}

// EmptyChoices creates a completion response with no choices, which the judge
// client treats as a permanent failure
func EmptyChoices() *Response {
	return &Response{
		Body: &ChatCompletionResponse{
			ID:      "chatcmpl-mock-empty",
			Object:  "chat.completion",
			Created: time.Now().Unix(),
			Model:   "gpt-4o",
			Choices: []Choice{},
		},
	}
}

// Delayed wraps a response with artificial latency
func Delayed(r *Response, delay time.Duration) *Response {
	r.Delay = delay
	return r
}
