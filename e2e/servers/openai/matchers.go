package openai

import (
	"regexp"
	"strings"
)

// RequestMatcher determines if a request matches an expectation
type RequestMatcher interface {
	Matches(req *ChatCompletionRequest) bool
}

// AnyRequestMatcher matches all requests
type AnyRequestMatcher struct{}

func (m AnyRequestMatcher) Matches(req *ChatCompletionRequest) bool {
	return true
}

// AnyRequest returns a matcher that matches all requests
func AnyRequest() RequestMatcher {
	return AnyRequestMatcher{}
}

// MessageContentMatcher matches if any message's text content contains a substring
type MessageContentMatcher struct {
	Substring string
	Role      string // Optional: only check messages with this role (empty = all roles)
}

func (m MessageContentMatcher) Matches(req *ChatCompletionRequest) bool {
	for _, msg := range req.Messages {
		if m.Role != "" && msg.Role != m.Role {
			continue
		}
		if strings.Contains(msg.Content.Text(), m.Substring) {
			return true
		}
	}
	return false
}

// MessageContains returns a matcher for messages containing a substring
func MessageContains(substring string) RequestMatcher {
	return MessageContentMatcher{Substring: substring}
}

// SystemMessageContains returns a matcher for system messages containing a substring
func SystemMessageContains(substring string) RequestMatcher {
	return MessageContentMatcher{Substring: substring, Role: "system"}
}

// UserMessageContains returns a matcher for user messages containing a substring
func UserMessageContains(substring string) RequestMatcher {
	return MessageContentMatcher{Substring: substring, Role: "user"}
}

// MessageContentRegexMatcher matches if any message's text content matches a regex
type MessageContentRegexMatcher struct {
	Pattern *regexp.Regexp
	Role    string // Optional: only check messages with this role
}

func (m MessageContentRegexMatcher) Matches(req *ChatCompletionRequest) bool {
	for _, msg := range req.Messages {
		if m.Role != "" && msg.Role != m.Role {
			continue
		}
		if m.Pattern.MatchString(msg.Content.Text()) {
			return true
		}
	}
	return false
}

// MessageMatches returns a matcher for messages matching a regex pattern
func MessageMatches(pattern string) RequestMatcher {
	return MessageContentRegexMatcher{Pattern: regexp.MustCompile(pattern)}
}

// ImageCountMatcher matches requests carrying an exact number of image parts
type ImageCountMatcher struct {
	Count int
}

func (m ImageCountMatcher) Matches(req *ChatCompletionRequest) bool {
	return req.ImageCount() == m.Count
}

// ImageCountIs returns a matcher for an exact number of attached images
func ImageCountIs(count int) RequestMatcher {
	return ImageCountMatcher{Count: count}
}

// ImageContainsMatcher matches if any attached image URL contains a substring.
// Useful with data URLs, where the substring is a slice of the base64 payload.
type ImageContainsMatcher struct {
	Substring string
}

func (m ImageContainsMatcher) Matches(req *ChatCompletionRequest) bool {
	for _, msg := range req.Messages {
		for _, url := range msg.Content.Images() {
			if strings.Contains(url, m.Substring) {
				return true
			}
		}
	}
	return false
}

// ImageContains returns a matcher for attached images containing a substring
func ImageContains(substring string) RequestMatcher {
	return ImageContainsMatcher{Substring: substring}
}

// ModelMatcher matches requests to a specific model
type ModelMatcher struct {
	Model string
}

func (m ModelMatcher) Matches(req *ChatCompletionRequest) bool {
	return req.Model == m.Model
}

// ModelIs returns a matcher for a specific model
func ModelIs(model string) RequestMatcher {
	return ModelMatcher{Model: model}
}

// AndMatcher combines multiple matchers with AND logic
type AndMatcher struct {
	Matchers []RequestMatcher
}

func (m AndMatcher) Matches(req *ChatCompletionRequest) bool {
	for _, matcher := range m.Matchers {
		if !matcher.Matches(req) {
			return false
		}
	}
	return true
}

// And combines multiple matchers with AND logic
func And(matchers ...RequestMatcher) RequestMatcher {
	return AndMatcher{Matchers: matchers}
}

// OrMatcher combines multiple matchers with OR logic
type OrMatcher struct {
	Matchers []RequestMatcher
}

func (m OrMatcher) Matches(req *ChatCompletionRequest) bool {
	for _, matcher := range m.Matchers {
		if matcher.Matches(req) {
			return true
		}
	}
	return false
}

// Or combines multiple matchers with OR logic
func Or(matchers ...RequestMatcher) RequestMatcher {
	return OrMatcher{Matchers: matchers}
}

// NotMatcher negates a matcher
type NotMatcher struct {
	Matcher RequestMatcher
}

func (m NotMatcher) Matches(req *ChatCompletionRequest) bool {
	return !m.Matcher.Matches(req)
}

// Not negates a matcher
func Not(matcher RequestMatcher) RequestMatcher {
	return NotMatcher{Matcher: matcher}
}

// FuncMatcher allows custom matching logic via a function
type FuncMatcher struct {
	Fn func(*ChatCompletionRequest) bool
}

func (m FuncMatcher) Matches(req *ChatCompletionRequest) bool {
	return m.Fn(req)
}

// MatchFunc creates a matcher from a function
func MatchFunc(fn func(*ChatCompletionRequest) bool) RequestMatcher {
	return FuncMatcher{Fn: fn}
}

// Matchers keyed on the system instructions of the pipeline's judge calls.
// Each stage's instructions contain a phrase unique to that stage.

// KeyPointCall matches the key-point extraction request of a task
func KeyPointCall() RequestMatcher {
	return SystemMessageContains("identify the key points explicitly stated")
}

// ScoreCall matches the per-screenshot relevance scoring requests
func ScoreCall() RequestMatcher {
	return SystemMessageContains("whether an image contains information about the necessary steps")
}

// VerdictCall matches the final verdict synthesis request
func VerdictCall() RequestMatcher {
	return SystemMessageContains("whether the agent has completed the task and achieved all requirements")
}

// TranscriptCall matches the transcript-mode single judge request
func TranscriptCall() RequestMatcher {
	return SystemMessageContains("decide whether the agent's execution is successful")
}

// FinalResponseCall matches the final-response-mode single judge request
func FinalResponseCall() RequestMatcher {
	return SystemMessageContains("Result Screenshots")
}
