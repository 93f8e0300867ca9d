// Package judge provides the LLM judge client: a small conversation model for
// mixed text-and-image prompts and an OpenAI-compatible transport with its own
// retry and rate-limit policy.
package judge

// Role identifies who a conversation turn is attributed to.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Segment is one piece of a turn: either text or an inline image carried as a
// base64 data URL. Exactly one field is set.
type Segment struct {
	Text     string
	ImageURL string
}

// TextSegment returns a text segment.
func TextSegment(text string) Segment {
	return Segment{Text: text}
}

// ImageSegment returns an inline-image segment. dataURL must be a complete
// data URL, e.g. "data:image/jpeg;base64,...".
func ImageSegment(dataURL string) Segment {
	return Segment{ImageURL: dataURL}
}

// Turn is one message in a conversation.
type Turn struct {
	Role     Role
	Segments []Segment
}

// SystemTurn returns a system-role turn with a single text segment.
func SystemTurn(text string) Turn {
	return Turn{Role: RoleSystem, Segments: []Segment{TextSegment(text)}}
}

// UserTurn returns a user-role turn from the given segments.
func UserTurn(segments ...Segment) Turn {
	return Turn{Role: RoleUser, Segments: segments}
}

// Conversation is an ordered list of turns sent to the judge in one request.
type Conversation []Turn

// Text concatenates the text segments of the conversation's user turns. Used
// by callers that record the prompt text alongside the judge's answer.
func (c Conversation) Text() string {
	var out string
	for _, turn := range c {
		if turn.Role != RoleUser {
			continue
		}
		for _, seg := range turn.Segments {
			if seg.Text != "" {
				if out != "" {
					out += "\n"
				}
				out += seg.Text
			}
		}
	}
	return out
}
