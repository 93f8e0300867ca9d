package webjudge

import (
	"strings"

	"github.com/unclevikram/TripMind/pkg/config"
)

const statusMarker = "status:"

// ExtractLabel turns a verdict response into a binary success label under the
// textual contract of the given evaluator mode. Any malformed response yields
// 0: an unreadable verdict is never counted as a success.
func ExtractLabel(response, mode string) int {
	switch mode {
	case config.ModeFinalResponse:
		// SUCCESS/FAILURE token contract: only an explicit FAILURE fails.
		if strings.Contains(response, "FAILURE") {
			return 0
		}
		return 1
	default:
		return statusLabel(response)
	}
}

// statusLabel implements the Status: contract. The label is read from the
// text between the first and second status markers, so a verdict that quotes
// the expected format later in its reasoning does not override the first
// answer.
func statusLabel(response string) int {
	parts := strings.Split(strings.ToLower(response), statusMarker)
	if len(parts) < 2 {
		return 0
	}
	if strings.Contains(parts[1], "success") {
		return 1
	}
	return 0
}
