package webjudge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseKeyPoints(t *testing.T) {
	tt := map[string]struct {
		raw      string
		expected string
	}{
		"bold marker": {
			raw:      "Here is my analysis.\n\n**Key Points**:\n1. Search for hotels\n2. Filter by lowest price",
			expected: "\n1. Search for hotels\n2. Filter by lowest price",
		},
		"bold marker strips line indentation": {
			raw:      "**Key Points**:\n   1. Open the menu\n\t2. Click save",
			expected: "\n1. Open the menu\n2. Click save",
		},
		"plain marker fallback": {
			raw:      "Key Points:\n1. Sort by newest",
			expected: "\n1. Sort by newest",
		},
		"plain marker uses last occurrence": {
			raw:      "Key Points: draft\nsome text\nKey Points:\n1. final list",
			expected: "\n1. final list",
		},
		"no marker keeps whole response": {
			raw:      "1. Search for flights\n2. Select the cheapest",
			expected: "1. Search for flights\n2. Select the cheapest",
		},
		"double newlines collapsed before parsing": {
			raw:      "**Key Points**:\n\n1. First\n\n2. Second",
			expected: "\n1. First\n2. Second",
		},
		"bold marker preferred over plain": {
			raw:      "Key Points: ignored\n**Key Points**:\n1. kept",
			expected: "\n1. kept",
		},
	}

	for name, tc := range tt {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.expected, parseKeyPoints(tc.raw))
		})
	}
}
