package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalMonth(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"sep-oct-2025", "Sep 2025 - Oct 2025"},
		{"SEP-OCT-2025", "Sep 2025 - Oct 2025"},
		{"jan-2025", "Jan 2025"},
		{" dec-2024 ", "Dec 2024"},
		{"june-2025", "June 2025"},
		{"Jan 2025", "Jan 2025"},
		{"Sep 2025 - Oct 2025", "Sep 2025 - Oct 2025"},
		{"2025", "2025"},
		{"a-b-c-d", "a-b-c-d"},
		{"jan--2025", "jan--2025"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, CanonicalMonth(tt.raw))
		})
	}
}

func TestCanonicalMonth_Idempotent(t *testing.T) {
	for _, raw := range []string{"sep-oct-2025", "jan-2025", "Feb 2025"} {
		once := CanonicalMonth(raw)
		assert.Equal(t, once, CanonicalMonth(once))
	}
}
