package domain

import (
	"strings"
	"testing"
)

func TestWellFormedToken(t *testing.T) {
	valid := TokenPrefix + strings.Repeat("a1", 32)
	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{"valid", valid, true},
		{"empty", "", false},
		{"no prefix", strings.Repeat("a1", 32), false},
		{"wrong prefix", "mfx_" + strings.Repeat("a1", 32), false},
		{"short", TokenPrefix + strings.Repeat("a", 63), false},
		{"long", valid + "0", false},
		{"uppercase hex", TokenPrefix + strings.Repeat("A1", 32), false},
		{"non hex", TokenPrefix + strings.Repeat("g", 64), false},
	}
	for _, tt := range tests {
		if got := WellFormedToken(tt.token); got != tt.want {
			t.Errorf("%s: WellFormedToken = %v, want %v", tt.name, got, tt.want)
		}
	}
}
