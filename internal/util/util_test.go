package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrimQuotes(t *testing.T) {
	assert.Equal(t, "car", TrimQuotes(`"car"`))
	assert.Equal(t, "car", TrimQuotes("car"))
	assert.Equal(t, "", TrimQuotes(`""`))
}

func TestFixEscapeQuotes(t *testing.T) {
	assert.Equal(t, `{"a":1}`, FixEscapeQuotes(`{""a"":1}`))
}

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"plain", ":CHAIN:MOVE: 3 1,2,0", []string{":CHAIN:MOVE:", "3", "1,2,0"}},
		{"extra whitespace", "  :UNDO:\t ", []string{":UNDO:"}},
		{"quoted with spaces", `:ATTRS: t1 "{""color"": ""red""}"`, []string{":ATTRS:", "t1", `{"color": "red"}`}},
		{"empty quoted", `:X: ""`, []string{":X:", ""}},
		{"blank", "   ", nil},
		{"unterminated", `:X: "a b`, []string{":X:", "a b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitArgs(tt.in))
		})
	}
}
