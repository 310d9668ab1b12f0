package ui

import (
	"strings"
	"testing"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{"empty", "", 10, ""},
		{"short string", "hello", 10, "hello"},
		{"exact length", "hello", 5, "hello"},
		{"needs truncation", "hello world", 8, "hello..."},
		{"very short max", "hello", 3, "hel"},
		{"zero max", "hello", 0, "hello"},
		{"unicode runes", "σαλάτα με φέτα", 10, "σαλάτα ..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Truncate(tt.input, tt.maxLen)
			if result != tt.expected {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.input, tt.maxLen, result, tt.expected)
			}
		})
	}
}

func TestWrapText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		width    int
		contains []string
	}{
		{"short text", "hello world", 20, []string{"hello world"}},
		{"needs wrap", "hello world foo bar", 10, []string{"hello", "world", "foo", "bar"}},
		{"zero width", "hello", 0, []string{"hello"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := WrapText(tt.input, tt.width)
			for _, substr := range tt.contains {
				if !strings.Contains(result, substr) {
					t.Errorf("WrapText(%q, %d) = %q, expected to contain %q", tt.input, tt.width, result, substr)
				}
			}
		})
	}
}

func TestWrapText_RespectsWidth(t *testing.T) {
	result := WrapText("alpha beta gamma delta epsilon", 12)
	for _, line := range strings.Split(result, "\n") {
		if len(line) > 12 {
			t.Errorf("line %q exceeds width 12", line)
		}
	}
}

func TestTitleCase(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"ratio", "Ratio"},
		{"sharpe ratio", "Sharpe Ratio"},
		{"value at risk", "Value At Risk"},
	}

	for _, tt := range tests {
		if got := TitleCase(tt.input); got != tt.expected {
			t.Errorf("TitleCase(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestFormatScore(t *testing.T) {
	if got := FormatScore(0.1234); got != "0.12" {
		t.Errorf("FormatScore(0.1234) = %q, want %q", got, "0.12")
	}
	if got := FormatScore(0); got != "0.00" {
		t.Errorf("FormatScore(0) = %q, want %q", got, "0.00")
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes    int64
		expected string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{2048, "2.0 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
		{3 * 1024 * 1024 * 1024, "3.0 GB"},
	}

	for _, tt := range tests {
		if got := FormatBytes(tt.bytes); got != tt.expected {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.bytes, got, tt.expected)
		}
	}
}
