package utils

import "testing"

func TestIsEmpty(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"", true},
		{"   ", true},
		{"\t\n", true},
		{"hello", false},
		{" hello ", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := IsEmpty(tt.input)
			if result != tt.expected {
				t.Errorf("expected %t, got %t", tt.expected, result)
			}
		})
	}
}

func TestNormalizeParagraph(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"newlines", "first line\nsecond line", "first line second line"},
		{"whitespace runs", "a   b\t\tc", "a b c"},
		{"space before punctuation", "hello , world !", "hello, world!"},
		{"already clean", "Click the save button.", "Click the save button."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizeParagraph(tt.input)
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestEnsureSentenceEnding(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"hello", "hello."},
		{"hello.", "hello."},
		{"done!", "done!"},
		{"really?", "really?"},
		{"  spaced  out  ", "spaced out."},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := EnsureSentenceEnding(tt.input)
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}
