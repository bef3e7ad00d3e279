package textnorm

import "testing"

func TestTruncateInput(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxChars int
		want     string
	}{
		{"under limit", "hello", 10, "hello"},
		{"exact limit", "hello", 5, "hello"},
		{"over limit keeps prefix", "hello world", 5, "hello"},
		{"strips after cut", "hello world", 6, "hello"},
		{"strips leading space", "   padded  ", 100, "padded"},
		{"cuts before trimming", "  hello world  ", 5, "hel"},
		{"runes not bytes", "日本語テキスト", 3, "日本語"},
		{"no limit", "  everything  ", 0, "everything"},
		{"empty", "", 5, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateInput(tt.text, tt.maxChars); got != tt.want {
				t.Errorf("TruncateInput(%q, %d) = %q, want %q", tt.text, tt.maxChars, got, tt.want)
			}
		})
	}
}

func TestIsBlank(t *testing.T) {
	if !IsBlank(" \n\t ") {
		t.Error("whitespace should be blank")
	}
	if IsBlank(" a ") {
		t.Error("text should not be blank")
	}
}
