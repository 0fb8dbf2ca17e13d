package services

import "testing"

func TestFormatForWhatsApp(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "heading becomes bold line",
			input:    "## Opening Hours\nWe open at 9am.",
			expected: "*Opening Hours*\nWe open at 9am.",
		},
		{
			name:     "double asterisk bold to single",
			input:    "This is **important** info",
			expected: "This is *important* info",
		},
		{
			name:     "markdown link flattened",
			input:    "See [our catalog](https://shop.example.com) for details",
			expected: "See our catalog: https://shop.example.com for details",
		},
		{
			name:     "link with identical label keeps url only",
			input:    "Visit [https://x.example](https://x.example)",
			expected: "Visit https://x.example",
		},
		{
			name:     "list items converted",
			input:    "*   **Price:** 50k\n*   plain item",
			expected: "- *Price:* 50k\n- plain item",
		},
		{
			name:     "code fence stripped keeps content",
			input:    "Run this:\n```bash\nnpm install\n```",
			expected: "Run this:\nnpm install",
		},
		{
			name:     "inline code stripped",
			input:    "Use the `order` command",
			expected: "Use the order command",
		},
		{
			name:     "newlines collapsed to two",
			input:    "line one\n\n\n\nline two",
			expected: "line one\n\nline two",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatForWhatsApp(tt.input)
			if got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestStripMarkdown(t *testing.T) {
	got := StripMarkdown("*bold* _italic_ ~strike~ `code`")
	want := "bold italic strike code"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
