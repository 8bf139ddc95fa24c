package email

import (
	"strings"
	"testing"
)

func TestFallbackRender(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			"headings and paragraphs",
			"# Title\n\n## Section\n\nSome text\nsecond line",
			"<h1>Title</h1>\n<h2>Section</h2>\n<p>Some text\nsecond line</p>",
		},
		{
			"links",
			"Read more: [here](https://x/a)",
			`<p>Read more: <a href="https://x/a">here</a></p>`,
		},
		{
			"h3 and escaping",
			"### A & B\n\n<script>alert(1)</script>",
			"<h3>A &amp; B</h3>\n<p>&lt;script&gt;alert(1)&lt;/script&gt;</p>",
		},
		{
			"blank paragraphs skipped",
			"one\n\n\n\n  \n\ntwo",
			"<p>one</p>\n<p>two</p>",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FallbackRender(tt.in); got != tt.want {
				t.Errorf("FallbackRender() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGoldmarkRenderer(t *testing.T) {
	got, err := NewGoldmarkRenderer().Render("# Weekly\n\n## A\n\nSummary with [link](https://example.com/a).\n\nRead more: https://example.com/b")
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	for _, want := range []string{
		"<h1>Weekly</h1>",
		"<h2>A</h2>",
		`<a href="https://example.com/a">link</a>`,
		// GFMのautolinkでURLがリンクになる
		`Read more: <a href="https://example.com/b">https://example.com/b</a>`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("出力に %q が含まれていません:\n%s", want, got)
		}
	}
}
