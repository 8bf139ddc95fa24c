// Package email はニュースレター本文のHTML化とメール配信機能を提供する。
package email

import (
	"bytes"
	"html"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Renderer はMarkdown本文をHTMLに変換する。
type Renderer interface {
	Render(markdown string) (string, error)
}

// GoldmarkRenderer はgoldmarkによるRenderer実装。
type GoldmarkRenderer struct {
	md goldmark.Markdown
}

var _ Renderer = (*GoldmarkRenderer)(nil)

// NewGoldmarkRenderer はGFM拡張を有効にしたGoldmarkRendererを生成する。
// 生HTMLは出力しない（goldmarkの既定動作）。
func NewGoldmarkRenderer() *GoldmarkRenderer {
	return &GoldmarkRenderer{md: goldmark.New(goldmark.WithExtensions(extension.GFM))}
}

// Render はMarkdownをHTMLに変換する。
func (r *GoldmarkRenderer) Render(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(markdown), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var linkPattern = regexp.MustCompile(`\[([^\]]*)\]\(([^)\s]*)\)`)

// FallbackRender はRendererが使えない場合の簡易変換。
// 行頭の "# " "## " "### " を見出しに、空行区切りの塊を段落にし、[text](url) をリンクにする。
func FallbackRender(content string) string {
	var out []string
	for _, para := range strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n\n") {
		if strings.TrimSpace(para) == "" {
			continue
		}

		var (
			lines       []string
			headingOnly = true
		)
		for _, line := range strings.Split(para, "\n") {
			converted, isHeading := convertHeading(line)
			if !isHeading {
				headingOnly = false
				converted = html.EscapeString(line)
			}
			lines = append(lines, converted)
		}

		block := linkPattern.ReplaceAllString(strings.Join(lines, "\n"), `<a href="$2">$1</a>`)
		if headingOnly {
			out = append(out, block)
		} else {
			out = append(out, "<p>"+block+"</p>")
		}
	}
	return strings.Join(out, "\n")
}

func convertHeading(line string) (string, bool) {
	for level, prefix := range []string{"# ", "## ", "### "} {
		if strings.HasPrefix(line, prefix) {
			tag := string(rune('1' + level))
			return "<h" + tag + ">" + html.EscapeString(line[len(prefix):]) + "</h" + tag + ">", true
		}
	}
	return "", false
}
