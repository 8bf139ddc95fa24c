package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizer はHTML由来のテキスト処理を行う。
// 取り込んだ記事本文のプレーンテキスト化と、配信メールHTMLの無害化に使用する。
type ContentSanitizer struct {
	strict *bluemonday.Policy
	email  *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerを生成する。
// メール用ポリシーは見出し・段落・リスト・リンク・強調・コードと画像のみを許可する。
func NewContentSanitizer() *ContentSanitizer {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"h1", "h2", "h3", "p", "br", "hr",
		"ul", "ol", "li", "blockquote", "pre", "code",
		"strong", "em",
	)
	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)
	p.AllowAttrs("src", "alt").OnElements("img")
	p.AllowURLSchemes("http", "https", "mailto")

	return &ContentSanitizer{
		strict: bluemonday.StrictPolicy(),
		email:  p,
	}
}

// PlainText はHTMLタグを全て除去し、実体参照を戻したうえで空白を正規化したテキストを返す。
// 段落の区切りは空行として残す。
func (s *ContentSanitizer) PlainText(rawHTML string) string {
	if rawHTML == "" {
		return ""
	}
	// ブロック要素の終端を改行に置き換えてから除去する
	replacer := strings.NewReplacer(
		"</p>", "</p>\n\n", "<br>", "\n", "<br/>", "\n", "<br />", "\n",
		"</li>", "</li>\n", "</h1>", "</h1>\n\n", "</h2>", "</h2>\n\n", "</h3>", "</h3>\n\n",
	)
	text := html.UnescapeString(s.strict.Sanitize(replacer.Replace(rawHTML)))

	var paragraphs []string
	for _, block := range strings.Split(text, "\n\n") {
		line := strings.Join(strings.Fields(block), " ")
		if line != "" {
			paragraphs = append(paragraphs, line)
		}
	}
	return strings.Join(paragraphs, "\n\n")
}

// SanitizeEmailHTML はメール本文として安全なHTMLだけを残す。
func (s *ContentSanitizer) SanitizeEmailHTML(rawHTML string) string {
	return s.email.Sanitize(rawHTML)
}
