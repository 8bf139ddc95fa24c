package email

import (
	"bytes"
	"fmt"
	"html/template"
	"log/slog"
	"time"

	"github.com/hitoshi/newsletterman/internal/security"
)

var newsletterTemplate = template.Must(template.New("newsletter").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Subject}}</title>
<style>
body { font-family: 'Helvetica Neue', Arial, sans-serif; line-height: 1.6; color: #2B2D42; margin: 0; padding: 0; background-color: #EDF2F4; }
.container { max-width: 600px; margin: 0 auto; padding: 20px; background-color: #ffffff; }
.header { text-align: center; padding: 20px 0; border-bottom: 1px solid #8D99AE; }
.content { padding: 20px 0; }
h1 { color: #2B2D42; margin-top: 0; }
h2 { color: #2B2D42; border-bottom: 1px solid #EDF2F4; padding-bottom: 10px; }
a { color: #EF233C; text-decoration: none; }
a:hover { text-decoration: underline; }
.footer { text-align: center; font-size: 12px; color: #8D99AE; padding: 20px 0; border-top: 1px solid #8D99AE; }
</style>
</head>
<body>
<div class="container">
<div class="header">
<h1>{{.Subject}}</h1>
<p>{{.Date}}</p>
</div>
<div class="content">
{{.Content}}
</div>
<div class="footer">
<p>This newsletter was sent to you because you subscribed to our list.</p>
<p>&copy; {{.Year}} Newsletter Automation System</p>
</div>
</div>
</body>
</html>
`))

type templateData struct {
	Subject string
	Date    string
	Year    int
	Content template.HTML
}

// Formatter は下書き本文を配信用のHTMLドキュメントに整形する。
type Formatter struct {
	renderer  Renderer
	sanitizer *security.ContentSanitizer
	logger    *slog.Logger
	now       func() time.Time
}

// NewFormatter はFormatterを生成する。rendererがnilの場合は FallbackRender を使う。
func NewFormatter(renderer Renderer, sanitizer *security.ContentSanitizer, logger *slog.Logger) *Formatter {
	return &Formatter{
		renderer:  renderer,
		sanitizer: sanitizer,
		logger:    logger,
		now:       time.Now,
	}
}

// Format は件名とMarkdown本文からメール用HTMLを生成する。
func (f *Formatter) Format(subject, markdown string) (string, error) {
	body := f.render(markdown)
	now := f.now()

	var buf bytes.Buffer
	err := newsletterTemplate.Execute(&buf, templateData{
		Subject: subject,
		Date:    now.Format("January 2, 2006"),
		Year:    now.Year(),
		// サニタイズ済みのため信頼済みHTMLとして埋め込む
		Content: template.HTML(f.sanitizer.SanitizeEmailHTML(body)),
	})
	if err != nil {
		return "", fmt.Errorf("メールテンプレートの適用に失敗しました: %w", err)
	}
	return buf.String(), nil
}

func (f *Formatter) render(markdown string) string {
	if f.renderer == nil {
		return FallbackRender(markdown)
	}
	rendered, err := f.renderer.Render(markdown)
	if err != nil {
		f.logger.Warn("Markdownの変換に失敗したため簡易変換を使います", slog.String("error", err.Error()))
		return FallbackRender(markdown)
	}
	return rendered
}
