package feed

import (
	"bytes"
	"context"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/hitoshi/newsletterman/internal/model"
	"github.com/hitoshi/newsletterman/internal/security"
)

const detectorUserAgent = "Newsletterman/1.0 (+https://github.com/hitoshi/newsletterman)"

// linkCandidate はHTMLの<link rel="alternate">から見つかったフィードURL。
type linkCandidate struct {
	url  string
	atom bool
}

// LinkDetector はURLがRSS/Atomフィードかを判定し、HTMLページの場合は広告されたフィードURLを探す。
type LinkDetector struct {
	guard security.URLGuard
}

// NewLinkDetector はLinkDetectorを生成する。
func NewLinkDetector(guard security.URLGuard) *LinkDetector {
	return &LinkDetector{guard: guard}
}

// ResolveFeedURL は入力URLから取り込みに使うフィードURLを返す。
//   - レスポンスがフィードならそのまま入力URL
//   - HTMLなら<head>内のフィードリンク（同一ホスト > Atom > 先頭の優先順）
//   - どちらでもなければ NewFeedNotDetectedError
//
// 取得自体に失敗した場合は NewFetchFailedError を返す。
func (d *LinkDetector) ResolveFeedURL(ctx context.Context, inputURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, inputURL, nil)
	if err != nil {
		return "", model.NewInvalidURLError(err.Error())
	}
	req.Header.Set("User-Agent", detectorUserAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, text/html, */*")

	resp, err := d.guard.Client().Do(req)
	if err != nil {
		return "", model.NewFetchFailedError(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", model.NewFetchFailedError(http.StatusText(resp.StatusCode))
	}

	body, err := d.guard.ReadBody(resp.Body)
	if err != nil {
		return "", model.NewFetchFailedError(err.Error())
	}

	mediaType := parseMediaType(resp.Header.Get("Content-Type"))
	if isFeedResponse(mediaType, body) {
		return inputURL, nil
	}
	if !strings.Contains(mediaType, "html") {
		return "", model.NewFeedNotDetectedError(inputURL)
	}

	best := selectBestLink(parseFeedLinks(body, inputURL), inputURL)
	if best == "" {
		return "", model.NewFeedNotDetectedError(inputURL)
	}
	return best, nil
}

func parseMediaType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.Split(contentType, ";")[0])
	}
	return strings.ToLower(mediaType)
}

// isFeedResponse はContent-Typeとボディ先頭からRSS/Atomかを判定する。
// text/xml などの汎用XMLはルート要素を確認する。
func isFeedResponse(mediaType string, body []byte) bool {
	switch mediaType {
	case "application/rss+xml", "application/atom+xml":
		return true
	case "text/xml", "application/xml":
	default:
		return false
	}

	prefix := body
	if len(prefix) > 4096 {
		prefix = prefix[:4096]
	}
	head := strings.ToLower(string(prefix))
	if strings.Contains(head, "<rss") || strings.Contains(head, "<rdf:rdf") {
		return true
	}
	return strings.Contains(head, "<feed") && strings.Contains(head, "http://www.w3.org/2005/atom")
}

// parseFeedLinks は<head>内の rel="alternate" なRSS/Atomリンクを絶対URLで返す。
func parseFeedLinks(htmlBody []byte, baseURL string) []linkCandidate {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	var candidates []linkCandidate
	tokenizer := html.NewTokenizer(bytes.NewReader(htmlBody))
	inHead := false

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return candidates

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			switch string(tn) {
			case "head":
				inHead = true
				continue
			case "body":
				return candidates
			case "link":
			default:
				continue
			}
			if !inHead || !hasAttr {
				continue
			}

			var rel, linkType, href string
			for {
				key, val, more := tokenizer.TagAttr()
				switch strings.ToLower(string(key)) {
				case "rel":
					rel = strings.ToLower(string(val))
				case "type":
					linkType = strings.ToLower(string(val))
				case "href":
					href = string(val)
				}
				if !more {
					break
				}
			}
			if rel != "alternate" || href == "" {
				continue
			}
			if linkType != "application/rss+xml" && linkType != "application/atom+xml" {
				continue
			}

			ref, err := url.Parse(href)
			if err != nil {
				continue
			}
			candidates = append(candidates, linkCandidate{
				url:  base.ResolveReference(ref).String(),
				atom: linkType == "application/atom+xml",
			})

		case html.EndTagToken:
			if tn, _ := tokenizer.TagName(); string(tn) == "head" {
				return candidates
			}
		}
	}
}

// selectBestLink は同一ホスト(+100)、Atom(+10)でスコアを付け、同点なら先頭を選ぶ。
func selectBestLink(candidates []linkCandidate, inputURL string) string {
	if len(candidates) == 0 {
		return ""
	}

	inputHost := hostOf(inputURL)
	best, bestScore := 0, -1
	for i, c := range candidates {
		score := 0
		if hostOf(c.url) == inputHost {
			score += 100
		}
		if c.atom {
			score += 10
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return candidates[best].url
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
