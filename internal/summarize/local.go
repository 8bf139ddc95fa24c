package summarize

import (
	"context"
	"errors"
	"strings"
	"unicode"
)

// localMaxWords は抽出要約に含める最大単語数。
const localMaxWords = 150

// Local は外部APIを使わず、先頭の文を抜き出して要約とする。
type Local struct{}

var _ Summarizer = Local{}

// NewLocal はLocalを生成する。
func NewLocal() Local { return Local{} }

// Name は要約方式名を返す。
func (Local) Name() string { return "local" }

// Summarize は先頭から文単位で localMaxWords 語に達するまで抜き出す。
// 1文目だけで上限を超える場合はその文を単語数で切り詰める。
func (Local) Summarize(_ context.Context, text string) (string, error) {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return "", errors.New("要約対象のテキストが空です")
	}

	var (
		picked []string
		words  int
	)
	for _, s := range sentences {
		n := len(strings.Fields(s))
		if words+n > localMaxWords {
			if len(picked) == 0 {
				picked = append(picked, strings.Join(strings.Fields(s)[:localMaxWords], " ")+"...")
			}
			break
		}
		picked = append(picked, s)
		words += n
	}
	return strings.Join(picked, " "), nil
}

// splitSentences は句点・終止符で文を区切る。空白は1つに正規化する。
func splitSentences(text string) []string {
	text = strings.Join(strings.Fields(text), " ")

	var (
		sentences []string
		start     int
	)
	runes := []rune(text)
	for i, r := range runes {
		switch r {
		case '。', '！', '？':
		case '.', '!', '?':
			// "3.14" や "e.g." の途中では区切らない
			if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
				continue
			}
		default:
			continue
		}
		if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
			sentences = append(sentences, s)
		}
		start = i + 1
	}
	if start < len(runes) {
		if s := strings.TrimSpace(string(runes[start:])); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}
