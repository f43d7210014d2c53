package render

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// Excerpt はHTMLからテキストのみを取り出し、maxRunes文字以内に切り詰めて返す。
// 連続する空白は1つにまとめる。切り詰めた場合は末尾に "…" を付ける。
func Excerpt(htmlContent string, maxRunes int) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return ""
	}

	// ブロック要素の境界で単語が連結しないよう改行を挟む
	doc.Find("p, h1, h2, h3, h4, h5, h6, li, blockquote, pre, figcaption").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	text := strings.Join(strings.Fields(doc.Text()), " ")
	if maxRunes <= 0 || utf8.RuneCountInString(text) <= maxRunes {
		return text
	}

	runes := []rune(text)
	cut := strings.TrimSpace(string(runes[:maxRunes]))
	return cut + "…"
}
