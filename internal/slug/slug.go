// Package slug は記事タイトルからURL用の識別子を導出する。
package slug

import (
	"regexp"
	"strings"
	"unicode"
)

// disallowed は英数字・アンダースコア・ハイフン・キリル小文字以外の文字にマッチする。
var disallowed = regexp.MustCompile(`[^а-яё\w-]`)

// Make はタイトルからスラッグを生成する。
// 小文字化し、空白をハイフンに置き換えたうえで許可されない文字を取り除く。
// 連続する空白は連続するハイフンになる。結果に対して再度Makeを適用しても変化しない。
func Make(title string) string {
	lower := strings.ToLower(title)
	hyphenated := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return '-'
		}
		return r
	}, lower)
	return disallowed.ReplaceAllString(hyphenated, "")
}

// Valid はsがMakeの出力として妥当な空でないスラッグかを返す。
func Valid(s string) bool {
	return s != "" && Make(s) == s
}
