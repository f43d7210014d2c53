// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService は記事ブロック内のインラインHTMLをサニタイズする。
// エディタはブロック単位で構造を持ち、ブロック内のテキストにだけ
// 太字やリンク等のインライン要素が含まれるため、許可リストもインライン要素に限定する。
package security

import (
	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はインラインHTMLのサニタイズ機能のインターフェースを定義する。
// 記事の保存前に各ブロックのテキストへ適用される。
type ContentSanitizerService interface {
	// Sanitize はインラインHTMLをサニタイズして安全なHTMLを返す。
	// 許可タグ（b, i, u, strong, em, mark, code, br, a）のみを通過させる。
	// aタグのhrefはhttp, https, mailtoと相対URLのみ許可され、
	// 外部リンクにはtarget="_blank"とrel="noopener noreferrer"が付与される。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(rawHTML string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
func NewContentSanitizer() *contentSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements("b", "i", "u", "strong", "em", "br")

	// インラインコードとマーカーはエディタが付けるclassを保持する
	p.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).OnElements("code", "mark")
	p.AllowElements("code", "mark")

	// 記事間リンクのため相対URLを許可する
	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("http", "https", "mailto")
	p.AllowRelativeURLs(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	return &contentSanitizer{
		policy: p,
	}
}

// Sanitize はインラインHTMLをサニタイズして安全なHTMLを返す。
func (s *contentSanitizer) Sanitize(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}

// stripPolicy はすべてのタグを除去するポリシー。
var stripPolicy = bluemonday.StrictPolicy()

// StripTags はHTMLタグをすべて取り除いたテキストを返す。
// タイトルや説明文など、HTMLを許可しないフィールドに使用する。
func StripTags(raw string) string {
	return stripPolicy.Sanitize(raw)
}
