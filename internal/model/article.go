package model

import (
	"encoding/json"
	"strings"
	"time"
)

// Article はブログ記事を表す。
// Slugはタイトルから導出される一意な識別子で、作成後は変更されない。
// ContentはエディタのOutputをそのまま保持する不透明なJSONドキュメント。
type Article struct {
	ID          string          `json:"id,omitempty"`
	Slug        string          `json:"slug"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Author      string          `json:"author"`
	AuthorID    string          `json:"authorId,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	EditedAt    *time.Time      `json:"editedAt,omitempty"`
	Img         string          `json:"img,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
	Content     json.RawMessage `json:"content,omitempty"`
}

// Path は記事の正規URLパス /{category}/{slug} を返す。
func (a *Article) Path() string {
	return "/" + a.Category + "/" + a.Slug
}

// MissingRequiredFields は未入力の必須項目名を返す。
// 著者と作成日時はサーバー側で補完されるため対象外。
func (a *Article) MissingRequiredFields() []string {
	var missing []string
	if strings.TrimSpace(a.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(a.Category) == "" {
		missing = append(missing, "category")
	}
	if strings.TrimSpace(a.Description) == "" {
		missing = append(missing, "description")
	}
	return missing
}

// ArticleQuery は記事一覧の検索条件を表す。
// 空のフィールドは条件に含めない。
type ArticleQuery struct {
	Category string
	Title    string // タイトルの部分一致（大文字小文字を区別しない）
	Offset   int
	Limit    int
}

// ArticlePageSize は記事一覧1ページあたりの件数。
const ArticlePageSize = 10

// Categories は記事に指定できるカテゴリの固定一覧。
var Categories = []string{
	"frontend",
	"backend",
	"devops",
	"mobile",
	"career",
}

// IsValidCategory はカテゴリが固定一覧に含まれるかを返す。
func IsValidCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

// SuggestedTags はタグ入力欄に候補として表示するタグ。
// 候補以外のタグも自由に付けられる。
var SuggestedTags = []string{
	"javascript",
	"typescript",
	"react",
	"nodejs",
	"backend",
	"frontend",
}

// NormalizeTags はタグを小文字化・トリムし、空要素と重複を除いて返す。
// 入力順は保持する。
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	result := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		result = append(result, t)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
