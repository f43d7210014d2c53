// Package render は記事のエディタ出力をHTMLに変換する。
package render

import (
	"encoding/json"
	"fmt"
	"html"
	"html/template"
	"log/slog"
	"strings"

	"github.com/basedest/course-project/internal/editor"
	"github.com/basedest/course-project/internal/security"
)

// Renderer はエディタのドキュメントをサニタイズ済みHTMLに変換する。
type Renderer struct {
	sanitizer security.ContentSanitizerService
}

// NewRenderer はRendererを生成する。
func NewRenderer(sanitizer security.ContentSanitizerService) *Renderer {
	return &Renderer{sanitizer: sanitizer}
}

type textData struct {
	Text string `json:"text"`
}

type headerData struct {
	Text  string `json:"text"`
	Level int    `json:"level"`
}

type listData struct {
	Style string            `json:"style"`
	Items []json.RawMessage `json:"items"`
}

// nestedListItem は入れ子リスト形式の項目。
type nestedListItem struct {
	Content string            `json:"content"`
	Items   []json.RawMessage `json:"items"`
}

type quoteData struct {
	Text    string `json:"text"`
	Caption string `json:"caption"`
}

type codeData struct {
	Code string `json:"code"`
}

type imageData struct {
	URL  string `json:"url"`
	File struct {
		URL string `json:"url"`
	} `json:"file"`
	Caption string `json:"caption"`
}

// HTML はドキュメントをHTMLに変換する。
// 未知のブロック種別と解釈できないブロックは出力しない。
func (r *Renderer) HTML(content json.RawMessage) (template.HTML, error) {
	if len(content) == 0 {
		return "", nil
	}
	doc, err := editor.ParseDocument(content)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, block := range doc.Blocks {
		if err := r.writeBlock(&b, block); err != nil {
			slog.Warn("skipping malformed block",
				slog.String("type", block.Type),
				slog.String("error", err.Error()),
			)
		}
	}
	return template.HTML(b.String()), nil
}

func (r *Renderer) writeBlock(b *strings.Builder, block editor.Block) error {
	switch block.Type {
	case "paragraph":
		var d textData
		if err := json.Unmarshal(block.Data, &d); err != nil {
			return err
		}
		fmt.Fprintf(b, "<p>%s</p>\n", r.sanitizer.Sanitize(d.Text))

	case "header":
		var d headerData
		if err := json.Unmarshal(block.Data, &d); err != nil {
			return err
		}
		level := d.Level
		if level < 1 || level > 6 {
			level = 2
		}
		fmt.Fprintf(b, "<h%d>%s</h%d>\n", level, r.sanitizer.Sanitize(d.Text), level)

	case "list":
		var d listData
		if err := json.Unmarshal(block.Data, &d); err != nil {
			return err
		}
		r.writeList(b, d.Style, d.Items)

	case "quote":
		var d quoteData
		if err := json.Unmarshal(block.Data, &d); err != nil {
			return err
		}
		b.WriteString("<blockquote>")
		fmt.Fprintf(b, "<p>%s</p>", r.sanitizer.Sanitize(d.Text))
		if d.Caption != "" {
			fmt.Fprintf(b, "<cite>%s</cite>", r.sanitizer.Sanitize(d.Caption))
		}
		b.WriteString("</blockquote>\n")

	case "code":
		var d codeData
		if err := json.Unmarshal(block.Data, &d); err != nil {
			return err
		}
		fmt.Fprintf(b, "<pre><code>%s</code></pre>\n", html.EscapeString(d.Code))

	case "image":
		var d imageData
		if err := json.Unmarshal(block.Data, &d); err != nil {
			return err
		}
		src := d.File.URL
		if src == "" {
			src = d.URL
		}
		if !IsSafeImageURL(src) {
			return fmt.Errorf("unsafe image url: %q", src)
		}
		caption := r.sanitizer.Sanitize(d.Caption)
		fmt.Fprintf(b, `<figure><img src="%s" alt="%s">`, html.EscapeString(src), html.EscapeString(security.StripTags(d.Caption)))
		if caption != "" {
			fmt.Fprintf(b, "<figcaption>%s</figcaption>", caption)
		}
		b.WriteString("</figure>\n")

	case "delimiter":
		b.WriteString("<hr>\n")
	}
	return nil
}

// writeList は通常のリストと入れ子リストの両方の形式を出力する。
func (r *Renderer) writeList(b *strings.Builder, style string, items []json.RawMessage) {
	tag := "ul"
	if style == "ordered" {
		tag = "ol"
	}
	fmt.Fprintf(b, "<%s>", tag)
	for _, raw := range items {
		var text string
		if err := json.Unmarshal(raw, &text); err == nil {
			fmt.Fprintf(b, "<li>%s</li>", r.sanitizer.Sanitize(text))
			continue
		}
		var item nestedListItem
		if err := json.Unmarshal(raw, &item); err != nil {
			continue
		}
		fmt.Fprintf(b, "<li>%s", r.sanitizer.Sanitize(item.Content))
		if len(item.Items) > 0 {
			r.writeList(b, style, item.Items)
		}
		b.WriteString("</li>")
	}
	fmt.Fprintf(b, "</%s>\n", tag)
}

// IsSafeImageURL は画像のsrcとして出力してよいURLかを返す。
// httpsの絶対URLと、サイト内のルート相対パスのみ許可する。
func IsSafeImageURL(src string) bool {
	if strings.HasPrefix(src, "https://") {
		return len(src) > len("https://")
	}
	return strings.HasPrefix(src, "/") && !strings.HasPrefix(src, "//")
}
