package render

import (
	"encoding/json"
	"fmt"

	"github.com/basedest/course-project/internal/editor"
)

// sanitizedFields はインラインHTMLを含みうるブロックデータのフィールド名。
var sanitizedFields = []string{"text", "caption", "content"}

// Sanitize はドキュメント内の各ブロックのテキストをサニタイズしたドキュメントを返す。
// ブロックの種別と未知のフィールドはそのまま保持する。
// サニタイズで変化がなかった場合は入力をそのまま返す。
func (r *Renderer) Sanitize(content json.RawMessage) (json.RawMessage, error) {
	if len(content) == 0 {
		return content, nil
	}
	doc, err := editor.ParseDocument(content)
	if err != nil {
		return nil, err
	}

	changed := false
	for i, block := range doc.Blocks {
		if len(block.Data) == 0 || block.Type == "code" {
			continue
		}
		var data map[string]interface{}
		if err := json.Unmarshal(block.Data, &data); err != nil {
			return nil, fmt.Errorf("block %d (%s) has invalid data: %w", i, block.Type, err)
		}
		if !r.sanitizeMap(data) {
			continue
		}
		changed = true
		out, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to encode block %d: %w", i, err)
		}
		doc.Blocks[i].Data = out
	}

	if !changed {
		return content, nil
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return out, nil
}

// sanitizeMap はdataをその場でサニタイズし、値が変化したかを返す。
func (r *Renderer) sanitizeMap(data map[string]interface{}) bool {
	changed := false
	for _, field := range sanitizedFields {
		if s, ok := data[field].(string); ok {
			if clean := r.sanitizer.Sanitize(s); clean != s {
				data[field] = clean
				changed = true
			}
		}
	}
	if items, ok := data["items"].([]interface{}); ok {
		if r.sanitizeItems(items) {
			changed = true
		}
	}
	return changed
}

func (r *Renderer) sanitizeItems(items []interface{}) bool {
	changed := false
	for i, item := range items {
		switch v := item.(type) {
		case string:
			if clean := r.sanitizer.Sanitize(v); clean != v {
				items[i] = clean
				changed = true
			}
		case map[string]interface{}:
			if r.sanitizeMap(v) {
				changed = true
			}
		}
	}
	return changed
}
