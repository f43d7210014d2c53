// Package editor はブロック形式のリッチテキストエディタとの連携を提供する。
//
// エディタの出力は基本的に不透明なJSONとして扱い、描画が必要な箇所でのみ
// Documentとして解釈する。
package editor

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

// Document はエディタが出力するドキュメントを表す。
type Document struct {
	Time    int64   `json:"time,omitempty"`
	Blocks  []Block `json:"blocks"`
	Version string  `json:"version,omitempty"`
}

// Block はドキュメント内の1ブロックを表す。
// Dataの構造はTypeごとに異なる。
type Block struct {
	ID   string          `json:"id,omitempty"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ParseDocument はエディタ出力をDocumentとして解釈する。
func ParseDocument(data json.RawMessage) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse editor document: %w", err)
	}
	return &doc, nil
}

//go:embed fallback.json
var fallback []byte

// FallbackTemplate は下書きがない場合に表示する初期ドキュメントを返す。
// 呼び出し側で変更しても共有の内容には影響しない。
func FallbackTemplate() json.RawMessage {
	return append(json.RawMessage(nil), fallback...)
}

// emptyDocument はすべてのブロックを消去したドキュメント。
var emptyDocument = json.RawMessage(`{"blocks":[]}`)
