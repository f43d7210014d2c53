// Package draft はリモート保存前のエディタ出力を保持する下書きストアを提供する。
//
// 下書きは所有者と名前の組（Key）で識別される1つのスロットに保存される。
// クライアントではプロファイル単位、サーバーではユーザー単位で所有者を分ける。
package draft

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
)

// DataKey はエディタ出力を保存する既定のスロット名。
const DataKey = "editorData"

// MaxSize は1つの下書きに保存できる最大バイト数。
const MaxSize int64 = 1 << 20

// Key は下書きスロットを識別する。
type Key struct {
	Owner string
	Name  string
}

// String はログ出力用の文字列表現を返す。
func (k Key) String() string {
	return k.Owner + "/" + k.Name
}

// Store は下書きの永続化インターフェース。
type Store interface {
	// Get は保存されている下書きを返す。存在しない場合はnilを返す。
	Get(ctx context.Context, key Key) (json.RawMessage, error)
	// Set は下書きを上書き保存する。
	Set(ctx context.Context, key Key, data json.RawMessage) error
	// Clear は下書きを削除する。存在しない場合もエラーにしない。
	Clear(ctx context.Context, key Key) error
}

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidName はスロット名または所有者名として使用できる文字列かを返す。
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

// ErrInvalidKey はKeyの所有者または名前が不正な場合に返される。
var ErrInvalidKey = errors.New("invalid draft key")

// validateKey はファイル名やキャッシュキーに埋め込める値かを検証する。
func validateKey(key Key) error {
	if !ValidName(key.Owner) || !ValidName(key.Name) {
		return ErrInvalidKey
	}
	return nil
}
