// Command blog はブログサーバー、クリーンアップワーカー、
// オーサリングクライアントを1つのバイナリで提供する。
//
//	blog serve       APIサーバー（既定）
//	blog worker      期限切れセッションと古い下書きの削除
//	blog migrate     データベースマイグレーション
//	blog routes      ルーティング一覧の出力
//	blog edit        エディタファイルへの読み込み
//	blog publish     記事の保存
//	blog clear       エディタファイルのクリア
package main

import (
	"fmt"
	"os"

	"github.com/basedest/course-project/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
