package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker はワーカーモードで起動することを示す。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
	// CommandRoutes はルーティング一覧をMarkdownで出力することを示す。
	CommandRoutes Command = "routes"

	// CommandEdit はエディタファイルに記事・下書き・テンプレートを読み込む。
	CommandEdit Command = "edit"
	// CommandPublish はエディタファイルの内容を記事として保存する。
	CommandPublish Command = "publish"
	// CommandClear はエディタファイルを空にする。
	CommandClear Command = "clear"
)

// IsClient はオーサリングクライアントのコマンドかを返す。
// クライアントのコマンドはサーバー設定を読み込まない。
func (c Command) IsClient() bool {
	switch c {
	case CommandEdit, CommandPublish, CommandClear:
		return true
	default:
		return false
	}
}

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch Command(args[0]) {
	case CommandServe, CommandWorker, CommandMigrate, CommandHealthcheck, CommandRoutes,
		CommandEdit, CommandPublish, CommandClear:
		return Command(args[0])
	default:
		return CommandServe
	}
}
