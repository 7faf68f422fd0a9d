package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	// 期限切れセッションの定期削除も同じプロセスで実行する。
	CommandServe Command = "serve"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandCleanup は期限切れセッションの削除を1回だけ実行することを示す。
	// 外部スケジューラから呼び出す用途。
	CommandCleanup Command = "cleanup"
	// CommandHashPassword は標準入力のパスワードをbcryptハッシュに変換して出力する。
	// ユーザーの初期投入用。
	CommandHashPassword Command = "hash-password"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch Command(args[0]) {
	case CommandServe, CommandMigrate, CommandCleanup, CommandHashPassword, CommandHealthcheck:
		return Command(args[0])
	default:
		return CommandServe
	}
}
