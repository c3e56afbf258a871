package app

import "strings"

// Command はtrendlensの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーを起動する。REFRESH_ENABLEDならバックグラウンド更新も同じプロセスで行う。
	CommandServe Command = "serve"
	// CommandWorker はバックグラウンド更新とクリーンアップのみを行う。
	CommandWorker Command = "worker"
	// CommandMigrate はpostgresストア用のマイグレーションを適用する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はローカルの/healthを叩いて終了する。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

var commands = map[string]Command{
	string(CommandServe):       CommandServe,
	string(CommandWorker):      CommandWorker,
	string(CommandMigrate):     CommandMigrate,
	string(CommandHealthcheck): CommandHealthcheck,
}

// ParseCommand はコマンドライン引数の先頭からサブコマンドを解析する。
// 大文字小文字は区別しない。引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}
	if cmd, ok := commands[strings.ToLower(strings.TrimSpace(args[0]))]; ok {
		return cmd
	}
	return CommandServe
}
