// Package adapter は、掲示板ソフトウェアごとの書き込み規約（URL、フィールド名、送信ボタンの値）を
// 抽象化するインターフェースと、その具体的な実装を提供します。
package adapter

import (
	"time"

	"GoBBSPoster/internal/model"
)

// BoardAdapter は、板の種別ごとの書き込み規約を抽象化するインターフェースです。
type BoardAdapter interface {
	// PostURL は書き込みを受け付ける CGI の URL を返します。threadID が空ならスレ立て用です。
	PostURL(board model.Board, threadID string) (string, error)
	// ReadURL はスレッドの閲覧 URL を返します。返信時の Referer に使います。
	ReadURL(board model.Board, threadID string) (string, error)
	// BuildForm は初回送信用のフォームを送信順に組み立てます。
	BuildForm(params model.PostParams, board model.Board, now time.Time) []model.FormField
	// StandardFields は、書き込み CGI が本来受け付けるフィールド名の一覧です。
	// 確認画面の hidden のうちこれ以外のものは Cookie としても保存されます。
	StandardFields() []string
	// AuthParam は外部認証トークンを載せるフィールド名です。使わない場合は空文字列です。
	AuthParam() string
}

// IsStandardField は、name が adapter の標準フィールド（または認証フィールド）かどうかを返します。
func IsStandardField(a BoardAdapter, name string) bool {
	if name == "" {
		return false
	}
	if name == a.AuthParam() {
		return true
	}
	for _, f := range a.StandardFields() {
		if f == name {
			return true
		}
	}
	return false
}
