package adapter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"GoBBSPoster/internal/model"
)

const (
	submitReply     = "書き込む"
	submitNewThread = "新規スレッド作成"
)

// FiveChAdapter は、5ch 本体 (bbs.cgi) の書き込み規約を実装します。
type FiveChAdapter struct {
	authParam string
}

// NewFiveChAdapter は、FiveChAdapter の新しいインスタンスを返します。
func NewFiveChAdapter() BoardAdapter {
	return &FiveChAdapter{authParam: "sid"}
}

// NewCompatAdapter は、2ch 互換スクリプトの外部板用のアダプタを返します。
// フィールドは 5ch と同じですが、外部認証トークンは送りません。
func NewCompatAdapter() BoardAdapter {
	return &FiveChAdapter{}
}

// PostURL は {server}/test/bbs.cgi を返します。
func (a *FiveChAdapter) PostURL(board model.Board, threadID string) (string, error) {
	server, err := serverBase(board)
	if err != nil {
		return "", err
	}
	return server + "/test/bbs.cgi", nil
}

// ReadURL は {server}/test/read.cgi/{bbs}/{key}/ を返します。
func (a *FiveChAdapter) ReadURL(board model.Board, threadID string) (string, error) {
	server, err := serverBase(board)
	if err != nil {
		return "", err
	}
	if board.BBSID == "" {
		return "", fmt.Errorf("板IDが設定されていません (board=%s)", board.Title)
	}
	if threadID == "" {
		return server + "/" + board.BBSID + "/", nil
	}
	return server + "/test/read.cgi/" + board.BBSID + "/" + threadID + "/", nil
}

// BuildForm は FROM, mail, MESSAGE, bbs, time, key の順にフォームを組み立てます。
func (a *FiveChAdapter) BuildForm(params model.PostParams, board model.Board, now time.Time) []model.FormField {
	var fields []model.FormField
	if params.IsNewThread() {
		fields = append(fields, model.FormField{Name: "subject", Value: params.Subject})
	}
	fields = append(fields,
		model.FormField{Name: "FROM", Value: params.Name},
		model.FormField{Name: "mail", Value: params.Mail},
		model.FormField{Name: "MESSAGE", Value: params.Message},
		model.FormField{Name: "bbs", Value: board.BBSID},
		model.FormField{Name: "time", Value: strconv.FormatInt(now.Unix(), 10)},
	)
	if params.IsNewThread() {
		return append(fields, model.FormField{Name: "submit", Value: submitNewThread})
	}
	return append(fields,
		model.FormField{Name: "key", Value: params.ThreadID},
		model.FormField{Name: "submit", Value: submitReply},
	)
}

// StandardFields は bbs.cgi が受け付けるフィールド名です。
func (a *FiveChAdapter) StandardFields() []string {
	return []string{"subject", "FROM", "mail", "MESSAGE", "bbs", "time", "key", "submit"}
}

// AuthParam は外部認証トークンのフィールド名です。
func (a *FiveChAdapter) AuthParam() string {
	return a.authParam
}

func serverBase(board model.Board) (string, error) {
	server := strings.TrimRight(strings.TrimSpace(board.ServerURL), "/")
	if server == "" {
		return "", fmt.Errorf("サーバーURLが設定されていません (board=%s, url=%s)", board.Title, board.URL)
	}
	return server, nil
}
