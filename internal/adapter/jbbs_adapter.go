package adapter

import (
	"fmt"
	"time"

	"GoBBSPoster/internal/model"
)

// JBBSAdapter は、したらば掲示板 (write.cgi) の書き込み規約を実装します。
type JBBSAdapter struct{}

// NewJBBSAdapter は、JBBSAdapter の新しいインスタンスを返します。
func NewJBBSAdapter() BoardAdapter {
	return &JBBSAdapter{}
}

// PostURL は {server}/bbs/write.cgi/{dir}/{bbs}/{key|new}/ を返します。
func (a *JBBSAdapter) PostURL(board model.Board, threadID string) (string, error) {
	base, err := jbbsBase(board, "write.cgi")
	if err != nil {
		return "", err
	}
	if threadID == "" {
		return base + "new/", nil
	}
	return base + threadID + "/", nil
}

// ReadURL は {server}/bbs/read.cgi/{dir}/{bbs}/{key}/ を返します。
func (a *JBBSAdapter) ReadURL(board model.Board, threadID string) (string, error) {
	if threadID == "" {
		server, err := serverBase(board)
		if err != nil {
			return "", err
		}
		return server + "/" + board.SubDir + "/" + board.BBSID + "/", nil
	}
	base, err := jbbsBase(board, "read.cgi")
	if err != nil {
		return "", err
	}
	return base + threadID + "/", nil
}

// BuildForm は NAME, MAIL, MESSAGE, BBS, KEY, DIR の順にフォームを組み立てます。
func (a *JBBSAdapter) BuildForm(params model.PostParams, board model.Board, now time.Time) []model.FormField {
	var fields []model.FormField
	if params.IsNewThread() {
		fields = append(fields, model.FormField{Name: "SUBJECT", Value: params.Subject})
	}
	fields = append(fields,
		model.FormField{Name: "NAME", Value: params.Name},
		model.FormField{Name: "MAIL", Value: params.Mail},
		model.FormField{Name: "MESSAGE", Value: params.Message},
		model.FormField{Name: "BBS", Value: board.BBSID},
	)
	if !params.IsNewThread() {
		fields = append(fields, model.FormField{Name: "KEY", Value: params.ThreadID})
	}
	submit := submitReply
	if params.IsNewThread() {
		submit = submitNewThread
	}
	return append(fields,
		model.FormField{Name: "DIR", Value: board.SubDir},
		model.FormField{Name: "submit", Value: submit},
	)
}

// StandardFields は write.cgi が受け付けるフィールド名です。
func (a *JBBSAdapter) StandardFields() []string {
	return []string{"SUBJECT", "NAME", "MAIL", "MESSAGE", "BBS", "KEY", "DIR", "TIME", "submit"}
}

// AuthParam は空文字列です。したらばは外部認証トークンを使いません。
func (a *JBBSAdapter) AuthParam() string {
	return ""
}

func jbbsBase(board model.Board, cgi string) (string, error) {
	server, err := serverBase(board)
	if err != nil {
		return "", err
	}
	if board.SubDir == "" || board.BBSID == "" {
		return "", fmt.Errorf("したらばの板にはカテゴリと掲示板番号が必要です (dir=%q, bbs=%q)", board.SubDir, board.BBSID)
	}
	return server + "/bbs/" + cgi + "/" + board.SubDir + "/" + board.BBSID + "/", nil
}
