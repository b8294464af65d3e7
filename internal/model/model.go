// Package model は、掲示板への書き込みで共有される値型を定義します。
package model

// BoardKind は、掲示板ソフトウェアの種別を表します。
type BoardKind string

const (
	// KindFiveCh は 5ch 本体の板です（デフォルト）。
	KindFiveCh BoardKind = "5ch"
	// KindCompat は 2ch 互換スクリプトで動く外部板です。
	KindCompat BoardKind = "2ch"
	// KindJBBS は したらば（JBBS）の板です。
	KindJBBS BoardKind = "jbbs"
)

// Normalize は未知の種別を KindFiveCh に丸めます。
func (k BoardKind) Normalize() BoardKind {
	switch k {
	case KindFiveCh, KindCompat, KindJBBS:
		return k
	default:
		return KindFiveCh
	}
}

// Board は書き込み先の板に関するメタデータです。
type Board struct {
	Title     string
	URL       string
	BBSID     string // 5ch: news4vip など / JBBS: 掲示板番号
	ServerURL string // スキームとホスト (例: https://mi.5ch.net)
	Kind      BoardKind
	SubDir    string // JBBS のカテゴリ
}

// PostParams は一回の書き込み要求の内容です。
// ThreadID が空の場合はスレッドの新規作成になります。
type PostParams struct {
	BoardURL string
	ThreadID string
	Name     string
	Mail     string
	Message  string
	Subject  string // スレ立て時のみ使用
}

// IsNewThread は、この要求がスレッドの新規作成かどうかを返します。
func (p PostParams) IsNewThread() bool {
	return p.ThreadID == ""
}

// FormField はフォームの name/value の組です。送信順序を保つためにスライスで扱います。
type FormField struct {
	Name  string
	Value string
}
