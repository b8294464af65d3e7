// Package donguri は、5ch の書き込み制限である「どんぐり」(acorn Cookie) の状態を管理します。
package donguri

import (
	"strings"
	"sync"

	"GoBBSPoster/internal/cookie"
)

const (
	// AcornCookieName は どんぐり Cookie の名前です。
	AcornCookieName = "acorn"
	// AcornCookieDomain は どんぐり Cookie を格納するドメインです。
	AcornCookieDomain = ".5ch.net"
)

// Status は どんぐりの状態です。
type Status int

const (
	StatusNone Status = iota
	StatusActive
	StatusBroken
	StatusConsumed
)

// String は Status を人間可読な文字列に変換します。
func (s Status) String() string {
	switch s {
	case StatusNone:
		return "なし"
	case StatusActive:
		return "有効"
	case StatusBroken:
		return "破損"
	case StatusConsumed:
		return "消費済み"
	default:
		return "不明"
	}
}

// State は どんぐりの現在の状態と、利用者向けの説明です。
type State struct {
	Status  Status
	Message string
}

const (
	consumedMessage = "どんぐりを消費しました。しばらく待ってから書き込んでください"
	brokenMessage   = "どんぐりが壊れています。どんぐりを再取得してください"
)

// brokenReasons は破損時の応答に含まれるエラーコードと説明です。先に一致したものを使います。
var brokenReasons = []struct {
	marker  string
	message string
}{
	{"[0088]", "どんぐりの有効期限が切れています [0088]"},
	{"[1044]", "どんぐりが壊れています。どんぐりを再取得してください [1044]"},
	{"[1045]", "どんぐりが無効です。ログインし直してください [1045]"},
	{"broken_acorn", "どんぐりが壊れています (broken_acorn)"},
}

// Outcome は、書き込み結果のうち どんぐり に関係するものを表します。
type Outcome int

const (
	OutcomeOther Outcome = iota
	OutcomeConsumed
	OutcomeBroken
)

// Tracker は どんぐりの状態を保持します。状態は明示的な Cookie 操作と、
// 書き込み結果の2種類の判定でのみ変化します。
type Tracker struct {
	mu    sync.Mutex
	store *cookie.Store
	state State
}

// NewTracker は store の acorn Cookie を監視する Tracker を作成します。
func NewTracker(store *cookie.Store) *Tracker {
	return &Tracker{store: store}
}

// SetAcornCookie は acorn Cookie を格納し、状態を有効にします。
func (t *Tracker) SetAcornCookie(value string) {
	t.store.Set(cookie.StoredCookie{
		Name:   AcornCookieName,
		Value:  value,
		Domain: AcornCookieDomain,
		Path:   "/",
	})
	t.mu.Lock()
	t.state = State{Status: StatusActive}
	t.mu.Unlock()
}

// ClearAcornCookie は acorn Cookie を削除し、状態をなしに戻します。
func (t *Tracker) ClearAcornCookie() {
	t.store.Remove(AcornCookieName, AcornCookieDomain)
	t.mu.Lock()
	t.state = State{Status: StatusNone}
	t.mu.Unlock()
}

// HandlePostResult は書き込み結果に応じて状態を更新します。
// 消費・破損以外の結果では何もしません。
func (t *Tracker) HandlePostResult(outcome Outcome, rawText string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch outcome {
	case OutcomeConsumed:
		t.state = State{Status: StatusConsumed, Message: consumedMessage}
	case OutcomeBroken:
		msg := brokenMessage
		for _, r := range brokenReasons {
			if strings.Contains(rawText, r.marker) {
				msg = r.message
				break
			}
		}
		t.state = State{Status: StatusBroken, Message: msg}
	}
}

// State は現在の状態を返します。有効状態なのに acorn Cookie が
// ストアから消えている場合は、なしに戻してから返します。
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.Status == StatusActive {
		if _, ok := t.store.Find(AcornCookieName, AcornCookieDomain); !ok {
			t.state = State{Status: StatusNone}
		}
	}
	return t.state
}
