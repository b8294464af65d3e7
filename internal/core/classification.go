// Package core は、掲示板への書き込み処理の中核（結果判定、確認画面の解析、再送信の状態機械）を実装します。
package core

import (
	"strings"

	"GoBBSPoster/internal/donguri"
)

// Classification は、書き込み CGI の応答 1 件に対する判定結果です。
type Classification int

const (
	ClassError              Classification = iota // どの判定にも当てはまらない
	ClassOK                                       // 書き込み成功
	ClassCookieConfirmation                       // Cookie 確認画面
	ClassCheckConfirmation                        // 書き込み確認画面
	ClassDonguriConsumed                          // どんぐり消費
	ClassDonguriBroken                            // どんぐり破損
	ClassNinpouCreated                            // 忍法帖の作成
	ClassSuitonPenalty                            // 水遁（連投規制）
)

// String は Classification を人間可読な文字列に変換します。
func (c Classification) String() string {
	switch c {
	case ClassOK:
		return "書き込み成功"
	case ClassCookieConfirmation:
		return "Cookie確認"
	case ClassCheckConfirmation:
		return "書き込み確認"
	case ClassDonguriConsumed:
		return "どんぐり消費"
	case ClassDonguriBroken:
		return "どんぐり破損"
	case ClassNinpouCreated:
		return "忍法帖作成"
	case ClassSuitonPenalty:
		return "水遁"
	case ClassError:
		return "エラー"
	default:
		return "不明"
	}
}

// IsConfirmation は、確認画面として再送信の対象になる判定かどうかを返します。
func (c Classification) IsConfirmation() bool {
	return c == ClassCookieConfirmation || c == ClassCheckConfirmation
}

// donguriOutcome は どんぐり の状態更新に使う結果へ変換します。
func (c Classification) donguriOutcome() donguri.Outcome {
	switch c {
	case ClassDonguriConsumed:
		return donguri.OutcomeConsumed
	case ClassDonguriBroken:
		return donguri.OutcomeBroken
	default:
		return donguri.OutcomeOther
	}
}

type classificationRule struct {
	class   Classification
	markers []string
}

// classificationRules は上から順に評価され、最初に一致したものが採用されます。
// 成功判定は他の文言に隠されないよう必ず先頭に置くこと。
var classificationRules = []classificationRule{
	{ClassOK, []string{
		"書きこみました",
		"書き込みました",
		"<!-- 2ch_X:true -->",
	}},
	{ClassCookieConfirmation, []string{
		"<!-- 2ch_X:cookie -->",
		"クッキーがないか期限切れです",
		"Cookieがないか期限切れです",
		"クッキー確認",
	}},
	{ClassCheckConfirmation, []string{
		"<!-- 2ch_X:check -->",
		"書き込み確認",
		"書きこみ確認",
		"投稿確認",
		"内容確認",
	}},
	{ClassDonguriConsumed, []string{
		"どんぐりを消費しました",
	}},
	{ClassDonguriBroken, []string{
		"broken_acorn",
		"[0088]",
		"[1044]",
		"[1045]",
	}},
	{ClassNinpouCreated, []string{
		"忍法帖を作成します",
	}},
	{ClassSuitonPenalty, []string{
		"[0075]",
		"水遁",
	}},
}

// Classify は応答の本文を判定します。どれにも一致しなければ ClassError です。
func Classify(text string) Classification {
	for _, rule := range classificationRules {
		for _, m := range rule.markers {
			if strings.Contains(text, m) {
				return rule.class
			}
		}
	}
	return ClassError
}
