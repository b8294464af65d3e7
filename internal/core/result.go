package core

import (
	"strings"

	"GoBBSPoster/internal/model"

	"github.com/PuerkitoBio/goquery"
)

// summaryMaxRunes は PostResult.Message に載せる本文の最大文字数です。
const summaryMaxRunes = 200

// PostResult は Submit 1 回分の結果です。
type PostResult struct {
	Success        bool
	Classification Classification
	RawText        string            // 最後に受け取った応答の本文（デコード済み）
	HiddenFields   []model.FormField // 最後に取り出した確認画面の hidden 項目
	Message        string            // 表示用の要約
	Attempts       int               // 実際に送信した回数
}

// summarizeResponse は応答 HTML の <title> と本文テキストから表示用の要約を作ります。
func summarizeResponse(text string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return ""
	}
	doc.Find("script, style").Remove()

	title := strings.TrimSpace(doc.Find("title").First().Text())
	body := strings.Join(strings.Fields(doc.Find("body").Text()), " ")
	if r := []rune(body); len(r) > summaryMaxRunes {
		body = string(r[:summaryMaxRunes]) + "…"
	}

	switch {
	case title == "":
		return body
	case body == "":
		return title
	default:
		return title + ": " + body
	}
}
