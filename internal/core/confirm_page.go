package core

import (
	"regexp"
	"strings"

	"GoBBSPoster/internal/model"
)

var (
	formTagPattern  = regexp.MustCompile(`(?is)<form\b[^>]*>`)
	inputTagPattern = regexp.MustCompile(`(?is)<input\b[^>]*>`)
	// name="v" / name='v' / name=v の3形式を受け付ける
	attrPattern = regexp.MustCompile(`(?is)([a-z_:][-a-z0-9_:.]*)\s*=\s*(?:"([^"]*)"|'([^']*)'|([^\s"'>]+))`)
	tagPattern  = regexp.MustCompile(`(?s)<[^>]*>`)

	// 確認画面の本文・スクリプトに現れる Cookie の断片
	fragmentPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)document\.cookie\s*=\s*["']\s*([^=;"'\s]+)\s*=\s*([^;"'\r\n\t]*)`),
		regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_\-]*)\s*=\s*(confirmed:[^\s"'<>;&]+)`),
	}
)

// ConfirmationForm は確認画面から取り出したフォームの内容です。
// HiddenFields と Submit の値は HTML エスケープされたままです。
type ConfirmationForm struct {
	Action       string
	HiddenFields []model.FormField
	Submit       model.FormField // Name が空なら再送信に含めない
	// Fragments は Cookie ヘッダで送り返す name/value の組です。
	// 同名の hidden とは値が異なることがあり、入れ替えるとサーバーに拒否されます。
	Fragments []model.FormField
}

// ParseConfirmationPage は確認画面の HTML からフォームの内容を取り出します。
// 該当するタグがなければ空のまま返し、エラーにはしません。
func ParseConfirmationPage(html string) ConfirmationForm {
	var form ConfirmationForm

	if tag := formTagPattern.FindString(html); tag != "" {
		form.Action = tagAttrs(tag)["action"]
	}

	seenHidden := make(map[string]bool)
	submitFound := false
	for _, tag := range inputTagPattern.FindAllString(html, -1) {
		attrs := tagAttrs(tag)
		switch strings.ToLower(attrs["type"]) {
		case "hidden":
			name := attrs["name"]
			if name == "" || seenHidden[name] {
				continue
			}
			seenHidden[name] = true
			form.HiddenFields = append(form.HiddenFields, model.FormField{Name: name, Value: attrs["value"]})
		case "submit":
			if submitFound {
				continue
			}
			submitFound = true
			form.Submit = model.FormField{Name: attrs["name"], Value: attrs["value"]}
		}
	}

	form.Fragments = extractFragments(html)
	return form
}

// extractFragments はタグを取り除いた本文から Cookie の断片を探します。
// タグの属性 (value=confirmed:...) を断片と取り違えないよう、先にタグを消してから照合します。
func extractFragments(html string) []model.FormField {
	text := tagPattern.ReplaceAllString(html, " ")

	var fragments []model.FormField
	seen := make(map[string]bool)
	for _, p := range fragmentPatterns {
		for _, m := range p.FindAllStringSubmatch(text, -1) {
			name := strings.TrimSpace(m[1])
			value := strings.TrimSpace(m[2])
			if name == "" || value == "" || seen[name] {
				continue
			}
			seen[name] = true
			fragments = append(fragments, model.FormField{Name: name, Value: value})
		}
	}
	return fragments
}

// tagAttrs はタグの属性を小文字の属性名で返します。同名の属性は最初のものを使います。
func tagAttrs(tag string) map[string]string {
	attrs := make(map[string]string)
	for _, m := range attrPattern.FindAllStringSubmatch(tag, -1) {
		key := strings.ToLower(m[1])
		if _, exists := attrs[key]; exists {
			continue
		}
		attrs[key] = m[2] + m[3] + m[4]
	}
	return attrs
}
