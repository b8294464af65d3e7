package adapter

import (
	"testing"
	"time"

	"GoBBSPoster/internal/model"
)

var fixedNow = time.Unix(1700000000, 0)

func fieldNames(fields []model.FormField) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestFiveChAdapter_Reply(t *testing.T) {
	// Arrange
	a, err := GetAdapter(model.KindFiveCh)
	if err != nil {
		t.Fatalf("GetAdapter が失敗しました: %v", err)
	}
	board := model.Board{ServerURL: "https://mi.5ch.net/", BBSID: "news4vip", Kind: model.KindFiveCh}
	params := model.PostParams{ThreadID: "1700000000", Name: "名無し", Mail: "sage", Message: "テスト"}

	// Act
	postURL, err := a.PostURL(board, params.ThreadID)
	if err != nil {
		t.Fatalf("PostURL が失敗しました: %v", err)
	}
	readURL, err := a.ReadURL(board, params.ThreadID)
	if err != nil {
		t.Fatalf("ReadURL が失敗しました: %v", err)
	}
	fields := a.BuildForm(params, board, fixedNow)

	// Assert
	if postURL != "https://mi.5ch.net/test/bbs.cgi" {
		t.Errorf("PostURL が期待値と異なります: %s", postURL)
	}
	if readURL != "https://mi.5ch.net/test/read.cgi/news4vip/1700000000/" {
		t.Errorf("ReadURL が期待値と異なります: %s", readURL)
	}
	want := []string{"FROM", "mail", "MESSAGE", "bbs", "time", "key", "submit"}
	if got := fieldNames(fields); !equalStrings(got, want) {
		t.Errorf("フィールド順が期待値と異なります。期待値: %v, 実際値: %v", want, got)
	}
	if fields[4].Value != "1700000000" || fields[6].Value != "書き込む" {
		t.Errorf("time / submit の値が不正です: %+v", fields)
	}
	if a.AuthParam() != "sid" {
		t.Errorf("5ch の認証フィールドが sid ではありません: %q", a.AuthParam())
	}
}

func TestFiveChAdapter_NewThread(t *testing.T) {
	a := NewFiveChAdapter()
	board := model.Board{ServerURL: "https://mi.5ch.net", BBSID: "news4vip"}
	fields := a.BuildForm(model.PostParams{Subject: "スレタイ", Message: "本文"}, board, fixedNow)

	want := []string{"subject", "FROM", "mail", "MESSAGE", "bbs", "time", "submit"}
	if got := fieldNames(fields); !equalStrings(got, want) {
		t.Errorf("スレ立てのフィールド順が期待値と異なります。期待値: %v, 実際値: %v", want, got)
	}
	if fields[len(fields)-1].Value != "新規スレッド作成" {
		t.Errorf("スレ立ての submit 値が不正です: %q", fields[len(fields)-1].Value)
	}
}

func TestCompatAdapter_NoAuthParam(t *testing.T) {
	a, err := GetAdapter(model.KindCompat)
	if err != nil {
		t.Fatalf("GetAdapter が失敗しました: %v", err)
	}
	if a.AuthParam() != "" {
		t.Errorf("互換板で認証フィールドが設定されています: %q", a.AuthParam())
	}
	if IsStandardField(a, "") {
		t.Error("空のフィールド名が標準フィールドと判定されました")
	}
	if !IsStandardField(a, "MESSAGE") || IsStandardField(a, "yuki") {
		t.Error("標準フィールドの判定が不正です")
	}
}

func TestJBBSAdapter(t *testing.T) {
	// Arrange
	a, err := GetAdapter(model.KindJBBS)
	if err != nil {
		t.Fatalf("GetAdapter が失敗しました: %v", err)
	}
	board := model.Board{ServerURL: "https://jbbs.shitaraba.net", BBSID: "12345", SubDir: "game", Kind: model.KindJBBS}

	// Act
	reply, _ := a.PostURL(board, "678")
	newThread, _ := a.PostURL(board, "")
	read, _ := a.ReadURL(board, "678")
	fields := a.BuildForm(model.PostParams{ThreadID: "678", Message: "本文"}, board, fixedNow)

	// Assert
	if reply != "https://jbbs.shitaraba.net/bbs/write.cgi/game/12345/678/" {
		t.Errorf("返信用 PostURL が不正です: %s", reply)
	}
	if newThread != "https://jbbs.shitaraba.net/bbs/write.cgi/game/12345/new/" {
		t.Errorf("スレ立て用 PostURL が不正です: %s", newThread)
	}
	if read != "https://jbbs.shitaraba.net/bbs/read.cgi/game/12345/678/" {
		t.Errorf("ReadURL が不正です: %s", read)
	}
	want := []string{"NAME", "MAIL", "MESSAGE", "BBS", "KEY", "DIR", "submit"}
	if got := fieldNames(fields); !equalStrings(got, want) {
		t.Errorf("フィールド順が期待値と異なります。期待値: %v, 実際値: %v", want, got)
	}

	if _, err := a.PostURL(model.Board{ServerURL: "https://jbbs.shitaraba.net"}, "1"); err == nil {
		t.Error("カテゴリのない板でエラーになっていません")
	}
}

func TestGetAdapter_Unknown(t *testing.T) {
	if _, err := GetAdapter(model.BoardKind("futaba")); err == nil {
		t.Error("未知の種別でエラーが返っていません")
	}
	if _, err := GetAdapter(""); err != nil {
		t.Errorf("空の種別は 5ch として扱われるべきです: %v", err)
	}
}

func TestResolveBoard(t *testing.T) {
	cases := []struct {
		url      string
		kind     model.BoardKind
		server   string
		bbs      string
		dir      string
		threadID string
	}{
		{"https://mi.5ch.net/news4vip/", model.KindFiveCh, "https://mi.5ch.net", "news4vip", "", ""},
		{"https://mi.5ch.net/test/read.cgi/news4vip/1700000000/l50", model.KindFiveCh, "https://mi.5ch.net", "news4vip", "", "1700000000"},
		{"https://mercury.bbspink.com/erobook/", model.KindFiveCh, "https://mercury.bbspink.com", "erobook", "", ""},
		{"https://example.org/board/", model.KindCompat, "https://example.org", "board", "", ""},
		{"https://jbbs.shitaraba.net/game/12345/", model.KindJBBS, "https://jbbs.shitaraba.net", "12345", "game", ""},
		{"https://jbbs.shitaraba.net/bbs/read.cgi/game/12345/678/", model.KindJBBS, "https://jbbs.shitaraba.net", "12345", "game", "678"},
	}
	for _, c := range cases {
		board, threadID, err := ResolveBoard(c.url)
		if err != nil {
			t.Errorf("ResolveBoard(%s) が失敗しました: %v", c.url, err)
			continue
		}
		if board.Kind != c.kind || board.ServerURL != c.server || board.BBSID != c.bbs || board.SubDir != c.dir || threadID != c.threadID {
			t.Errorf("ResolveBoard(%s) = %+v, thread=%q", c.url, board, threadID)
		}
	}

	for _, bad := range []string{"", "not a url", "https://jbbs.shitaraba.net/game/", "https://mi.5ch.net/"} {
		if _, _, err := ResolveBoard(bad); err == nil {
			t.Errorf("ResolveBoard(%q) でエラーが返っていません", bad)
		}
	}
}

func TestFillBoard_KeepsExplicitValues(t *testing.T) {
	board, err := FillBoard(model.Board{Title: "VIP", URL: "https://mi.5ch.net/news4vip/", BBSID: "override"})
	if err != nil {
		t.Fatalf("FillBoard が失敗しました: %v", err)
	}
	if board.BBSID != "override" || board.ServerURL != "https://mi.5ch.net" || board.Kind != model.KindFiveCh {
		t.Errorf("FillBoard の結果が不正です: %+v", board)
	}
}
