package main

import (
	"bytes"
	"strings"
	"testing"

	"GoBBSPoster/internal/config"
	"GoBBSPoster/internal/core"
	"GoBBSPoster/internal/donguri"
	"GoBBSPoster/internal/model"
)

func TestReadMessage(t *testing.T) {
	testCases := []struct {
		name      string
		flagValue string
		stdin     string
		want      string
		wantErr   bool
	}{
		{"フラグの値を優先する", "フラグ", "標準入力", "フラグ", false},
		{"標準入力から読み込み末尾の改行を除く", "", "一行目\n二行目\r\n", "一行目\n二行目", false},
		{"空の本文はエラー", "", " \n", "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := readMessage(tc.flagValue, strings.NewReader(tc.stdin))
			if (err != nil) != tc.wantErr {
				t.Fatalf("readMessage() error = %v, wantErr %v", err, tc.wantErr)
			}
			if got != tc.want {
				t.Errorf("readMessage() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestResolveTarget(t *testing.T) {
	cfg := &config.Config{
		Boards: []config.Board{
			{Name: "vip", URL: "https://mi.5ch.net/news4vip/", DefaultMail: "sage"},
		},
	}

	t.Run("設定ファイルの板名", func(t *testing.T) {
		board, defaults, threadID, err := resolveTarget(cfg, "vip")
		if err != nil {
			t.Fatalf("予期せぬエラーが発生しました: %v", err)
		}
		if board.BBSID != "news4vip" || board.Kind != model.KindFiveCh || board.ServerURL != "https://mi.5ch.net" {
			t.Errorf("板の情報が補完されていません: %+v", board)
		}
		if board.Title != "vip" {
			t.Errorf("タイトルが未設定の場合は板名を使うべきです: %q", board.Title)
		}
		if defaults.DefaultMail != "sage" || threadID != "" {
			t.Errorf("既定値が期待値と異なります: defaults=%+v, thread=%q", defaults, threadID)
		}
	})

	t.Run("スレッドのURL", func(t *testing.T) {
		board, _, threadID, err := resolveTarget(cfg, "https://jbbs.shitaraba.net/bbs/read.cgi/game/12345/1700000000/")
		if err != nil {
			t.Fatalf("予期せぬエラーが発生しました: %v", err)
		}
		if board.Kind != model.KindJBBS || threadID != "1700000000" {
			t.Errorf("スレッドURLの解決結果が期待値と異なります: board=%+v, thread=%q", board, threadID)
		}
	})

	t.Run("解決できない値", func(t *testing.T) {
		if _, _, _, err := resolveTarget(cfg, "unknown"); err == nil {
			t.Error("板名でも URL でもない値はエラーになるべきです")
		}
	})
}

func TestFirstNonEmpty(t *testing.T) {
	if got := firstNonEmpty("", "b", "c"); got != "b" {
		t.Errorf("firstNonEmpty() = %q, want %q", got, "b")
	}
	if got := firstNonEmpty("", ""); got != "" {
		t.Errorf("firstNonEmpty() = %q, want empty", got)
	}
}

func TestPrintResult(t *testing.T) {
	// Arrange
	var buf bytes.Buffer
	result := &core.PostResult{
		Classification: core.ClassCheckConfirmation,
		Message:        "書き込み確認",
		HiddenFields:   []model.FormField{{Name: "feature", Value: "abc"}},
		Attempts:       4,
	}

	// Act
	printResult(&buf, false, result)
	printDonguri(&buf, donguri.State{Status: donguri.StatusBroken, Message: "壊れています"})

	// Assert
	out := buf.String()
	for _, want := range []string{"結果: 書き込み確認 (送信回数: 4)", "応答: 書き込み確認", "  feature=abc", "(壊れています)"} {
		if !strings.Contains(out, want) {
			t.Errorf("出力に %q が含まれていません:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\033[") {
		t.Errorf("端末以外への出力に色が付いています: %q", out)
	}
}
