package adapter

import (
	"fmt"
	"net/url"
	"strings"

	"GoBBSPoster/internal/model"
)

// jbbsHosts は したらば のホスト名です。
var jbbsHosts = []string{"jbbs.shitaraba.net", "jbbs.livedoor.jp"}

// fiveChDomains は 5ch 本体と同じ書き込み規約で動くドメインです。
var fiveChDomains = []string{"5ch.net", "2ch.net", "bbspink.com"}

// ResolveBoard は、板またはスレッドの URL からサーバー・板ID・種別を推定します。
// スレッドの URL が渡された場合はスレッドキーも返します。
//
//	https://mi.5ch.net/news4vip/                       -> 5ch, news4vip
//	https://mi.5ch.net/test/read.cgi/news4vip/123/     -> 5ch, news4vip, 123
//	https://jbbs.shitaraba.net/game/12345/              -> jbbs, game/12345
//	https://jbbs.shitaraba.net/bbs/read.cgi/game/12345/678/ -> jbbs, game/12345, 678
func ResolveBoard(rawURL string) (model.Board, string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return model.Board{}, "", fmt.Errorf("板URLの解析に失敗しました (url=%s): %w", rawURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return model.Board{}, "", fmt.Errorf("板URLにスキームまたはホストがありません (url=%s)", rawURL)
	}
	host := strings.ToLower(u.Hostname())
	server := u.Scheme + "://" + u.Host
	segments := splitPath(u.Path)

	if hostIn(host, jbbsHosts) {
		if len(segments) >= 2 && segments[0] == "bbs" {
			// /bbs/read.cgi/{dir}/{bbs}/{key}/
			segments = segments[2:]
		}
		if len(segments) < 2 {
			return model.Board{}, "", fmt.Errorf("したらばの板URLからカテゴリと掲示板番号を取得できません (url=%s)", rawURL)
		}
		board := model.Board{
			URL:       server + "/" + segments[0] + "/" + segments[1] + "/",
			ServerURL: server,
			Kind:      model.KindJBBS,
			SubDir:    segments[0],
			BBSID:     segments[1],
		}
		threadID := ""
		if len(segments) >= 3 {
			threadID = segments[2]
		}
		return board, threadID, nil
	}

	threadID := ""
	if len(segments) >= 2 && segments[0] == "test" {
		// /test/read.cgi/{bbs}/{key}/
		segments = segments[2:]
		if len(segments) >= 2 {
			threadID = segments[1]
		}
	}
	if len(segments) == 0 {
		return model.Board{}, "", fmt.Errorf("板URLから板IDを取得できません (url=%s)", rawURL)
	}

	kind := model.KindCompat
	for _, d := range fiveChDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			kind = model.KindFiveCh
			break
		}
	}
	board := model.Board{
		URL:       server + "/" + segments[0] + "/",
		ServerURL: server,
		Kind:      kind,
		BBSID:     segments[0],
	}
	return board, threadID, nil
}

// FillBoard は、URL だけが設定された板の不足項目を ResolveBoard で補います。
// 明示的に設定された項目は上書きしません。
func FillBoard(board model.Board) (model.Board, error) {
	if board.ServerURL != "" && board.BBSID != "" && board.Kind != "" {
		return board, nil
	}
	if board.URL == "" {
		return board, fmt.Errorf("板 '%s' の URL もサーバー情報も設定されていません", board.Title)
	}
	resolved, _, err := ResolveBoard(board.URL)
	if err != nil {
		return board, err
	}
	if board.ServerURL == "" {
		board.ServerURL = resolved.ServerURL
	}
	if board.BBSID == "" {
		board.BBSID = resolved.BBSID
	}
	if board.SubDir == "" {
		board.SubDir = resolved.SubDir
	}
	if board.Kind == "" {
		board.Kind = resolved.Kind
	}
	return board, nil
}

func splitPath(p string) []string {
	var out []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func hostIn(host string, hosts []string) bool {
	for _, h := range hosts {
		if host == h {
			return true
		}
	}
	return false
}
