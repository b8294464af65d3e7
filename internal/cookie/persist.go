package cookie

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// fieldSeparator は永続化テキストの区切り文字です。
const fieldSeparator = "\t"

// Serialize は、セッション限りでない期限内の Cookie を 1 行 1 件のテキストに変換します。
//
//	domain<TAB>path<TAB>name<TAB>value<TAB>expiry(UNIX秒 or 空)<TAB>secure(0/1)
func (s *Store) Serialize() string {
	var b strings.Builder
	for _, c := range s.All() {
		if c.SessionOnly {
			continue
		}
		expiry := ""
		if !c.Expires.IsZero() {
			expiry = strconv.FormatInt(c.Expires.Unix(), 10)
		}
		secure := "0"
		if c.Secure {
			secure = "1"
		}
		b.WriteString(strings.Join([]string{c.Domain, c.Path, c.Name, c.Value, expiry, secure}, fieldSeparator))
		b.WriteString("\n")
	}
	return b.String()
}

// Deserialize は Serialize の出力を読み込み、ストアに追加した件数を返します。
// 形式が不正な行や期限切れの行は読み飛ばします。有効期限を解釈できない行があった場合は、
// 残りの行を読み込んだうえで最初のエラーを返します。
func (s *Store) Deserialize(text string) (int, error) {
	now := s.clock()
	loaded := 0
	var firstErr error
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, fieldSeparator)
		if len(fields) != 6 || fields[0] == "" || fields[2] == "" {
			continue
		}

		c := StoredCookie{
			Domain: fields[0],
			Path:   fields[1],
			Name:   fields[2],
			Value:  fields[3],
			Secure: fields[5] == "1",
		}
		if fields[4] != "" {
			sec, err := strconv.ParseInt(fields[4], 10, 64)
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("Cookie の有効期限を解釈できません (line=%d, value=%q): %w", i+1, fields[4], err)
				}
				continue
			}
			c.Expires = time.Unix(sec, 0)
		}
		if c.Expired(now) {
			continue
		}
		s.Set(c)
		loaded++
	}
	return loaded, firstErr
}
