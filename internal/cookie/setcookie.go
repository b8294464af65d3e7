package cookie

import (
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// 次の Cookie の開始 ("name=") の直前にあるカンマだけを区切りとして扱う。
// Expires の "Wed, 21 Oct 2015 ..." は区切られない。
var nextCookieStart = regexp.MustCompile(`^\s*[^=;,\s]+=`)

var expiresLayouts = []string{
	time.RFC1123,
	"Mon, 02-Jan-2006 15:04:05 MST",
	"Mon, 02-Jan-06 15:04:05 MST",
	"Monday, 02-Jan-06 15:04:05 MST",
	time.ANSIC,
}

// ParseSetCookieHeader は http.Header の Set-Cookie をすべて取り込みます。
func (s *Store) ParseSetCookieHeader(header http.Header, requestURL string) int {
	values := header.Values("Set-Cookie")
	if len(values) == 0 {
		return 0
	}
	return s.ParseSetCookie(strings.Join(values, "\n"), requestURL)
}

// ParseSetCookie は、改行またはカンマで連結された Set-Cookie の内容を解析してストアに格納し、
// 取り込んだ件数を返します。Domain / Path が省略された場合はリクエスト URL のホストと
// ディレクトリを使います。
func (s *Store) ParseSetCookie(material string, requestURL string) int {
	u, err := url.Parse(requestURL)
	if err != nil {
		return 0
	}
	defaultDomain := strings.ToLower(u.Hostname())
	defaultPath := defaultCookiePath(u.Path)

	count := 0
	for _, entry := range splitSetCookie(material) {
		c, maxAgeDelete, ok := s.parseEntry(entry, defaultDomain, defaultPath)
		if !ok {
			continue
		}
		if maxAgeDelete {
			s.removeExact(c.Domain, c.Path, c.Name)
			count++
			continue
		}
		s.Set(c)
		count++
	}
	return count
}

func (s *Store) parseEntry(entry, defaultDomain, defaultPath string) (StoredCookie, bool, bool) {
	parts := strings.Split(entry, ";")
	name, value, ok := strings.Cut(parts[0], "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return StoredCookie{}, false, false
	}
	c := StoredCookie{
		Name:        name,
		Value:       strings.Trim(strings.TrimSpace(value), `"`),
		Domain:      defaultDomain,
		Path:        defaultPath,
		SessionOnly: true,
	}

	var expires time.Time
	maxAge, hasMaxAge := 0, false
	for _, attr := range parts[1:] {
		key, val, _ := strings.Cut(attr, "=")
		key = strings.ToLower(strings.TrimSpace(key))
		val = strings.TrimSpace(val)
		switch key {
		case "domain":
			// リクエスト先に送られない Domain は無視してホストのまま保存する
			if val != "" && DomainMatches(val, defaultDomain) {
				c.Domain = strings.ToLower(val)
			}
		case "path":
			if strings.HasPrefix(val, "/") {
				c.Path = val
			}
		case "expires":
			if t, ok := parseExpires(val); ok {
				expires = t
			}
		case "max-age":
			if n, err := strconv.Atoi(val); err == nil {
				maxAge, hasMaxAge = n, true
			}
		case "secure":
			c.Secure = true
		}
	}

	// Max-Age は Expires より優先される
	switch {
	case hasMaxAge && maxAge <= 0:
		return c, true, true
	case hasMaxAge:
		c.Expires = s.clock().Add(time.Duration(maxAge) * time.Second)
		c.SessionOnly = false
	case !expires.IsZero():
		c.Expires = expires
		c.SessionOnly = false
	}
	return c, false, true
}

func (s *Store) removeExact(domain, cookiePath, name string) {
	domain = strings.ToLower(domain)
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.cookies[:0]
	for _, c := range s.cookies {
		if c.Domain == domain && c.Path == cookiePath && c.Name == name {
			continue
		}
		kept = append(kept, c)
	}
	s.cookies = kept
}

func splitSetCookie(material string) []string {
	var entries []string
	for _, line := range strings.Split(material, "\n") {
		line = strings.TrimSpace(strings.TrimSuffix(line, "\r"))
		if line == "" {
			continue
		}
		segments := strings.Split(line, ",")
		current := segments[0]
		for _, seg := range segments[1:] {
			if nextCookieStart.MatchString(seg) {
				entries = append(entries, strings.TrimSpace(current))
				current = seg
				continue
			}
			current += "," + seg
		}
		entries = append(entries, strings.TrimSpace(current))
	}
	return entries
}

func parseExpires(v string) (time.Time, bool) {
	if t, err := http.ParseTime(v); err == nil {
		return t, true
	}
	for _, layout := range expiresLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// defaultCookiePath は RFC 6265 の default-path (最後の '/' まで) を返します。
func defaultCookiePath(p string) string {
	if p == "" || !strings.HasPrefix(p, "/") {
		return "/"
	}
	dir := path.Dir(p)
	if strings.HasSuffix(p, "/") {
		dir = strings.TrimSuffix(p, "/")
	}
	if dir == "" || dir == "." {
		return "/"
	}
	return dir
}
