// Package cookie は、掲示板への書き込みで使うプロセス内 Cookie ストアを提供します。
//
// net/http/cookiejar と異なり、確認画面から取り出した値を任意のドメインに直接
// 格納したり、永続化用のテキスト形式へ書き出したりできます。
package cookie

import (
	"net/url"
	"strings"
	"sync"
	"time"
)

// sessionTokenNames は、呼び出し側の指定にかかわらず常にセッション限りとして扱う Cookie 名です。
var sessionTokenNames = []string{"sid", "yuki", "MDMD", "DMDM"}

// StoredCookie はストアに保持される 1 件の Cookie です。
// (Domain, Path, Name) の組で一意になります。
type StoredCookie struct {
	Name        string
	Value       string
	Domain      string
	Path        string
	Expires     time.Time // ゼロ値は期限なし
	SessionOnly bool
	Secure      bool
}

// Expired は、now の時点で期限切れかどうかを返します。
func (c StoredCookie) Expired(now time.Time) bool {
	return !c.Expires.IsZero() && !now.Before(c.Expires)
}

// Store はドメイン・パスの照合と期限切れの掃除を行う Cookie の集合です。
// 挿入順を保持するため、Cookie ヘッダの並びは決定的になります。
type Store struct {
	mu      sync.Mutex
	cookies []StoredCookie
	clock   func() time.Time
}

// NewStore は空のストアを作成します。clock が nil の場合は time.Now を使います。
func NewStore(clock func() time.Time) *Store {
	if clock == nil {
		clock = time.Now
	}
	return &Store{clock: clock}
}

// controlStripper は永続化の区切り文字と衝突する制御文字を取り除きます。
var controlStripper = strings.NewReplacer("\t", "", "\r", "", "\n", "")

// Set は Cookie を追加します。同じ (Domain, Path, Name) の Cookie は置き換えます。
// 有効期限は秒単位に切り捨て、タブと改行は取り除いて保存します。
func (s *Store) Set(c StoredCookie) {
	c.Name = controlStripper.Replace(c.Name)
	c.Value = controlStripper.Replace(c.Value)
	c.Domain = strings.ToLower(strings.TrimSpace(controlStripper.Replace(c.Domain)))
	c.Path = controlStripper.Replace(c.Path)
	if !c.Expires.IsZero() {
		c.Expires = c.Expires.Truncate(time.Second)
	}
	if c.Path == "" {
		c.Path = "/"
	}
	if isSessionTokenName(c.Name) {
		c.SessionOnly = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.cookies {
		if existing.Domain == c.Domain && existing.Path == c.Path && existing.Name == c.Name {
			s.cookies[i] = c
			return
		}
	}
	s.cookies = append(s.cookies, c)
}

// ForURL は、rawURL に送るべき期限内の Cookie を返します。
// 期限切れの Cookie はこの呼び出しの中で取り除かれます。
func (s *Store) ForURL(rawURL string) []StoredCookie {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return nil
	}
	host := strings.ToLower(u.Hostname())
	reqPath := u.Path
	if reqPath == "" {
		reqPath = "/"
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()

	var matched []StoredCookie
	for _, c := range s.cookies {
		if !DomainMatches(c.Domain, host) {
			continue
		}
		if !strings.HasPrefix(reqPath, c.Path) {
			continue
		}
		if c.Secure && u.Scheme != "https" {
			continue
		}
		matched = append(matched, c)
	}
	return matched
}

// Header は rawURL 向けの Cookie ヘッダ値 ("name=value; name2=value2") を返します。
// 該当する Cookie がない場合は空文字列を返し、呼び出し側はヘッダ自体を省略します。
func (s *Store) Header(rawURL string) string {
	matched := s.ForURL(rawURL)
	if len(matched) == 0 {
		return ""
	}
	parts := make([]string, 0, len(matched))
	for _, c := range matched {
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}

// Remove は、domain に一致するすべての name という Cookie を削除します。
// 照合は双方向で、domain のサブドメインに置かれた Cookie も削除されます。
func (s *Store) Remove(name, domain string) int {
	domain = strings.ToLower(strings.TrimSpace(domain))
	bare := strings.TrimPrefix(domain, ".")

	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.cookies[:0]
	removed := 0
	for _, c := range s.cookies {
		if c.Name == name && (DomainMatches(c.Domain, bare) || DomainMatches(domain, strings.TrimPrefix(c.Domain, "."))) {
			removed++
			continue
		}
		kept = append(kept, c)
	}
	s.cookies = kept
	return removed
}

// Find は、domain へ送られる name という期限内の Cookie を 1 件返します。
// domain が空の場合はドメインを問いません。
func (s *Store) Find(name, domain string) (StoredCookie, bool) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	bare := strings.TrimPrefix(domain, ".")

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()
	for _, c := range s.cookies {
		if c.Name != name {
			continue
		}
		if domain == "" || DomainMatches(c.Domain, bare) {
			return c, true
		}
	}
	return StoredCookie{}, false
}

// Delete は (domain, path, name) が完全に一致する Cookie を 1 件削除します。
func (s *Store) Delete(domain, cookiePath, name string) {
	s.removeExact(domain, cookiePath, name)
}

// All は、期限内のすべての Cookie のコピーを返します。
func (s *Store) All() []StoredCookie {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()
	out := make([]StoredCookie, len(s.cookies))
	copy(out, s.cookies)
	return out
}

// Clear はすべての Cookie を削除します。
func (s *Store) Clear() {
	s.mu.Lock()
	s.cookies = nil
	s.mu.Unlock()
}

func (s *Store) pruneLocked() {
	now := s.clock()
	kept := s.cookies[:0]
	for _, c := range s.cookies {
		if c.Expired(now) {
			continue
		}
		kept = append(kept, c)
	}
	s.cookies = kept
}

// DomainMatches は、cookieDomain の Cookie を host へ送ってよいかを判定します。
//
//   - 完全一致
//   - 先頭がドットのドメイン (.5ch.net) は 5ch.net 自身とそのサブドメインに一致
//   - ドットなしのドメイン (5ch.net) もサブドメインに一致
func DomainMatches(cookieDomain, host string) bool {
	cookieDomain = strings.ToLower(cookieDomain)
	host = strings.ToLower(host)
	if cookieDomain == "" || host == "" {
		return false
	}
	bare := strings.TrimPrefix(cookieDomain, ".")
	if host == bare {
		return true
	}
	return strings.HasSuffix(host, "."+bare)
}

func isSessionTokenName(name string) bool {
	for _, n := range sessionTokenNames {
		if n == name {
			return true
		}
	}
	return false
}
