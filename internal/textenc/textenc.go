// Package textenc は、掲示板とのやり取りで使う文字コード（Shift_JIS / EUC-JP / UTF-8）の
// 判定と変換を提供します。
//
// 判定処理はすべて副作用のない純粋関数です。認識できない文字コード名は
// エラーではなく「判定なし」として扱い、呼び出し側のフォールバックに委ねます。
package textenc

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"GoBBSPoster/internal/model"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Charset は扱える文字コードを表します。
type Charset int

const (
	ShiftJIS Charset = iota
	EUCJP
	UTF8
)

// String は HTTP ヘッダなどで使う正式名を返します。
func (c Charset) String() string {
	switch c {
	case ShiftJIS:
		return "Shift_JIS"
	case EUCJP:
		return "EUC-JP"
	case UTF8:
		return "UTF-8"
	default:
		return "unknown"
	}
}

// metaScanLimit は meta charset を探すボディ先頭のバイト数です。
const metaScanLimit = 1024

var (
	// 正規化済みトークン -> 文字コード
	knownAliases = map[string]Charset{
		"shiftjis":   ShiftJIS,
		"sjis":       ShiftJIS,
		"xsjis":      ShiftJIS,
		"windows31j": ShiftJIS,
		"cp932":      ShiftJIS,
		"mskanji":    ShiftJIS,
		"eucjp":      EUCJP,
		"xeucjp":     EUCJP,
		"utf8":       UTF8,
	}

	metaCharsetPattern = regexp.MustCompile(`<meta[^>]*?charset\s*=\s*["']?([a-z0-9_\-]+)`)
)

// ForBoard は、送信ボディの組み立てに使う文字コードを板の種別から決定します。
func ForBoard(kind model.BoardKind) Charset {
	switch kind.Normalize() {
	case model.KindJBBS:
		return EUCJP
	default:
		return ShiftJIS
	}
}

// ForResponse は、レスポンスの文字コードを
// Content-Type の charset → ボディ先頭の meta charset → fallback の順で決定します。
func ForResponse(header http.Header, bodyPrefix []byte, fallback Charset) Charset {
	if header != nil {
		if cs, ok := charsetFromContentType(header.Get("Content-Type")); ok {
			return cs
		}
	}
	if cs, ok := charsetFromMeta(bodyPrefix); ok {
		return cs
	}
	return fallback
}

// Normalize は文字コード名を大文字小文字・ハイフン・アンダースコアを無視して照合します。
// 認識できない場合は false を返します。
func Normalize(token string) (Charset, bool) {
	t := strings.ToLower(strings.TrimSpace(token))
	t = strings.Trim(t, `"'`)
	if t == "" {
		return 0, false
	}
	compact := strings.NewReplacer("-", "", "_", "").Replace(t)
	if cs, ok := knownAliases[compact]; ok {
		return cs, true
	}

	// WHATWG のラベル表で別名を解決する (例: "csshiftjis", "x-euc-jp")
	_, name := charset.Lookup(t)
	switch name {
	case "shift_jis":
		return ShiftJIS, true
	case "euc-jp":
		return EUCJP, true
	case "utf-8":
		return UTF8, true
	}

	// IANA の登録名・別名 (例: "Extended_UNIX_Code_Packed_Format_for_Japanese")
	if enc, err := ianaindex.IANA.Encoding(t); err == nil && enc != nil {
		switch enc {
		case japanese.ShiftJIS:
			return ShiftJIS, true
		case japanese.EUCJP:
			return EUCJP, true
		case unicode.UTF8:
			return UTF8, true
		}
	}
	return 0, false
}

func charsetFromContentType(contentType string) (Charset, bool) {
	lower := strings.ToLower(contentType)
	i := strings.Index(lower, "charset=")
	if i == -1 {
		return 0, false
	}
	v := lower[i+len("charset="):]
	if j := strings.IndexAny(v, "; "); j != -1 {
		v = v[:j]
	}
	return Normalize(v)
}

func charsetFromMeta(body []byte) (Charset, bool) {
	n := len(body)
	if n > metaScanLimit {
		n = metaScanLimit
	}
	// マルチバイト文字で正規表現が誤動作しないよう ASCII 以外は空白に潰す
	buf := make([]byte, n)
	for i, b := range body[:n] {
		if b >= 0x80 {
			b = ' '
		}
		buf[i] = b
	}
	low := strings.ToLower(string(buf))

	for _, m := range metaCharsetPattern.FindAllStringSubmatch(low, -1) {
		if cs, ok := Normalize(m[1]); ok {
			return cs, true
		}
	}
	return 0, false
}

func (c Charset) encoding() encoding.Encoding {
	switch c {
	case ShiftJIS:
		return japanese.ShiftJIS
	case EUCJP:
		return japanese.EUCJP
	default:
		return unicode.UTF8
	}
}

// Decode はバイト列を UTF-8 文字列に変換します。不正なバイトは置換文字になります。
func Decode(b []byte, cs Charset) string {
	reader := transform.NewReader(bytes.NewReader(b), cs.encoding().NewDecoder())
	decoded, err := io.ReadAll(reader)
	if err != nil {
		// 変換できない場合は生のバイト列をそのまま返す
		return strings.ToValidUTF8(string(b), "�")
	}
	return string(decoded)
}

// Encode は UTF-8 文字列を指定の文字コードに変換します。
// 表現できない文字はブラウザと同様に数値文字参照 (&#NNNN;) に置き換えます。
func Encode(s string, cs Charset) ([]byte, error) {
	if cs == UTF8 {
		return []byte(s), nil
	}
	enc := encoding.HTMLEscapeUnsupported(cs.encoding().NewEncoder())
	out, err := enc.Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("%s への変換に失敗しました: %w", cs, err)
	}
	return out, nil
}

// QueryEscape は文字列を指定の文字コードに変換してからパーセントエンコードします。
// 空白は '+' になります (application/x-www-form-urlencoded)。
func QueryEscape(s string, cs Charset) (string, error) {
	b, err := Encode(s, cs)
	if err != nil {
		return "", err
	}
	return url.QueryEscape(string(b)), nil
}
