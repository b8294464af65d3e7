package core

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"GoBBSPoster/internal/adapter"
	"GoBBSPoster/internal/cookie"
	"GoBBSPoster/internal/donguri"
	"GoBBSPoster/internal/model"
	"GoBBSPoster/internal/network"
	"GoBBSPoster/internal/textenc"

	"golang.org/x/net/html"
)

const (
	// DefaultMaxRetries は確認画面に応じて再送信する最大回数です。
	DefaultMaxRetries = 3
	// DefaultConfirmDelay は確認画面を受け取ってから再送信するまでの待ち時間です。
	DefaultConfirmDelay   = 5 * time.Second
	defaultAcceptLanguage = "ja,en-US;q=0.9,en;q=0.8"

	loopGuardMessage = "確認画面の再送信内容が前回と同一のため中断しました"
)

// Fetcher は 1 回の論理リクエストを実行します。network.Client が実装します。
type Fetcher interface {
	Fetch(ctx context.Context, req *network.Request) (*network.Response, error)
}

// TokenProvider は外部の認証トークン（5ch の sid など）を提供します。
type TokenProvider interface {
	CurrentToken() string
}

// StaticToken は固定のトークンを返す TokenProvider です。
type StaticToken string

func (t StaticToken) CurrentToken() string { return string(t) }

// Options は Submitter の動作設定です。ゼロ値の項目には既定値を使います。
type Options struct {
	MaxRetries     int
	ConfirmDelay   time.Duration
	AcceptLanguage string
	Auth           TokenProvider
	Logger         *log.Logger
	Now            func() time.Time

	// Sleep は確認画面後の待機に使います。nil なら ctx を監視しながらタイマーで待ちます。
	Sleep func(ctx context.Context, d time.Duration) error
}

// Submitter は書き込みと確認画面への再送信を行う状態機械です。
// Submit の呼び出しは内部で直列化されます。
type Submitter struct {
	mu             sync.Mutex
	fetcher        Fetcher
	cookies        *cookie.Store
	donguri        *donguri.Tracker
	maxRetries     int
	confirmDelay   time.Duration
	acceptLanguage string
	auth           TokenProvider
	logger         *log.Logger
	now            func() time.Time
	sleep          func(ctx context.Context, d time.Duration) error
}

// NewSubmitter は Submitter を作成します。tracker は nil でも構いません。
func NewSubmitter(fetcher Fetcher, cookies *cookie.Store, tracker *donguri.Tracker, opts Options) *Submitter {
	s := &Submitter{
		fetcher:        fetcher,
		cookies:        cookies,
		donguri:        tracker,
		maxRetries:     opts.MaxRetries,
		confirmDelay:   opts.ConfirmDelay,
		acceptLanguage: opts.AcceptLanguage,
		auth:           opts.Auth,
		logger:         opts.Logger,
		now:            opts.Now,
		sleep:          opts.Sleep,
	}
	if s.maxRetries <= 0 {
		s.maxRetries = DefaultMaxRetries
	}
	if s.confirmDelay < 0 {
		s.confirmDelay = 0
	} else if s.confirmDelay == 0 {
		s.confirmDelay = DefaultConfirmDelay
	}
	if s.acceptLanguage == "" {
		s.acceptLanguage = defaultAcceptLanguage
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.sleep == nil {
		s.sleep = sleepContext
	}
	return s
}

// postTarget は 1 回の Submit の間変わらない送信先の情報です。
type postTarget struct {
	adapter adapter.BoardAdapter
	postURL string
	referer string
	origin  string
	charset textenc.Charset
	fields  []model.FormField
	token   string
}

// Submit は書き込みを行い、確認画面が返れば内容を取り込んで再送信します。
// サーバーとの往復は最大 MaxRetries+1 回です。
// 通信に失敗した場合は Error 判定の結果とエラーの両方を返します。
func (s *Submitter) Submit(ctx context.Context, params model.PostParams, board model.Board) (*PostResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, err := s.prepare(params, board)
	if err != nil {
		return &PostResult{Classification: ClassError, Message: err.Error()}, err
	}

	var (
		form     *ConfirmationForm
		prevBody string
		lastText string
	)
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		body, err := s.buildBody(target, form)
		if err != nil {
			return &PostResult{Classification: ClassError, Message: err.Error(), Attempts: attempt},
				fmt.Errorf("送信内容の作成に失敗しました (attempt=%d): %w", attempt+1, err)
		}
		if attempt > 0 && body == prevBody {
			s.logger.Printf("WARNING: %s (url=%s, attempt=%d)", loopGuardMessage, target.postURL, attempt+1)
			return &PostResult{
				Classification: ClassError,
				RawText:        lastText,
				HiddenFields:   form.HiddenFields,
				Message:        loopGuardMessage,
				Attempts:       attempt,
			}, nil
		}
		prevBody = body

		reqURL, referer := target.postURL, target.referer
		if attempt > 0 {
			referer = target.postURL
			if form != nil && form.Action != "" {
				if resolved, ok := resolveAction(target.postURL, form.Action); ok {
					reqURL = resolved
				}
			}
		}

		resp, err := s.fetcher.Fetch(ctx, s.newRequest(reqURL, referer, target.origin, body))
		if err != nil {
			s.logger.Printf("ERROR: 書き込みリクエストに失敗しました (url=%s, attempt=%d): %v", reqURL, attempt+1, err)
			return &PostResult{
				Classification: ClassError,
				RawText:        lastText,
				Message:        fmt.Sprintf("通信に失敗しました: %v", err),
				Attempts:       attempt + 1,
			}, fmt.Errorf("書き込みリクエストに失敗しました (url=%s, attempt=%d): %w", reqURL, attempt+1, err)
		}

		s.cookies.ParseSetCookieHeader(resp.Header, reqURL)
		text := textenc.Decode(resp.Body, textenc.ForResponse(resp.Header, resp.Body, target.charset))
		lastText = text
		class := Classify(text)
		s.logger.Printf("INFO: 書き込み応答を判定しました (url=%s, status=%d, attempt=%d, result=%s)", reqURL, resp.StatusCode, attempt+1, class)

		if class == ClassOK {
			return &PostResult{
				Success:        true,
				Classification: class,
				RawText:        text,
				Message:        summarizeResponse(text),
				Attempts:       attempt + 1,
			}, nil
		}
		if s.donguri != nil {
			if outcome := class.donguriOutcome(); outcome != donguri.OutcomeOther {
				s.donguri.HandlePostResult(outcome, text)
			}
		}

		if class.IsConfirmation() && attempt < s.maxRetries {
			page := ParseConfirmationPage(text)
			form = &page
			s.storeConfirmationCookies(target.adapter, page, reqURL)

			s.logger.Printf("INFO: 確認画面を受け取りました。%v 後に再送信します (hidden=%d, fragments=%d)", s.confirmDelay, len(page.HiddenFields), len(page.Fragments))
			if err := s.sleep(ctx, s.confirmDelay); err != nil {
				return &PostResult{
					Classification: ClassError,
					RawText:        text,
					HiddenFields:   page.HiddenFields,
					Message:        fmt.Sprintf("再送信の待機が中断されました: %v", err),
					Attempts:       attempt + 1,
				}, fmt.Errorf("再送信の待機が中断されました (url=%s, attempt=%d): %w", reqURL, attempt+1, err)
			}
			continue
		}

		var hidden []model.FormField
		if class.IsConfirmation() {
			hidden = ParseConfirmationPage(text).HiddenFields
		} else if form != nil {
			hidden = form.HiddenFields
		}
		return &PostResult{
			Classification: class,
			RawText:        text,
			HiddenFields:   hidden,
			Message:        summarizeResponse(text),
			Attempts:       attempt + 1,
		}, nil
	}

	// maxRetries >= 0 なのでループ内で必ず返る
	return &PostResult{Classification: ClassError, RawText: lastText}, nil
}

// prepare は掲示板の種別から送信先と初回の送信項目を決めます。
func (s *Submitter) prepare(params model.PostParams, board model.Board) (*postTarget, error) {
	a, err := adapter.GetAdapter(board.Kind.Normalize())
	if err != nil {
		return nil, err
	}
	postURL, err := a.PostURL(board, params.ThreadID)
	if err != nil {
		return nil, fmt.Errorf("書き込み先URLの作成に失敗しました (board=%s): %w", board.URL, err)
	}
	origin, err := originOf(postURL)
	if err != nil {
		return nil, err
	}

	referer := postURL
	if !params.IsNewThread() {
		readURL, err := a.ReadURL(board, params.ThreadID)
		if err != nil {
			return nil, fmt.Errorf("スレッドURLの作成に失敗しました (board=%s, key=%s): %w", board.URL, params.ThreadID, err)
		}
		referer = readURL
	}

	// time は Submit 1 回につき 1 度だけ決める。再送信ごとに変わると同一判定が働かない。
	fields := a.BuildForm(params, board, s.now())

	t := &postTarget{
		adapter: a,
		postURL: postURL,
		referer: referer,
		origin:  origin,
		charset: textenc.ForBoard(board.Kind),
		fields:  fields,
	}
	if s.auth != nil && a.AuthParam() != "" {
		t.token = s.auth.CurrentToken()
	}
	return t, nil
}

// buildBody は送信する本文を作ります。確認画面の hidden 項目があればそれを送り返し、
// なければ入力内容から組み立てます。
func (s *Submitter) buildBody(t *postTarget, form *ConfirmationForm) (string, error) {
	var fields []model.FormField
	authParam := t.adapter.AuthParam()

	if form != nil && len(form.HiddenFields) > 0 {
		hasToken := false
		for _, h := range form.HiddenFields {
			fields = append(fields, model.FormField{Name: h.Name, Value: html.UnescapeString(h.Value)})
			if h.Name == authParam {
				hasToken = true
			}
		}
		if form.Submit.Name != "" {
			fields = append(fields, model.FormField{Name: form.Submit.Name, Value: html.UnescapeString(form.Submit.Value)})
		}
		if t.token != "" && !hasToken {
			fields = append(fields, model.FormField{Name: authParam, Value: t.token})
		}
	} else {
		if t.token != "" {
			fields = append(fields, model.FormField{Name: authParam, Value: t.token})
		}
		fields = append(fields, t.fields...)
	}
	return encodeForm(fields, t.charset)
}

// storeConfirmationCookies は確認画面の Cookie 断片と、既知の項目以外の hidden を Cookie として保存します。
// 同名の断片と hidden がある場合、Cookie には断片の値を使います。
func (s *Submitter) storeConfirmationCookies(a adapter.BoardAdapter, page ConfirmationForm, pageURL string) {
	u, err := url.Parse(pageURL)
	if err != nil || u.Hostname() == "" {
		return
	}
	host := strings.ToLower(u.Hostname())

	fragmentNames := make(map[string]bool, len(page.Fragments))
	for _, f := range page.Fragments {
		fragmentNames[f.Name] = true
		domain := host
		// 再送信先に届く Cookie のドメインだけを引き継ぐ
		if existing, ok := s.cookies.Find(f.Name, host); ok && cookie.DomainMatches(existing.Domain, host) {
			domain = existing.Domain
			s.cookies.Delete(existing.Domain, existing.Path, existing.Name)
		}
		s.cookies.Set(cookie.StoredCookie{Name: f.Name, Value: f.Value, Domain: domain, Path: "/"})
	}

	for _, h := range page.HiddenFields {
		if fragmentNames[h.Name] || adapter.IsStandardField(a, h.Name) {
			continue
		}
		s.cookies.Set(cookie.StoredCookie{Name: h.Name, Value: html.UnescapeString(h.Value), Domain: host, Path: "/"})
	}
}

func (s *Submitter) newRequest(reqURL, referer, origin, body string) *network.Request {
	header := http.Header{}
	header.Set("Content-Type", "application/x-www-form-urlencoded")
	header.Set("Referer", referer)
	header.Set("Origin", origin)
	header.Set("Accept-Language", s.acceptLanguage)
	if c := s.cookies.Header(reqURL); c != "" {
		header.Set("Cookie", c)
	}
	return &network.Request{
		URL:    reqURL,
		Method: http.MethodPost,
		Header: header,
		Body:   []byte(body),
	}
}

// encodeForm は項目を掲示板の文字コードで application/x-www-form-urlencoded に変換します。
func encodeForm(fields []model.FormField, cs textenc.Charset) (string, error) {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		name, err := textenc.QueryEscape(f.Name, cs)
		if err != nil {
			return "", fmt.Errorf("項目名のエンコードに失敗しました (name=%s): %w", f.Name, err)
		}
		value, err := textenc.QueryEscape(f.Value, cs)
		if err != nil {
			return "", fmt.Errorf("値のエンコードに失敗しました (name=%s): %w", f.Name, err)
		}
		parts = append(parts, name+"="+value)
	}
	return strings.Join(parts, "&"), nil
}

// resolveAction はフォームの action を書き込み先URLを基準に解決します。
func resolveAction(base, action string) (string, bool) {
	b, err := url.Parse(base)
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(strings.TrimSpace(html.UnescapeString(action)))
	if err != nil {
		return "", false
	}
	return b.ResolveReference(ref).String(), true
}

func originOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("書き込み先URLが不正です (url=%s)", rawURL)
	}
	return u.Scheme + "://" + u.Host, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
