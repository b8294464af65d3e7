// Package network は、掲示板への HTTP 通信を担うクライアントを提供します。
// 1回の論理リクエストを、ホストごとのレート制限と一時的な失敗に対する再試行付きで実行します。
// Cookie はここでは扱わず、呼び出し側が Cookie ヘッダとして渡します。
package network

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"GoBBSPoster/internal/config"

	"github.com/gobwas/glob"
	"golang.org/x/time/rate"
)

// retryableStatuses は、再試行の対象とするステータスコードです。
var retryableStatuses = map[int]bool{
	http.StatusRequestTimeout:      true,
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// HTTPError は、HTTPリクエストで発生したエラーとステータスコードを保持します。
type HTTPError struct {
	StatusCode int
	URL        string
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s (URL: %s)", e.StatusCode, e.Message, e.URL)
}

// IsRetryable は、このエラーがリトライ可能かどうかを判定します。
func (e *HTTPError) IsRetryable() bool {
	return retryableStatuses[e.StatusCode]
}

// Request は 1 回の論理リクエストの内容です。
type Request struct {
	URL    string
	Method string
	Header http.Header
	Body   []byte
}

// Response はサーバーの応答です。Body は生のバイト列で、文字コードの変換は呼び出し側で行います。
type Response struct {
	URL          string
	StatusCode   int
	Header       http.Header
	Body         []byte
	LastModified string
}

// Client は、ホストごとのレートリミッターと再試行を備えた HTTP クライアントです。
type Client struct {
	httpClient         *http.Client
	userAgent          string
	defaultHeaders     map[string]string
	retryCount         int
	retryWait          time.Duration
	rateLimiters       map[string]*rate.Limiter // ホスト名ごとのレートリミッター
	rateLimitersMutex  sync.Mutex               // rateLimitersへのアクセスを保護するMutex
	perDomainIntervals map[string]int           // ドメインごとの設定間隔
	intervalPatterns   []hostPattern            // "*.5ch.net" のようなワイルドカード指定
	logger             *log.Logger
}

// hostPattern はワイルドカードを含むホスト指定と、その送信間隔です。
type hostPattern struct {
	raw            string
	matcher        glob.Glob
	intervalMillis int
}

// isHostPattern は、設定のキーがワイルドカードを含むかどうかを返します。
func isHostPattern(key string) bool {
	return strings.ContainsAny(key, "*?[{")
}

// NewClient は NetworkSettings に基づいて HTTP クライアントを初期化します。
func NewClient(settings config.NetworkSettings, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Default()
	}

	timeout := time.Duration(settings.RequestTimeoutMillis) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second // デフォルトタイムアウト
	}
	retryWait := time.Duration(settings.RetryWaitMillis) * time.Millisecond
	if retryWait < 0 {
		retryWait = 0
	}

	rateLimiters := make(map[string]*rate.Limiter)
	var patterns []hostPattern
	for domain, intervalMillis := range settings.PerDomainIntervalMillis {
		if intervalMillis <= 0 {
			continue
		}
		if isHostPattern(domain) {
			// '.' を区切りにするので "*" は1ラベル、"**" は複数ラベルに一致する
			g, err := glob.Compile(strings.ToLower(domain), '.')
			if err != nil {
				logger.Printf("WARNING: per_domain_interval_ms のホスト指定を解釈できません (pattern=%s): %v", domain, err)
				continue
			}
			patterns = append(patterns, hostPattern{raw: domain, matcher: g, intervalMillis: intervalMillis})
			continue
		}
		rateLimiters[strings.ToLower(domain)] = rate.NewLimiter(rate.Every(time.Duration(intervalMillis)*time.Millisecond), 1)
	}
	// map の走査順に依存しないよう、パターンは文字列順に評価する
	sort.Slice(patterns, func(i, j int) bool { return patterns[i].raw < patterns[j].raw })

	return &Client{
		httpClient:         &http.Client{Timeout: timeout},
		userAgent:          settings.UserAgent,
		defaultHeaders:     settings.DefaultHeaders,
		retryCount:         settings.RetryCount,
		retryWait:          retryWait,
		rateLimiters:       rateLimiters,
		perDomainIntervals: settings.PerDomainIntervalMillis,
		intervalPatterns:   patterns,
		logger:             logger,
	}
}

// Fetch はリクエストを送信し、応答を返します。
// ネットワークエラーと retryableStatuses の応答は retryCount 回まで再試行します。
// それ以外のステータスコードはエラーにせず、そのまま Response として返します。
func (c *Client) Fetch(ctx context.Context, req *Request) (*Response, error) {
	parsedURL, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("リクエストURLの解析に失敗しました (%s): %w", req.URL, err)
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	limiter := c.getLimiterForHost(strings.ToLower(parsedURL.Hostname()))

	var lastErr error
	for i := 0; i <= c.retryCount; i++ {
		if i > 0 && c.retryWait > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryWait):
			}
		}
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("レートリミッター待機中にエラーが発生しました: %w", err)
		}

		resp, err := c.do(ctx, method, req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Printf("WARNING: リクエスト失敗（ネットワークエラー、試行 %d/%d）: url=%s, error=%v", i+1, c.retryCount+1, req.URL, err)
			lastErr = err
			continue
		}
		if retryableStatuses[resp.StatusCode] {
			lastErr = &HTTPError{
				StatusCode: resp.StatusCode,
				URL:        req.URL,
				Message:    http.StatusText(resp.StatusCode),
			}
			c.logger.Printf("WARNING: リクエスト失敗（リトライ可能、HTTP %d、試行 %d/%d）: url=%s", resp.StatusCode, i+1, c.retryCount+1, req.URL)
			continue
		}
		return resp, nil
	}
	return nil, fmt.Errorf("リクエストがリトライ上限に達しました (url=%s, retry_count=%d): %w", req.URL, c.retryCount, lastErr)
}

func (c *Client) do(ctx context.Context, method string, req *Request) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("%sリクエストの作成に失敗しました (%s): %w", method, req.URL, err)
	}

	// デフォルトヘッダー → 呼び出し側のヘッダーの順に設定
	for key, value := range c.defaultHeaders {
		httpReq.Header.Set(key, value)
	}
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	for key, values := range req.Header {
		httpReq.Header.Del(key)
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%sリクエストの送信に失敗しました (%s): %w", method, req.URL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み込みに失敗しました: %w", err)
	}

	return &Response{
		URL:          resp.Request.URL.String(),
		StatusCode:   resp.StatusCode,
		Header:       resp.Header,
		Body:         data,
		LastModified: resp.Header.Get("Last-Modified"),
	}, nil
}

// getLimiterForHost は、指定されたホスト名に対応するレートリミッターを返します。
// 存在しない場合は新しく生成します。
func (c *Client) getLimiterForHost(host string) *rate.Limiter {
	c.rateLimitersMutex.Lock()
	defer c.rateLimitersMutex.Unlock()

	if limiter, exists := c.rateLimiters[host]; exists {
		return limiter
	}

	// 書き込みは間隔が空くので、未設定のホストは待たせない
	limit := rate.Inf
	if val := c.intervalForHost(host); val > 0 {
		limit = rate.Every(time.Duration(val) * time.Millisecond)
	}
	newLimiter := rate.NewLimiter(limit, 1)

	c.rateLimiters[host] = newLimiter
	return newLimiter
}

// intervalForHost は host に適用する送信間隔（ミリ秒）を返します。
// 完全一致の指定を優先し、なければワイルドカード指定を順に照合します。
func (c *Client) intervalForHost(host string) int {
	if val, ok := c.perDomainIntervals[host]; ok {
		return val
	}
	for _, p := range c.intervalPatterns {
		if p.matcher.Match(host) {
			return p.intervalMillis
		}
	}
	return 0
}
