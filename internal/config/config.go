// Package config は、アプリケーションの設定ファイル(config.json / config.yaml)の構造定義と、
// その読み込み、解決（テンプレートのマージなど）に関する機能を提供します。
package config

import "GoBBSPoster/internal/model"

// Config は設定ファイル全体を表すルート構造体です。
type Config struct {
	ConfigVersion  string           `json:"config_version"`
	Network        NetworkSettings  `json:"network"`
	Post           PostSettings     `json:"post"`
	CookieFilePath string           `json:"cookie_file_path,omitempty"`
	EnableLogFile  bool             `json:"enable_log_file"`
	LogFilePath    string           `json:"log_file_path,omitempty"`
	BoardTemplates map[string]Board `json:"board_templates"`
	Boards         []Board          `json:"boards"`
}

// NetworkSettings は、HTTPリクエストに関するグローバルな設定を保持します。
type NetworkSettings struct {
	UserAgent               string            `json:"user_agent"`
	DefaultHeaders          map[string]string `json:"default_headers"`
	PerDomainIntervalMillis map[string]int    `json:"per_domain_interval_ms"`
	RequestTimeoutMillis    int               `json:"request_timeout_ms"`
	RetryCount              int               `json:"retry_count"`
	RetryWaitMillis         int               `json:"retry_wait_ms"`
}

// PostSettings は、書き込み処理（確認画面の再送信など）に関する設定です。
type PostSettings struct {
	// MaxRetries は確認画面に対する再送信の上限です。0 以下なら既定値を使います。
	MaxRetries int `json:"max_retries"`
	// ConfirmDelayMillis は確認画面を受け取ってから再送信するまでの待ち時間です。
	ConfirmDelayMillis int    `json:"confirm_delay_ms"`
	AcceptLanguage     string `json:"accept_language,omitempty"`
	// AuthToken は外部認証 (5ch の sid など) のトークンです。
	AuthToken string `json:"auth_token,omitempty"`
}

// Board は書き込み先の板の定義です。URL だけを指定すれば、残りは URL から推定されます。
type Board struct {
	Name        string `json:"name,omitempty"`
	UseTemplate string `json:"use_template,omitempty"`
	Title       string `json:"title,omitempty"`
	URL         string `json:"url,omitempty"`
	BBSID       string `json:"bbs_id,omitempty"`
	ServerURL   string `json:"server_url,omitempty"`
	Kind        string `json:"kind,omitempty"`
	SubDir      string `json:"sub_dir,omitempty"`
	DefaultName string `json:"default_name,omitempty"`
	DefaultMail string `json:"default_mail,omitempty"`
}

// FindBoard は、名前または URL が一致する板を返します。
func (c *Config) FindBoard(key string) (Board, bool) {
	for _, b := range c.Boards {
		if b.Name == key || b.URL == key {
			return b, true
		}
	}
	return Board{}, false
}

// ToModel は板の定義を書き込み処理で使う model.Board に変換します。
func (b Board) ToModel() model.Board {
	title := b.Title
	if title == "" {
		title = b.Name
	}
	return model.Board{
		Title:     title,
		URL:       b.URL,
		BBSID:     b.BBSID,
		ServerURL: b.ServerURL,
		Kind:      model.BoardKind(b.Kind),
		SubDir:    b.SubDir,
	}
}
