package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// boardPatch は、板の設定をデコードするための中間ヘルパー構造体です。
type boardPatch struct {
	Name        *string `json:"name,omitempty"`
	UseTemplate string  `json:"use_template,omitempty"`
	Title       *string `json:"title,omitempty"`
	URL         *string `json:"url,omitempty"`
	BBSID       *string `json:"bbs_id,omitempty"`
	ServerURL   *string `json:"server_url,omitempty"`
	Kind        *string `json:"kind,omitempty"`
	SubDir      *string `json:"sub_dir,omitempty"`
	DefaultName *string `json:"default_name,omitempty"`
	DefaultMail *string `json:"default_mail,omitempty"`
}

// rawConfig は、設定ファイルをデコードするための中間構造体です。
type rawConfig struct {
	ConfigVersion  string           `json:"config_version"`
	Network        NetworkSettings  `json:"network"`
	Post           PostSettings     `json:"post"`
	CookieFilePath string           `json:"cookie_file_path"`
	EnableLogFile  bool             `json:"enable_log_file"`
	LogFilePath    string           `json:"log_file_path"`
	BoardTemplates map[string]Board `json:"board_templates"`
	Boards         []boardPatch     `json:"boards"`
}

// LoadAndResolve は、指定されたパスから設定ファイルを読み込み、解析と解決を行います。
// 拡張子が .yaml / .yml の場合は YAML、.toml の場合は TOML として読み込みます。
func LoadAndResolve(path string) (*Config, error) {
	absPath, _ := filepath.Abs(path)
	cwd, _ := os.Getwd()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("設定ファイル '%s' の読み込みに失敗しました (Abs: '%s', Cwd: '%s'): %w", path, absPath, cwd, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAMLAndResolve(data)
	case ".toml":
		return ParseTOMLAndResolve(data)
	default:
		return ParseAndResolve(data)
	}
}

// ParseYAMLAndResolve は YAML の設定データを JSON と同じ規則で解決します。
func ParseYAMLAndResolve(data []byte) (*Config, error) {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("設定ファイルのYAML解析に失敗しました: %w", err)
	}
	converted, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("YAML設定のJSON変換に失敗しました: %w", err)
	}
	return ParseAndResolve(converted)
}

// ParseTOMLAndResolve は TOML の設定データを JSON と同じ規則で解決します。
func ParseTOMLAndResolve(data []byte) (*Config, error) {
	var doc map[string]interface{}
	if _, err := toml.Decode(string(data), &doc); err != nil {
		return nil, fmt.Errorf("設定ファイルのTOML解析に失敗しました: %w", err)
	}
	converted, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("TOML設定のJSON変換に失敗しました: %w", err)
	}
	return ParseAndResolve(converted)
}

// ParseAndResolve は、設定データのバイトスライスを解析し、テンプレートを解決して最終的な設定を返します。
// この関数はテストのために分離されています。
func ParseAndResolve(data []byte) (*Config, error) {
	var rawCfg rawConfig
	if err := json.Unmarshal(data, &rawCfg); err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError

		if errors.As(err, &syntaxErr) {
			line, col := computeLineAndColumn(data, syntaxErr.Offset)
			return nil, fmt.Errorf("設定ファイルのJSON構文エラー (行 %d, 列 %d): %w", line, col, err)
		}
		if errors.As(err, &typeErr) {
			line, col := computeLineAndColumn(data, typeErr.Offset)
			return nil, fmt.Errorf("設定ファイルの型エラー (行 %d, 列 %d, フィールド '%s'): 期待値 %v, 実際 %v - %w",
				line, col, typeErr.Field, typeErr.Type, typeErr.Value, err)
		}
		return nil, fmt.Errorf("設定ファイルの解析に失敗しました: %w", err)
	}

	const compatibleVersion = "1.0"
	if rawCfg.ConfigVersion != compatibleVersion {
		return nil, fmt.Errorf("サポートされていない設定バージョン '%s' です。'%s' が必要です。", rawCfg.ConfigVersion, compatibleVersion)
	}

	resolvedConfig := &Config{
		ConfigVersion:  rawCfg.ConfigVersion,
		Network:        rawCfg.Network,
		Post:           rawCfg.Post,
		CookieFilePath: rawCfg.CookieFilePath,
		EnableLogFile:  rawCfg.EnableLogFile,
		LogFilePath:    rawCfg.LogFilePath,
		BoardTemplates: rawCfg.BoardTemplates,
		Boards:         make([]Board, 0, len(rawCfg.Boards)),
	}

	for _, patch := range rawCfg.Boards {
		var resolvedBoard Board
		if patch.UseTemplate != "" {
			template, ok := rawCfg.BoardTemplates[patch.UseTemplate]
			if !ok {
				boardName := "unknown"
				if patch.Name != nil {
					boardName = *patch.Name
				}
				return nil, fmt.Errorf("板 '%s' が未定義のテンプレート '%s' を使用しています", boardName, patch.UseTemplate)
			}
			resolvedBoard = template
		}
		applyPatch(&resolvedBoard, &patch)
		resolvedConfig.Boards = append(resolvedConfig.Boards, resolvedBoard)
	}

	return resolvedConfig, nil
}

// applyPatch は、patchの非nilフィールドをtargetに上書きします。
func applyPatch(target *Board, patch *boardPatch) {
	target.UseTemplate = patch.UseTemplate
	if patch.Name != nil {
		target.Name = *patch.Name
	}
	if patch.Title != nil {
		target.Title = *patch.Title
	}
	if patch.URL != nil {
		target.URL = *patch.URL
	}
	if patch.BBSID != nil {
		target.BBSID = *patch.BBSID
	}
	if patch.ServerURL != nil {
		target.ServerURL = *patch.ServerURL
	}
	if patch.Kind != nil {
		target.Kind = *patch.Kind
	}
	if patch.SubDir != nil {
		target.SubDir = *patch.SubDir
	}
	if patch.DefaultName != nil {
		target.DefaultName = *patch.DefaultName
	}
	if patch.DefaultMail != nil {
		target.DefaultMail = *patch.DefaultMail
	}
}

// computeLineAndColumn は、バイトオフセットから行番号と列番号（1始まり）を計算します。
func computeLineAndColumn(data []byte, offset int64) (int, int) {
	if offset < 0 || int(offset) > len(data) {
		return 0, 0
	}
	line := 1
	lastLineStart := 0
	for i, b := range data {
		if int64(i) == offset {
			return line, i - lastLineStart + 1
		}
		if b == '\n' {
			line++
			lastLineStart = i + 1
		}
	}
	return line, int(offset) - lastLineStart + 1
}
