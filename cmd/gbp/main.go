package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"GoBBSPoster/internal/adapter"
	"GoBBSPoster/internal/config"
	"GoBBSPoster/internal/cookie"
	"GoBBSPoster/internal/core"
	"GoBBSPoster/internal/donguri"
	"GoBBSPoster/internal/model"
	"GoBBSPoster/internal/network"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

const (
	colorGreen = "\033[32m"
	colorRed   = "\033[31m"
	colorReset = "\033[0m"
)

// グローバル変数
var (
	// ログファイル管理用
	logFile *os.File

	// コマンドラインフラグ
	configFile  *string
	boardKey    *string
	threadKey   *string
	postName    *string
	postMail    *string
	postMessage *string
	postSubject *string
	acornValue  *string
	clearAcorn  *bool
)

func init() {
	configFile = flag.String("config", "config.json", "設定ファイルのパス")
	boardKey = flag.String("board", "", "書き込み先の板（設定ファイルの板名、または板・スレッドのURL）")
	threadKey = flag.String("thread", "", "スレッドキー。省略するとスレッドを新規作成します")
	postName = flag.String("name", "", "名前欄")
	postMail = flag.String("mail", "", "メール欄")
	postMessage = flag.String("message", "", "本文。省略すると標準入力から読み込みます")
	postSubject = flag.String("subject", "", "スレッドのタイトル（新規作成時のみ）")
	acornValue = flag.String("acorn", "", "acorn Cookie の値を設定します")
	clearAcorn = flag.Bool("clear-acorn", false, "acorn Cookie を削除します")
}

// main関数はGBPのエントリーポイントです。
func main() {
	flag.Parse()

	// 結果は標準出力に出すため、ログは標準エラー出力に書く
	log.SetOutput(os.Stderr)

	cfg, err := config.LoadAndResolve(*configFile)
	if err != nil {
		log.Fatalf("設定ファイルの読み込みに失敗しました: %v", err)
	}
	setupLogger(cfg)

	ctx, cancel := context.WithCancel(context.Background())

	// シグナルハンドリング
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Println("終了シグナルを受信しました。書き込みを中断します...")
		cancel()
	}()

	code := run(ctx, cfg)
	cancel()
	closeLogFile()
	os.Exit(code)
}

// run は書き込みを実行し、終了コードを返します。
func run(ctx context.Context, cfg *config.Config) int {
	store := cookie.NewStore(time.Now)
	loadCookies(store, cfg.CookieFilePath)
	defer saveCookies(store, cfg.CookieFilePath)

	tracker := donguri.NewTracker(store)
	if *clearAcorn {
		tracker.ClearAcornCookie()
		log.Println("INFO: acorn Cookie を削除しました")
	}
	if *acornValue != "" {
		tracker.SetAcornCookie(*acornValue)
		log.Println("INFO: acorn Cookie を設定しました")
	}

	out, color := newOutput(os.Stdout)

	if *boardKey == "" {
		if *clearAcorn || *acornValue != "" {
			printDonguri(out, tracker.State())
			return 0
		}
		log.Println("ERROR: -board を指定してください")
		flag.Usage()
		return 2
	}

	board, defaults, threadID, err := resolveTarget(cfg, *boardKey)
	if err != nil {
		log.Printf("ERROR: 書き込み先の板を特定できません: %v", err)
		return 2
	}
	if *threadKey != "" {
		threadID = *threadKey
	}

	if *postMessage == "" && isatty.IsTerminal(os.Stdin.Fd()) {
		log.Println("INFO: 本文を標準入力から読み込みます。入力を終えたら Ctrl-D を押してください")
	}
	message, err := readMessage(*postMessage, os.Stdin)
	if err != nil {
		log.Printf("ERROR: %v", err)
		return 2
	}

	params := model.PostParams{
		BoardURL: board.URL,
		ThreadID: threadID,
		Name:     firstNonEmpty(*postName, defaults.DefaultName),
		Mail:     firstNonEmpty(*postMail, defaults.DefaultMail),
		Message:  message,
		Subject:  *postSubject,
	}
	if params.IsNewThread() && params.Subject == "" {
		log.Println("ERROR: スレッドを新規作成するには -subject が必要です")
		return 2
	}

	client := network.NewClient(cfg.Network, log.Default())
	opts := core.Options{
		MaxRetries:     cfg.Post.MaxRetries,
		ConfirmDelay:   time.Duration(cfg.Post.ConfirmDelayMillis) * time.Millisecond,
		AcceptLanguage: cfg.Post.AcceptLanguage,
		Logger:         log.Default(),
	}
	if cfg.Post.AuthToken != "" {
		opts.Auth = core.StaticToken(cfg.Post.AuthToken)
	}
	submitter := core.NewSubmitter(client, store, tracker, opts)

	log.Printf("INFO: 書き込みを開始します (board=%s, kind=%s, thread=%s)", board.URL, board.Kind, threadID)
	result, err := submitter.Submit(ctx, params, board)
	if err != nil {
		log.Printf("ERROR: 書き込みに失敗しました: %v", err)
	}
	printResult(out, color, result)
	printDonguri(out, tracker.State())

	if result == nil || !result.Success {
		return 1
	}
	return 0
}

// resolveTarget は -board の値を設定ファイルの板名、または URL として解決します。
func resolveTarget(cfg *config.Config, key string) (model.Board, config.Board, string, error) {
	if b, ok := cfg.FindBoard(key); ok {
		board, err := adapter.FillBoard(b.ToModel())
		return board, b, "", err
	}
	board, threadID, err := adapter.ResolveBoard(key)
	if err != nil {
		return model.Board{}, config.Board{}, "", fmt.Errorf("板 '%s' は設定ファイルにも見つからず、URLとしても解釈できません: %w", key, err)
	}
	return board, config.Board{}, threadID, nil
}

// readMessage は本文を返します。flagValue が空なら r から読み込みます。
func readMessage(flagValue string, r io.Reader) (string, error) {
	message := flagValue
	if message == "" {
		b, err := io.ReadAll(r)
		if err != nil {
			return "", fmt.Errorf("標準入力の読み込みに失敗しました: %w", err)
		}
		message = strings.TrimRight(string(b), "\r\n")
	}
	if strings.TrimSpace(message) == "" {
		return "", errors.New("本文が空です")
	}
	return message, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// loadCookies は Cookie ファイルを読み込みます。ファイルがなければ何もしません。
func loadCookies(store *cookie.Store, path string) {
	if path == "" {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("WARNING: Cookie ファイルの読み込みに失敗しました (path=%s): %v", path, err)
		}
		return
	}
	n, err := store.Deserialize(string(data))
	if err != nil {
		log.Printf("WARNING: Cookie ファイルに解釈できない行がありました (path=%s): %v", path, err)
	}
	log.Printf("INFO: Cookie を %d 件読み込みました (path=%s)", n, path)
}

// saveCookies は永続 Cookie を Cookie ファイルに書き出します。
func saveCookies(store *cookie.Store, path string) {
	if path == "" {
		return
	}
	if err := os.WriteFile(path, []byte(store.Serialize()), 0600); err != nil {
		log.Printf("WARNING: Cookie ファイルの保存に失敗しました (path=%s): %v", path, err)
	}
}

// newOutput は結果の出力先を返します。端末の場合は色付きで出力します。
func newOutput(f *os.File) (io.Writer, bool) {
	fd := f.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return colorable.NewColorable(f), true
	}
	return f, false
}

func printResult(w io.Writer, color bool, result *core.PostResult) {
	if result == nil {
		return
	}
	status := result.Classification.String()
	if color {
		c := colorRed
		if result.Success {
			c = colorGreen
		}
		status = c + status + colorReset
	}
	fmt.Fprintf(w, "結果: %s (送信回数: %d)\n", status, result.Attempts)
	if result.Message != "" {
		fmt.Fprintf(w, "応答: %s\n", result.Message)
	}
	if !result.Success && len(result.HiddenFields) > 0 {
		fmt.Fprintln(w, "確認画面の hidden 項目:")
		for _, f := range result.HiddenFields {
			fmt.Fprintf(w, "  %s=%s\n", f.Name, f.Value)
		}
	}
}

func printDonguri(w io.Writer, state donguri.State) {
	fmt.Fprintf(w, "どんぐり: %s", state.Status)
	if state.Message != "" {
		fmt.Fprintf(w, " (%s)", state.Message)
	}
	fmt.Fprintln(w)
}

// setupLogger はログ出力先を設定します。
// config.EnableLogFile が true の場合、ファイルにも出力します。
func setupLogger(cfg *config.Config) {
	if !cfg.EnableLogFile {
		return
	}
	path := cfg.LogFilePath
	if path == "" {
		// デフォルトは日付形式
		path = fmt.Sprintf("gbp_%s.log", time.Now().Format("2006-01-02"))
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("WARNING: ログファイルを開けませんでした: %v", err)
		return
	}
	logFile = f
	// 標準エラー出力とファイルの両方に出力
	log.SetOutput(io.MultiWriter(os.Stderr, f))
	log.Printf("INFO: ログ出力をファイル '%s' に開始しました", path)
}

func closeLogFile() {
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}
