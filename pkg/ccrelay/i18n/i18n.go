// Package i18n provides the user-visible message catalogs (English and
// Japanese) and locale detection.
package i18n

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/language"
)

// Locale is a supported catalog language.
type Locale string

const (
	English  Locale = "en"
	Japanese Locale = "ja"
)

var (
	supported = []language.Tag{language.English, language.Japanese}
	locales   = []Locale{English, Japanese}
	matcher   = language.NewMatcher(supported)
)

// Parse validates an explicit locale flag value.
func Parse(s string) (Locale, error) {
	switch Locale(strings.ToLower(strings.TrimSpace(s))) {
	case English:
		return English, nil
	case Japanese:
		return Japanese, nil
	}
	return "", fmt.Errorf("i18n: unsupported locale %q (use ja or en)", s)
}

// Detect picks a locale from LANG, then LANGUAGE. Unknown or empty values
// fall back to English.
func Detect() Locale {
	for _, key := range []string{"LANG", "LANGUAGE"} {
		if v := os.Getenv(key); v != "" {
			return Match(v)
		}
	}
	return English
}

// Match maps a POSIX or BCP 47 locale string ("ja_JP.UTF-8", "en-US") to
// the closest supported locale.
func Match(s string) Locale {
	s, _, _ = strings.Cut(s, ".")
	s, _, _ = strings.Cut(s, ":")
	s = strings.ReplaceAll(s, "_", "-")

	tag, err := language.Parse(s)
	if err != nil {
		return English
	}
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return English
	}
	return locales[idx]
}

// Catalog holds every user-visible string. Fields ending in "f" are
// fmt format strings.
type Catalog struct {
	// Turn lifecycle.
	Thinking     string
	Done         string
	ErrorGeneric string
	Aborted      string
	Queuedf      string

	// Command replies.
	ResetComplete string
	StopComplete  string
	ExitMessage   string
	Goodbye       string
	Executingf    string

	// Shell passthrough.
	CommandBlocked   string
	CommandNoOutput  string
	CommandNotFoundf string
	CommandTimeoutf  string
	CommandErrorf    string
	OutputTruncatedf string

	// Session thread header.
	ThreadNamef        string
	SessionInfoTitle   string
	StartTime          string
	WorkDir            string
	Mode               string
	ModeResume         string
	ModeContinue       string
	ModeNew            string
	ModeDebug          string
	NeverSleepEnabled  string
	InstructionsHeader string
	InstrReset         string
	InstrStop          string
	InstrExit          string
	InstrShell         string
	InstrNormal        string

	// Never-Sleep driver.
	BudgetExceeded string
	IdleTriggeredf string

	// CLI.
	ContinueResumeConflict string
	SelectConflict         string
	SessionNotSelected     string
	NoSessions             string
	DebugRunning           string
	DebugUserResponse      string
	DebugAssistantResponse string
	DebugNeverSleep        string
	DebugAutoResponder     string
}

// For returns the catalog for l; unknown locales get English.
func For(l Locale) Catalog {
	if l == Japanese {
		return ja
	}
	return en
}

// Queued formats the queued-turn notice.
func (c Catalog) Queued(waiting int) string { return fmt.Sprintf(c.Queuedf, waiting) }

var en = Catalog{
	Thinking:     "🤔 Thinking...",
	Done:         "(done)",
	ErrorGeneric: "❌ An error occurred. Please try again.",
	Aborted:      "⛔ Task was aborted.",
	Queuedf:      "📝 Added to queue (waiting: %d)",

	ResetComplete: "💫 Conversation reset. Let's start a new conversation!",
	StopComplete:  "⛔ Stopped running tasks.",
	ExitMessage:   "👋 Shutting down bot.",
	Goodbye:       "👋 Shutting down bot",
	Executingf:    "Executing: `%s`",

	CommandBlocked:   "🚫 This command is not allowed for security reasons.",
	CommandNoOutput:  "✅ Command executed successfully (no output)",
	CommandNotFoundf: "❌ Command not found: %s",
	CommandTimeoutf:  "⏱️ Command timed out (%s)",
	CommandErrorf:    "❌ Error: %s",
	OutputTruncatedf: "⚠️ Output too long, showing only the first %d characters.",

	ThreadNamef:        "Claude Session - %s",
	SessionInfoTitle:   "Session Information",
	StartTime:          "Start Time",
	WorkDir:            "Working Directory",
	Mode:               "Mode",
	ModeResume:         "Resume Session",
	ModeContinue:       "Continue Session",
	ModeNew:            "New Session",
	ModeDebug:          "Debug",
	NeverSleepEnabled:  "Never Sleep Mode: Enabled",
	InstructionsHeader: "Send a message in this thread and Claude Code will respond.",
	InstrReset:         "Reset conversation",
	InstrStop:          "Stop running tasks",
	InstrExit:          "Exit bot",
	InstrShell:         "Execute shell command",
	InstrNormal:        "Regular message: Ask Claude",

	BudgetExceeded: "⏰ Execution time budget exhausted. Never Sleep mode disabled.",
	IdleTriggeredf: "🔁 Idle for %s, starting next task: %s",

	ContinueResumeConflict: "Error: --continue and --resume cannot be used together",
	SelectConflict:         "Error: --select cannot be used with --continue or --resume",
	SessionNotSelected:     "No session was selected",
	NoSessions:             "No resumable sessions found.",
	DebugRunning:           "Debug mode: Running demo conversation...",
	DebugUserResponse:      "UserActor response:",
	DebugAssistantResponse: "Assistant response:",
	DebugNeverSleep:        "Never Sleep mode demo...",
	DebugAutoResponder:     "AutoResponder response:",
}

var ja = Catalog{
	Thinking:     "🤔 考え中...",
	Done:         "(done)",
	ErrorGeneric: "❌ エラーが発生しました。もう一度お試しください。",
	Aborted:      "⛔ タスクが中断されました。",
	Queuedf:      "📝 キューに追加しました（待機中: %d件）",

	ResetComplete: "💫 会話をリセットしました。新しい会話を始めましょう！",
	StopComplete:  "⛔ 実行中のタスクを停止しました。",
	ExitMessage:   "👋 ボットを終了します。",
	Goodbye:       "👋 ボットを終了します",
	Executingf:    "実行中: `%s`",

	CommandBlocked:   "🚫 セキュリティ上の理由により、このコマンドの実行は許可されていません。",
	CommandNoOutput:  "✅ コマンドが正常に実行されました（出力なし）",
	CommandNotFoundf: "❌ コマンドが見つかりません: %s",
	CommandTimeoutf:  "⏱️ コマンドの実行がタイムアウトしました（%s）",
	CommandErrorf:    "❌ エラー: %s",
	OutputTruncatedf: "⚠️ 出力が長すぎるため、最初の %d 文字のみ表示しています。",

	ThreadNamef:        "Claude Session - %s",
	SessionInfoTitle:   "セッション情報",
	StartTime:          "開始時刻",
	WorkDir:            "作業ディレクトリ",
	Mode:               "モード",
	ModeResume:         "セッション再開",
	ModeContinue:       "セッション続行",
	ModeNew:            "新規セッション",
	ModeDebug:          "デバッグ",
	NeverSleepEnabled:  "Never Sleep モード: 有効",
	InstructionsHeader: "このスレッドでメッセージを送信すると、Claude Code が応答します。",
	InstrReset:         "会話をリセット",
	InstrStop:          "実行中のタスクを中断",
	InstrExit:          "ボットを終了",
	InstrShell:         "シェルコマンドを実行",
	InstrNormal:        "通常のメッセージ: Claude に問い合わせ",

	BudgetExceeded: "⏰ 実行時間の上限に達しました。Never Sleep モードを無効化します。",
	IdleTriggeredf: "🔁 %s 操作がないため、次のタスクを開始します: %s",

	ContinueResumeConflict: "エラー: --continue と --resume は同時に使用できません",
	SelectConflict:         "エラー: --select は --continue や --resume と同時に使用できません",
	SessionNotSelected:     "セッションが選択されませんでした",
	NoSessions:             "再開可能なセッションがありません。",
	DebugRunning:           "デバッグモード: デモ会話を実行中...",
	DebugUserResponse:      "UserActor レスポンス:",
	DebugAssistantResponse: "アシスタント レスポンス:",
	DebugNeverSleep:        "Never Sleepモード デモ...",
	DebugAutoResponder:     "AutoResponder レスポンス:",
}
