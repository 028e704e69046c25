package bridge

import (
	"fmt"
	"unicode/utf8"

	"github.com/memohai/immich-bridge/internal/immich"
	"github.com/memohai/immich-bridge/internal/media"
)

const (
	msgCannotConnect   = "❌ Cannot connect to Immich server. Please try again later."
	msgUnexpectedError = "❌ An unexpected error occurred. Please try again later."
	msgUploadError     = "❌ An error occurred while uploading the file. Please try again later."
	msgUnsupportedType = "❌ Unsupported file type. Supported types:\n" + media.SupportedTypesDescription
	msgTextHint        = "ℹ️ Send me photos, videos or image files and I'll upload them to your Immich instance.\nUse /help to see the available commands."
)

// maxMessageRunes is the Bot API limit for sendMessage text.
const maxMessageRunes = 4096

// subject names the uploaded thing in replies.
type subject struct {
	noun string // "file", "photo" or "video"
	name string // shown for documents and videos
}

func (s subject) title() string {
	noun := map[string]string{"file": "File", "photo": "Photo", "video": "Video"}[s.noun]
	if s.name == "" {
		return noun
	}
	return noun + " " + s.name
}

func tooBigMessage(limit int64) string {
	return fmt.Sprintf("❌ File is too big. Maximum allowed size is %d MB.", limit/(1024*1024))
}

func downloadFailedMessage(s subject) string {
	return fmt.Sprintf("❌ Failed to download %s.", s.noun)
}

func outcomeMessage(s subject, outcome immich.Outcome) string {
	switch outcome.Kind {
	case immich.OutcomeCreated:
		return fmt.Sprintf("✅ %s uploaded successfully!", s.title())
	case immich.OutcomeDuplicate:
		return fmt.Sprintf("ℹ️ %s already exists in Immich.", s.title())
	case immich.OutcomeRejected:
		return withDetail("❌ ", outcome.Message)
	default:
		return withDetail(fmt.Sprintf("❌ Failed to upload %s. Error: ", s.noun), outcome.Message)
	}
}

// withDetail appends server-provided text, cut so the reply fits one message.
func withDetail(prefix, detail string) string {
	budget := maxMessageRunes - utf8.RuneCountInString(prefix)
	if utf8.RuneCountInString(detail) <= budget {
		return prefix + detail
	}
	runes := []rune(detail)
	return prefix + string(runes[:budget-1]) + "…"
}

func statusBlock(report immich.Report) string {
	return fmt.Sprintf("%s\nLogged in as %s", report.StatusLine(), report.Identity.String())
}

func helpMessage(botName, version string, report immich.Report) string {
	return fmt.Sprintf("ℹ️ %s v%s\n\n%s\n\n"+
		"Available commands:\n"+
		"/help - Show this help message\n"+
		"/version - Show bot version\n"+
		"/files - Show supported file types\n\n"+
		"Send me files and I'll upload them to your Immich instance!",
		botName, version, statusBlock(report))
}

func startupMessage(botName, version string, report immich.Report) string {
	return fmt.Sprintf("🤖 %s v%s has started!\n\n%s\n\nBot is ready to receive your files.",
		botName, version, statusBlock(report))
}

func versionMessage(botName, version string) string {
	return fmt.Sprintf("📋 %s version: %s", botName, version)
}

func filesMessage() string {
	return "📄 Supported file types:\n" + media.SupportedTypesDescription
}
