package telegram

import (
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/memohai/immich-bridge/internal/bridge"
)

// toEvent maps a Telegram message to a bridge event. Messages carrying
// nothing the bridge handles (stickers, voice notes, service messages)
// yield false.
func toEvent(msg *tgbotapi.Message) (bridge.Event, bool) {
	if msg == nil {
		return nil, false
	}
	env := bridge.Envelope{
		Sender:     resolveTelegramSender(msg),
		MessageID:  msg.MessageID,
		ReceivedAt: time.Unix(int64(msg.Date), 0).UTC(),
	}
	if msg.Chat != nil {
		env.ChatID = msg.Chat.ID
	}
	if msg.ForwardDate != 0 {
		env.ForwardedAt = time.Unix(int64(msg.ForwardDate), 0).UTC()
	}

	switch {
	case msg.Document != nil:
		return bridge.DocumentEvent{Envelope: env, File: bridge.FileRef{
			ID:       msg.Document.FileID,
			Name:     strings.TrimSpace(msg.Document.FileName),
			MimeType: strings.TrimSpace(msg.Document.MimeType),
			Size:     int64(msg.Document.FileSize),
		}}, true
	case msg.Video != nil:
		return bridge.VideoEvent{Envelope: env, File: bridge.FileRef{
			ID:       msg.Video.FileID,
			Name:     strings.TrimSpace(msg.Video.FileName),
			MimeType: strings.TrimSpace(msg.Video.MimeType),
			Size:     int64(msg.Video.FileSize),
		}}, true
	case len(msg.Photo) > 0:
		photo := pickTelegramPhoto(msg.Photo)
		return bridge.PhotoEvent{Envelope: env, File: bridge.FileRef{
			ID:       photo.FileID,
			MimeType: "image/jpeg",
			Size:     int64(photo.FileSize),
		}}, true
	case msg.IsCommand():
		return bridge.CommandEvent{
			Envelope: env,
			Command:  msg.Command(),
			Args:     strings.TrimSpace(msg.CommandArguments()),
		}, true
	case strings.TrimSpace(msg.Text) != "":
		return bridge.TextEvent{Envelope: env, Text: strings.TrimSpace(msg.Text)}, true
	}
	return nil, false
}

func resolveTelegramSender(msg *tgbotapi.Message) bridge.Sender {
	if msg == nil || msg.From == nil {
		return bridge.Sender{}
	}
	displayName := strings.TrimSpace(msg.From.UserName)
	if displayName == "" {
		displayName = strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName)
	}
	return bridge.Sender{ID: msg.From.ID, DisplayName: displayName}
}

// pickTelegramPhoto returns the largest size variant.
func pickTelegramPhoto(items []tgbotapi.PhotoSize) tgbotapi.PhotoSize {
	if len(items) == 0 {
		return tgbotapi.PhotoSize{}
	}
	best := items[0]
	for _, item := range items[1:] {
		if item.FileSize > best.FileSize {
			best = item
			continue
		}
		if item.FileSize == best.FileSize && item.Width*item.Height > best.Width*best.Height {
			best = item
		}
	}
	return best
}
