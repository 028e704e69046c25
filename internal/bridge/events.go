// Package bridge turns inbound Telegram events into Immich uploads and replies.
package bridge

import (
	"context"
	"time"
)

// Sender identifies the Telegram user behind an event.
type Sender struct {
	ID          int64
	DisplayName string
}

// Envelope is the part every event shares.
type Envelope struct {
	Sender     Sender
	ChatID     int64
	MessageID  int
	ReceivedAt time.Time
	// ForwardedAt is the original send time of a forwarded message, zero otherwise.
	ForwardedAt time.Time
}

// FallbackTime is the forwarded time if present, else the receipt time.
func (e Envelope) FallbackTime() time.Time {
	if !e.ForwardedAt.IsZero() {
		return e.ForwardedAt
	}
	return e.ReceivedAt
}

func (e Envelope) envelope() Envelope { return e }

// FileRef points at a file held by Telegram.
type FileRef struct {
	ID       string
	Name     string
	MimeType string
	// Size is the declared size in bytes, 0 when unknown.
	Size int64
}

// Event is one of DocumentEvent, PhotoEvent, VideoEvent, TextEvent or CommandEvent.
type Event interface {
	envelope() Envelope
}

// DocumentEvent is a file sent as a document; its kind comes from name and MIME type.
type DocumentEvent struct {
	Envelope
	File FileRef
}

// PhotoEvent is a compressed Telegram photo (largest size variant).
type PhotoEvent struct {
	Envelope
	File FileRef
}

// VideoEvent is a file sent as a Telegram video.
type VideoEvent struct {
	Envelope
	File FileRef
}

// TextEvent is a plain text message.
type TextEvent struct {
	Envelope
	Text string
}

// CommandEvent is a bot command such as /help, without the leading slash.
type CommandEvent struct {
	Envelope
	Command string
	Args    string
}

// Transport is the messaging side of one inbound event.
type Transport interface {
	// Reply answers the message described by to.
	Reply(ctx context.Context, to Envelope, text string) error
	// Download stores the Telegram file at dst.
	Download(ctx context.Context, file FileRef, dst string) error
}

// Notifier sends unsolicited messages to a user.
type Notifier interface {
	Notify(ctx context.Context, userID int64, text string) error
}

func eventKind(ev Event) string {
	switch ev.(type) {
	case DocumentEvent:
		return "document"
	case PhotoEvent:
		return "photo"
	case VideoEvent:
		return "video"
	case TextEvent:
		return "text"
	case CommandEvent:
		return "command"
	default:
		return "unknown"
	}
}
