package telegram

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memohai/immich-bridge/internal/bridge"
	"github.com/memohai/immich-bridge/internal/config"
	"github.com/memohai/immich-bridge/internal/logger"
)

const testToken = "123:abc"

// fakeBotAPI answers the handful of Bot API methods the adapter uses.
type fakeBotAPI struct {
	mu       sync.Mutex
	filePath string
	files    map[string][]byte
	sent     []map[string]string
	// update is served once to getUpdates.
	update    string
	delivered bool
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/bot"+testToken+"/getMe":
		_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Bridge","username":"bridge_bot"}}`))
	case r.URL.Path == "/bot"+testToken+"/getUpdates":
		f.mu.Lock()
		update := f.update
		first := !f.delivered && update != ""
		f.delivered = true
		f.mu.Unlock()
		if first {
			_, _ = w.Write([]byte(`{"ok":true,"result":[` + update + `]}`))
			return
		}
		time.Sleep(20 * time.Millisecond)
		_, _ = w.Write([]byte(`{"ok":true,"result":[]}`))
	case r.URL.Path == "/bot"+testToken+"/getFile":
		_ = r.ParseForm()
		_, _ = w.Write([]byte(`{"ok":true,"result":{"file_id":"` + r.FormValue("file_id") + `","file_path":"` + f.filePath + `"}}`))
	case r.URL.Path == "/bot"+testToken+"/sendMessage":
		_ = r.ParseForm()
		f.mu.Lock()
		f.sent = append(f.sent, map[string]string{
			"chat_id":             r.FormValue("chat_id"),
			"text":                r.FormValue("text"),
			"reply_to_message_id": r.FormValue("reply_to_message_id"),
		})
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":99,"date":0,"chat":{"id":1,"type":"private"}}}`))
	case strings.HasPrefix(r.URL.Path, "/file/bot"+testToken+"/"):
		data, ok := f.files[strings.TrimPrefix(r.URL.Path, "/file/bot"+testToken+"/")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(data)
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":404,"description":"Not Found"}`))
	}
}

func newTestAdapter(t *testing.T, api *fakeBotAPI) *Adapter {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	cfg := config.Config{}
	cfg.Telegram.BotToken = testToken
	cfg.Telegram.APIURL = srv.URL + "/"
	return NewAdapter(nil, cfg, srv.Client())
}

func TestToEventDocument(t *testing.T) {
	t.Parallel()

	msg := &tgbotapi.Message{
		MessageID:   5,
		From:        &tgbotapi.User{ID: 42, UserName: "alice"},
		Chat:        &tgbotapi.Chat{ID: 42},
		Date:        1700000000,
		ForwardDate: 1600000000,
		Document:    &tgbotapi.Document{FileID: "f1", FileName: " scan.png ", MimeType: "image/png", FileSize: 2048},
	}
	ev, ok := toEvent(msg)
	require.True(t, ok)
	doc, ok := ev.(bridge.DocumentEvent)
	require.True(t, ok)
	assert.Equal(t, bridge.FileRef{ID: "f1", Name: "scan.png", MimeType: "image/png", Size: 2048}, doc.File)
	assert.Equal(t, bridge.Sender{ID: 42, DisplayName: "alice"}, doc.Sender)
	assert.Equal(t, int64(42), doc.ChatID)
	assert.Equal(t, 5, doc.MessageID)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), doc.ReceivedAt)
	assert.Equal(t, time.Unix(1600000000, 0).UTC(), doc.ForwardedAt)
}

func TestToEventPhotoPicksLargest(t *testing.T) {
	t.Parallel()

	msg := &tgbotapi.Message{
		From: &tgbotapi.User{ID: 1, FirstName: "Bob", LastName: "Smith"},
		Chat: &tgbotapi.Chat{ID: 1},
		Photo: []tgbotapi.PhotoSize{
			{FileID: "small", Width: 90, Height: 90, FileSize: 1000},
			{FileID: "large", Width: 1280, Height: 960, FileSize: 90000},
			{FileID: "medium", Width: 320, Height: 240, FileSize: 9000},
		},
	}
	ev, ok := toEvent(msg)
	require.True(t, ok)
	photo, ok := ev.(bridge.PhotoEvent)
	require.True(t, ok)
	assert.Equal(t, "large", photo.File.ID)
	assert.Equal(t, int64(90000), photo.File.Size)
	assert.Equal(t, "Bob Smith", photo.Sender.DisplayName)
	assert.True(t, photo.ForwardedAt.IsZero())
}

func TestToEventVideoCommandAndText(t *testing.T) {
	t.Parallel()

	video, ok := toEvent(&tgbotapi.Message{
		From:  &tgbotapi.User{ID: 1},
		Video: &tgbotapi.Video{FileID: "v", MimeType: "video/mp4", FileSize: 10},
	})
	require.True(t, ok)
	assert.IsType(t, bridge.VideoEvent{}, video)

	cmd, ok := toEvent(&tgbotapi.Message{
		From:     &tgbotapi.User{ID: 1},
		Text:     "/help now",
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 5}},
	})
	require.True(t, ok)
	command, ok := cmd.(bridge.CommandEvent)
	require.True(t, ok)
	assert.Equal(t, "help", command.Command)
	assert.Equal(t, "now", command.Args)

	text, ok := toEvent(&tgbotapi.Message{From: &tgbotapi.User{ID: 1}, Text: " hi "})
	require.True(t, ok)
	assert.Equal(t, "hi", text.(bridge.TextEvent).Text)

	_, ok = toEvent(&tgbotapi.Message{From: &tgbotapi.User{ID: 1}, Sticker: &tgbotapi.Sticker{FileID: "s"}})
	assert.False(t, ok)
	_, ok = toEvent(nil)
	assert.False(t, ok)
}

func TestResolveTelegramSender(t *testing.T) {
	t.Parallel()

	assert.Equal(t, bridge.Sender{}, resolveTelegramSender(nil))
	assert.Equal(t, bridge.Sender{}, resolveTelegramSender(&tgbotapi.Message{}))
	assert.Equal(t, bridge.Sender{ID: 123, DisplayName: "alice"},
		resolveTelegramSender(&tgbotapi.Message{From: &tgbotapi.User{ID: 123, UserName: "alice"}}))
}

func TestReplyAndNotify(t *testing.T) {
	t.Parallel()

	api := &fakeBotAPI{}
	adapter := newTestAdapter(t, api)

	require.NoError(t, adapter.Reply(context.Background(), bridge.Envelope{ChatID: 42, MessageID: 7}, "✅ done"))
	require.NoError(t, adapter.Notify(context.Background(), 43, "hello"))

	api.mu.Lock()
	defer api.mu.Unlock()
	require.Len(t, api.sent, 2)
	assert.Equal(t, map[string]string{"chat_id": "42", "text": "✅ done", "reply_to_message_id": "7"}, api.sent[0])
	assert.Equal(t, "43", api.sent[1]["chat_id"])
	assert.Equal(t, "", api.sent[1]["reply_to_message_id"])
}

func TestDownloadFromFileEndpoint(t *testing.T) {
	t.Parallel()

	api := &fakeBotAPI{
		filePath: "documents/file_3.jpg",
		files:    map[string][]byte{"documents/file_3.jpg": []byte("jpeg bytes")},
	}
	adapter := newTestAdapter(t, api)
	dst := filepath.Join(t.TempDir(), "f_file.jpg")

	require.NoError(t, adapter.Download(context.Background(), bridge.FileRef{ID: "f"}, dst))
	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg bytes"), got)
}

func TestDownloadCopiesLocalPath(t *testing.T) {
	t.Parallel()

	src := filepath.Join(t.TempDir(), "local.mp4")
	require.NoError(t, os.WriteFile(src, []byte("video"), 0o600))
	api := &fakeBotAPI{filePath: filepath.ToSlash(src)}
	adapter := newTestAdapter(t, api)
	dst := filepath.Join(t.TempDir(), "v_local.mp4")

	require.NoError(t, adapter.Download(context.Background(), bridge.FileRef{ID: "v"}, dst))
	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, []byte("video"), got)
}

func TestDownloadLogsWithEventLogger(t *testing.T) {
	t.Parallel()

	src := filepath.Join(t.TempDir(), "local.jpg")
	require.NoError(t, os.WriteFile(src, []byte("img"), 0o600))
	adapter := newTestAdapter(t, &fakeBotAPI{filePath: filepath.ToSlash(src)})

	var buf bytes.Buffer
	eventLog := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})).
		With(slog.Int64("user_id", 42))
	ctx := logger.WithContext(context.Background(), eventLog)

	require.NoError(t, adapter.Download(ctx, bridge.FileRef{ID: "p"}, filepath.Join(t.TempDir(), "p_local.jpg")))
	assert.Contains(t, buf.String(), `"msg":"copying local file"`)
	assert.Contains(t, buf.String(), `"user_id":42`)
}

func TestDownloadMissingFile(t *testing.T) {
	t.Parallel()

	api := &fakeBotAPI{filePath: "documents/gone.jpg", files: map[string][]byte{}}
	adapter := newTestAdapter(t, api)
	dst := filepath.Join(t.TempDir(), "gone.jpg")

	err := adapter.Download(context.Background(), bridge.FileRef{ID: "g"}, dst)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404")
}

func TestFileURL(t *testing.T) {
	t.Parallel()

	hosted := NewAdapter(nil, config.Config{Telegram: config.TelegramConfig{BotToken: testToken}}, nil)
	assert.False(t, hosted.UsesLocalAPI())
	assert.Equal(t, "https://api.telegram.org/file/bot"+testToken+"/photos/a.jpg",
		hosted.fileURL(tgbotapi.File{FilePath: "photos/a.jpg"}))

	local := NewAdapter(nil, config.Config{Telegram: config.TelegramConfig{BotToken: testToken, APIURL: "http://tg:8081"}}, nil)
	assert.True(t, local.UsesLocalAPI())
	assert.Equal(t, "http://tg:8081/bot%s/%s", local.endpoint())
	assert.Equal(t, "http://tg:8081/file/bot"+testToken+"/photos/a.jpg",
		local.fileURL(tgbotapi.File{FilePath: "photos/a.jpg"}))
}

const documentUpdate = `{"update_id":1,"message":{"message_id":5,"date":1700000000,` +
	`"chat":{"id":42,"type":"private"},"from":{"id":42,"is_bot":false,"first_name":"A","username":"alice"},` +
	`"document":{"file_id":"f1","file_unique_id":"u1","file_name":"scan.png","mime_type":"image/png","file_size":2048}}}`

// recordingHandler captures events and holds each Dispatch until released.
type recordingHandler struct {
	events   chan bridge.Event
	release  chan struct{}
	finished chan error
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		events:   make(chan bridge.Event, 1),
		release:  make(chan struct{}),
		finished: make(chan error, 1),
	}
}

func (h *recordingHandler) Dispatch(ctx context.Context, ev bridge.Event, _ bridge.Transport) {
	h.events <- ev
	select {
	case <-h.release:
		h.finished <- ctx.Err()
	case <-ctx.Done():
		h.finished <- ctx.Err()
	}
}

func TestStartDispatchesAndStopDrains(t *testing.T) {
	t.Parallel()

	adapter := newTestAdapter(t, &fakeBotAPI{update: documentUpdate})
	handler := newRecordingHandler()
	require.NoError(t, adapter.Start(context.Background(), handler))

	var ev bridge.Event
	select {
	case ev = <-handler.events:
	case <-time.After(5 * time.Second):
		t.Fatal("no event dispatched")
	}
	doc, ok := ev.(bridge.DocumentEvent)
	require.True(t, ok)
	assert.Equal(t, "f1", doc.File.ID)
	assert.Equal(t, int64(42), doc.Sender.ID)

	stopped := make(chan error, 1)
	go func() {
		stopped <- adapter.Stop(context.Background())
	}()
	select {
	case err := <-stopped:
		t.Fatalf("Stop returned while a handler was running: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	close(handler.release)
	select {
	case err := <-stopped:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return after the handler finished")
	}
	assert.NoError(t, <-handler.finished, "handler context must survive Stop")
}

func TestStopTimeoutCancelsHandlers(t *testing.T) {
	t.Parallel()

	adapter := newTestAdapter(t, &fakeBotAPI{update: documentUpdate})
	handler := newRecordingHandler()
	require.NoError(t, adapter.Start(context.Background(), handler))

	select {
	case <-handler.events:
	case <-time.After(5 * time.Second):
		t.Fatal("no event dispatched")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := adapter.Stop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case err := <-handler.finished:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("handler was not cancelled")
	}
}

func TestStartRequiresHandler(t *testing.T) {
	t.Parallel()

	adapter := newTestAdapter(t, &fakeBotAPI{})
	assert.Error(t, adapter.Start(context.Background(), nil))
}

func TestConnectRequiresToken(t *testing.T) {
	t.Parallel()

	adapter := NewAdapter(nil, config.Config{}, nil)
	err := adapter.Reply(context.Background(), bridge.Envelope{ChatID: 1}, "x")
	assert.Error(t, err)
	assert.NoError(t, adapter.Stop(context.Background()))
}
