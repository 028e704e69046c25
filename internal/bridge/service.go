package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/memohai/immich-bridge/internal/access"
	"github.com/memohai/immich-bridge/internal/config"
	"github.com/memohai/immich-bridge/internal/immich"
	"github.com/memohai/immich-bridge/internal/logger"
	"github.com/memohai/immich-bridge/internal/media"
	"github.com/memohai/immich-bridge/internal/metrics"
	"github.com/memohai/immich-bridge/internal/version"
)

// AssetServer is the Immich side of the pipeline.
type AssetServer interface {
	Ping(ctx context.Context) immich.Status
	Check(ctx context.Context) immich.Report
	Upload(ctx context.Context, in immich.UploadRequest) (immich.Outcome, error)
}

// DateResolver picks the creation time of a downloaded file.
type DateResolver interface {
	CreatedAt(path string, kind media.Kind, fallback time.Time) media.Resolution
}

// Pipeline outcome labels besides immich.OutcomeKind.
const (
	outcomeUnauthorized   = "unauthorized"
	outcomeUnreachable    = "unreachable"
	outcomeDownloadFailed = "download_failed"
	outcomeError          = "error"
)

// Service runs every inbound event through the upload pipeline.
type Service struct {
	gate        *access.Gate
	server      AssetServer
	resolver    DateResolver
	metrics     *metrics.Recorder
	logger      *slog.Logger
	botName     string
	version     string
	tempDir     string
	maxFileSize int64
}

// NewService creates the orchestrator. rec may be nil.
func NewService(log *slog.Logger, cfg config.Config, gate *access.Gate, server AssetServer, resolver DateResolver, rec *metrics.Recorder) *Service {
	if log == nil {
		log = slog.Default()
	}
	tempDir := cfg.Bot.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	botName := cfg.Bot.Name
	if botName == "" {
		botName = config.DefaultBotName
	}
	return &Service{
		gate:        gate,
		server:      server,
		resolver:    resolver,
		metrics:     rec,
		logger:      log.With(slog.String("service", "bridge")),
		botName:     botName,
		version:     version.Version,
		tempDir:     tempDir,
		maxFileSize: cfg.MaxFileSize(),
	}
}

// Dispatch handles one event. It never returns an error: failures become
// replies, and a panic is logged and answered with a generic message.
func (s *Service) Dispatch(ctx context.Context, ev Event, t Transport) {
	if ev == nil {
		return
	}
	env := ev.envelope()
	kind := eventKind(ev)
	s.metrics.Event(kind)

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("event handler panicked",
				slog.String("kind", kind),
				slog.Int64("user_id", env.Sender.ID),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			s.metrics.Outcome(outcomeError)
			s.reply(ctx, t, env, msgUnexpectedError)
		}
	}()

	if !s.gate.Allowed(env.Sender.ID) {
		s.logger.Warn("unauthorized access attempt",
			slog.Int64("user_id", env.Sender.ID),
			slog.String("username", env.Sender.DisplayName),
			slog.String("kind", kind))
		s.metrics.Outcome(outcomeUnauthorized)
		return
	}

	switch e := ev.(type) {
	case DocumentEvent:
		s.handleFile(ctx, t, e.Envelope, e.File, "", subject{noun: "file", name: e.File.Name})
	case PhotoEvent:
		file := e.File
		file.Name = "photo_" + file.ID + ".jpg"
		s.handleFile(ctx, t, e.Envelope, file, media.KindImage, subject{noun: "photo"})
	case VideoEvent:
		file := e.File
		if strings.TrimSpace(file.Name) == "" {
			file.Name = "video_" + file.ID + ".mp4"
		}
		s.handleFile(ctx, t, e.Envelope, file, media.KindVideo, subject{noun: "video", name: file.Name})
	case CommandEvent:
		s.handleCommand(ctx, t, e)
	case TextEvent:
		s.reply(ctx, t, e.Envelope, msgTextHint)
	default:
		s.logger.Warn("unhandled event", slog.String("type", fmt.Sprintf("%T", ev)))
	}
}

// Announce sends the startup message to every allowed user.
func (s *Service) Announce(ctx context.Context, n Notifier) {
	text := startupMessage(s.botName, s.version, s.server.Check(ctx))
	for _, id := range s.gate.Users() {
		if err := n.Notify(ctx, id, text); err != nil {
			s.logger.Warn("startup message failed", slog.Int64("user_id", id), slog.Any("error", err))
		}
	}
}

// BotName returns the configured display name.
func (s *Service) BotName() string {
	return s.botName
}

func (s *Service) handleCommand(ctx context.Context, t Transport, e CommandEvent) {
	var text string
	switch strings.ToLower(e.Command) {
	case "start", "help":
		text = helpMessage(s.botName, s.version, s.server.Check(ctx))
	case "version":
		text = versionMessage(s.botName, s.version)
	case "files":
		text = filesMessage()
	default:
		text = msgTextHint
	}
	s.reply(ctx, t, e.Envelope, text)
}

// handleFile runs the pipeline for one file. kind is empty for documents,
// which are classified after download.
func (s *Service) handleFile(ctx context.Context, t Transport, env Envelope, file FileRef, kind media.Kind, subj subject) {
	log := s.logger.With(
		slog.Int64("user_id", env.Sender.ID),
		slog.String("username", env.Sender.DisplayName),
		slog.String("file_id", file.ID),
		slog.String("file_name", file.Name))
	ctx = logger.WithContext(ctx, log)

	if s.maxFileSize > 0 && file.Size > s.maxFileSize {
		log.Warn("file exceeds size limit",
			slog.Int64("size", file.Size),
			slog.Int64("limit", s.maxFileSize))
		s.finish(ctx, t, env, immich.OutcomeRejected.String(), tooBigMessage(s.maxFileSize))
		return
	}

	if status := s.server.Ping(ctx); !status.Reachable {
		log.Error("immich unreachable", slog.String("detail", status.Detail))
		s.finish(ctx, t, env, outcomeUnreachable, msgCannotConnect)
		return
	}

	path := s.tempPath(file)
	defer s.cleanup(log, path)

	if err := s.download(ctx, t, file, path); err != nil {
		log.Error("download failed", slog.Any("error", err))
		s.finish(ctx, t, env, outcomeDownloadFailed, downloadFailedMessage(subj))
		return
	}

	if kind == "" {
		kind = media.Classify(file.Name, file.MimeType)
	}
	if kind == media.KindUnsupported {
		log.Info("unsupported file type", slog.String("mime_type", file.MimeType))
		s.finish(ctx, t, env, immich.OutcomeRejected.String(), msgUnsupportedType)
		return
	}

	outcome, err := s.upload(ctx, log, path, file.Name, kind, env.FallbackTime())
	if err != nil {
		log.Error("upload failed", slog.Any("error", err))
		s.finish(ctx, t, env, outcomeError, msgUploadError)
		return
	}
	log.Info("upload finished",
		slog.String("outcome", outcome.Kind.String()),
		slog.String("asset_id", outcome.AssetID),
		slog.Int("status", outcome.Status))
	s.finish(ctx, t, env, outcome.Kind.String(), outcomeMessage(subj, outcome))
}

func (s *Service) download(ctx context.Context, t Transport, file FileRef, path string) error {
	if err := t.Download(ctx, file, path); err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("downloaded file missing: %w", err)
	}
	if info.IsDir() {
		return errors.New("downloaded path is a directory")
	}
	return nil
}

func (s *Service) upload(ctx context.Context, log *slog.Logger, path, name string, kind media.Kind, fallback time.Time) (immich.Outcome, error) {
	res := s.resolver.CreatedAt(path, kind, fallback)
	log.Debug("creation time resolved",
		slog.String("source", res.Source),
		slog.String("created_at", media.FormatTimestamp(res.At)))

	checksum, err := media.SHA1File(path)
	if err != nil {
		return immich.Outcome{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return immich.Outcome{}, err
	}

	start := time.Now()
	outcome, err := s.server.Upload(ctx, immich.UploadRequest{
		Path:      path,
		FileName:  name,
		CreatedAt: res.At,
		Checksum:  checksum,
	})
	if err != nil {
		return immich.Outcome{}, err
	}
	s.metrics.Upload(time.Since(start), info.Size())
	return outcome, nil
}

// tempPath is <TempDir>/<fileID>_<base name>.
func (s *Service) tempPath(file FileRef) string {
	name := filepath.Base(file.Name)
	if name == "." || name == string(filepath.Separator) {
		name = "file"
	}
	id := strings.NewReplacer("/", "_", `\`, "_").Replace(file.ID)
	return filepath.Join(s.tempDir, id+"_"+name)
}

func (s *Service) cleanup(log *slog.Logger, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("temp file cleanup failed", slog.String("path", path), slog.Any("error", err))
	}
}

func (s *Service) finish(ctx context.Context, t Transport, env Envelope, outcome, text string) {
	s.metrics.Outcome(outcome)
	s.reply(ctx, t, env, text)
}

func (s *Service) reply(ctx context.Context, t Transport, env Envelope, text string) {
	if t == nil {
		return
	}
	if err := t.Reply(ctx, env, text); err != nil {
		s.logger.Warn("reply failed",
			slog.Int64("chat_id", env.ChatID),
			slog.Any("error", err))
	}
}
