package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/memohai/immich-bridge/internal/bridge"
	"github.com/memohai/immich-bridge/internal/logger"
)

// Download resolves the file with getFile and writes it to dst. A Bot API
// server in --local mode answers with an absolute path on its own disk;
// when that path is visible here the file is copied instead of fetched.
func (a *Adapter) Download(ctx context.Context, file bridge.FileRef, dst string) error {
	bot, err := a.connect()
	if err != nil {
		return err
	}
	if strings.TrimSpace(file.ID) == "" {
		return errors.New("telegram file id is required")
	}
	tgFile, err := bot.GetFile(tgbotapi.FileConfig{FileID: file.ID})
	if err != nil {
		return fmt.Errorf("get file: %w", err)
	}
	if tgFile.FilePath == "" {
		return errors.New("telegram returned no file path")
	}

	log := logger.FromContext(ctx).With(slog.String("adapter", "telegram"))
	if filepath.IsAbs(tgFile.FilePath) {
		if _, err := os.Stat(tgFile.FilePath); err == nil {
			log.Debug("copying local file", slog.String("path", tgFile.FilePath))
			return copyFile(tgFile.FilePath, dst)
		}
	}
	log.Debug("downloading file", slog.String("file_path", tgFile.FilePath))
	return a.fetch(ctx, a.fileURL(tgFile), dst)
}

func (a *Adapter) fileURL(f tgbotapi.File) string {
	if a.apiURL == "" {
		return f.Link(a.token)
	}
	return fmt.Sprintf("%s/file/bot%s/%s", a.apiURL, a.token, strings.TrimLeft(f.FilePath, "/"))
}

func (a *Adapter) fetch(ctx context.Context, url, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("download file: %w", redactToken(err, a.token))
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download file: HTTP %d", resp.StatusCode)
	}
	return writeFile(dst, resp.Body)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		_ = in.Close()
	}()
	return writeFile(dst, in)
}

func writeFile(dst string, r io.Reader) error {
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return out.Close()
}

// redactToken keeps the bot token out of logged URLs.
func redactToken(err error, token string) error {
	if token == "" || !strings.Contains(err.Error(), token) {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), token, "<token>"))
}
