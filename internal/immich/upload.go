package immich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/memohai/immich-bridge/internal/logger"
	"github.com/memohai/immich-bridge/internal/media"
)

// maxResponseBody caps how much of an error body is kept for display.
const maxResponseBody = 64 * 1024

// Upload posts the file to /assets as multipart form data. The body is
// streamed from disk. A returned error means no answer was interpreted
// (network failure, unreadable file); server refusals are Outcomes.
func (c *Client) Upload(ctx context.Context, in UploadRequest) (Outcome, error) {
	f, err := os.Open(in.Path)
	if err != nil {
		return Outcome{}, fmt.Errorf("open upload: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	info, err := f.Stat()
	if err != nil {
		return Outcome{}, fmt.Errorf("stat upload: %w", err)
	}

	fileName := strings.TrimSpace(in.FileName)
	if fileName == "" {
		fileName = filepath.Base(in.Path)
	}
	createdAt := media.FormatTimestamp(in.CreatedAt)
	fields := [][2]string{
		{"deviceAssetId", fmt.Sprintf("%s-%d", fileName, info.Size())},
		{"deviceId", DeviceID},
		{"fileCreatedAt", createdAt},
		{"fileModifiedAt", createdAt},
		{"isFavorite", "false"},
		{"visibility", "timeline"},
	}

	pr, pw := io.Pipe()
	defer func() {
		_ = pr.Close()
	}()
	form := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeForm(form, fields, fileName, f))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/assets", pr)
	if err != nil {
		_ = pr.CloseWithError(err)
		return Outcome{}, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("x-immich-checksum", in.Checksum)

	logger.FromContext(ctx).Info("uploading asset",
		slog.String("client", "immich"),
		slog.String("file_name", fileName),
		slog.Int64("size", info.Size()),
		slog.String("created_at", createdAt))

	resp, err := c.http.Do(req)
	if err != nil {
		_ = pr.CloseWithError(err)
		return Outcome{}, fmt.Errorf("post asset: %w", err)
	}
	defer drain(resp)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return Outcome{}, fmt.Errorf("read upload response: %w", err)
	}
	return interpretUpload(resp.StatusCode, body), nil
}

func writeForm(form *multipart.Writer, fields [][2]string, fileName string, content io.Reader) error {
	for _, kv := range fields {
		if err := form.WriteField(kv[0], kv[1]); err != nil {
			return err
		}
	}
	part, err := form.CreateFormFile("assetData", fileName)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, content); err != nil {
		return err
	}
	return form.Close()
}

// interpretUpload maps the /assets response to an Outcome.
func interpretUpload(status int, body []byte) Outcome {
	var parsed struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	switch status {
	case http.StatusCreated:
		_ = json.Unmarshal(body, &parsed)
		return Outcome{Kind: OutcomeCreated, AssetID: parsed.ID, Status: status}
	case http.StatusOK:
		_ = json.Unmarshal(body, &parsed)
		if parsed.Status == "duplicate" {
			return Outcome{Kind: OutcomeDuplicate, AssetID: parsed.ID, Status: status}
		}
		return Outcome{Kind: OutcomeCreated, AssetID: parsed.ID, Status: status}
	default:
		return Outcome{Kind: OutcomeFailed, Message: string(body), Status: status}
	}
}
