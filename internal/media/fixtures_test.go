package media

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/memohai/immich-bridge/internal/media/mediatest"
)

var (
	exifJPEG        = mediatest.ExifJPEG
	mp4WithCreation = mediatest.MP4WithCreation
)

const (
	tagDateTime         = mediatest.TagDateTime
	tagDateTimeOriginal = mediatest.TagDateTimeOriginal
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func writeBytes(path string, data []byte) error {
	return os.WriteFile(path, data, 0o600)
}
