package media

import (
	"crypto/sha1" //nolint:gosec // Immich identifies assets by SHA-1.
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// ChecksumChunkSize bounds how much of a file is held in memory while hashing.
const ChecksumChunkSize = 64 * 1024

// SHA1File returns the hex SHA-1 of the file at path.
func SHA1File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()
	return SHA1Reader(f)
}

// SHA1Reader hashes r in ChecksumChunkSize chunks.
func SHA1Reader(r io.Reader) (string, error) {
	hasher := sha1.New() //nolint:gosec
	buf := make([]byte, ChecksumChunkSize)
	if _, err := io.CopyBuffer(hasher, onlyReader{r}, buf); err != nil {
		return "", fmt.Errorf("hash: %w", err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// onlyReader hides WriterTo so io.CopyBuffer really uses the fixed buffer.
type onlyReader struct {
	io.Reader
}
