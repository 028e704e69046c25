// Package media classifies, hashes and dates the files the bridge uploads.
package media

import "errors"

// Kind classifies an inbound file.
type Kind string

const (
	KindImage       Kind = "image"
	KindVideo       Kind = "video"
	KindUnsupported Kind = "unsupported"
)

// ErrNoTimestamp means a date source found no usable timestamp in the file.
var ErrNoTimestamp = errors.New("no timestamp in file metadata")

// ImageExtensions lists extensions accepted as images.
var ImageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tiff", ".tif", ".heic", ".heif", ".webp", ".dng"}

// VideoExtensions lists extensions accepted as videos.
var VideoExtensions = []string{".mp4", ".mov", ".m4v", ".3gp", ".avi", ".mkv", ".webm", ".mts", ".m2ts", ".wmv"}

// SupportedTypesDescription is the human readable summary shown by /files.
const SupportedTypesDescription = "Images: JPG, PNG, GIF, BMP, TIFF, HEIC, WEBP, DNG\n" +
	"Videos: MP4, MOV, M4V, 3GP, AVI, MKV, WEBM, MTS, WMV"
