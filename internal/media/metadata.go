package media

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	mp4 "github.com/abema/go-mp4"
	"github.com/rwcarlsen/goexif/exif"
)

// exifLayout is the EXIF date format. It carries no zone.
const exifLayout = "2006:01:02 15:04:05"

// mp4EpochOffset is the number of seconds between 1904-01-01 and 1970-01-01.
const mp4EpochOffset = 2082844800

// Timestamp sources reported by Resolver.
const (
	SourceEXIF    = "exif"
	SourceMP4     = "mp4"
	SourceMessage = "message"
	SourceClock   = "clock"
)

// DateSource extracts a creation time from files of one Kind.
// Any error, ErrNoTimestamp included, passes the turn to the next source.
type DateSource struct {
	Name    string
	Kind    Kind
	Extract func(path string) (time.Time, error)
}

// Resolution is the creation time picked for an upload and where it came from.
type Resolution struct {
	At     time.Time
	Source string
}

// Resolver walks its date sources, then the message time, then the clock.
type Resolver struct {
	sources []DateSource
	now     func() time.Time
	logger  *slog.Logger
}

// DefaultDateSources reads EXIF for images and mvhd for ISO-BMFF videos.
func DefaultDateSources() []DateSource {
	return []DateSource{
		{Name: SourceEXIF, Kind: KindImage, Extract: ImageCaptureTime},
		{Name: SourceMP4, Kind: KindVideo, Extract: VideoCreationTime},
	}
}

// NewResolver creates a resolver with the default sources and the wall clock.
func NewResolver(log *slog.Logger) *Resolver {
	return NewResolverWith(log, time.Now, DefaultDateSources()...)
}

// NewResolverWith creates a resolver with an explicit clock and sources.
func NewResolverWith(log *slog.Logger, now func() time.Time, sources ...DateSource) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Resolver{
		sources: sources,
		now:     now,
		logger:  log.With(slog.String("service", "metadata")),
	}
}

// CreatedAt picks the creation time of the file at path. fallback is the
// forwarded or received time of the message; a zero fallback is skipped.
func (r *Resolver) CreatedAt(path string, kind Kind, fallback time.Time) Resolution {
	for _, src := range r.sources {
		if src.Kind != kind || src.Extract == nil {
			continue
		}
		at, err := src.Extract(path)
		if err != nil {
			r.logger.Debug("date source yielded nothing",
				slog.String("source", src.Name),
				slog.String("path", path),
				slog.Any("error", err))
			continue
		}
		return Resolution{At: at, Source: src.Name}
	}
	if !fallback.IsZero() {
		return Resolution{At: fallback, Source: SourceMessage}
	}
	return Resolution{At: r.now(), Source: SourceClock}
}

// ResolveCreatedAt is CreatedAt rendered with FormatTimestamp.
func (r *Resolver) ResolveCreatedAt(path string, kind Kind, fallback time.Time) string {
	return FormatTimestamp(r.CreatedAt(path, kind, fallback).At)
}

// FormatTimestamp renders t in UTC as YYYY-MM-DDTHH:MM:SS.mmmZ, truncating
// to milliseconds. EXIF times are parsed without a zone and so keep their
// camera wall clock under the Z label.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000") + "Z"
}

// ImageCaptureTime reads DateTimeOriginal, falling back to DateTime.
// Only a bounds-checked EXIF block reaches the decoder.
func ImageCaptureTime(path string) (at time.Time, err error) {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, err
	}
	defer func() {
		_ = f.Close()
	}()

	raw, err := readTIFF(f)
	if err != nil {
		return time.Time{}, err
	}
	if err := checkTIFF(raw); err != nil {
		return time.Time{}, err
	}

	defer func() {
		if r := recover(); r != nil {
			at, err = time.Time{}, fmt.Errorf("%w: decoder panic: %v", ErrMalformedEXIF, r)
		}
	}()
	x, err := exif.Decode(bytes.NewReader(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("decode exif: %w", err)
	}
	for _, field := range []exif.FieldName{exif.DateTimeOriginal, exif.DateTime} {
		tag, err := x.Get(field)
		if err != nil {
			continue
		}
		value, err := tag.StringVal()
		if err != nil {
			continue
		}
		value = strings.TrimSpace(strings.TrimRight(value, "\x00"))
		at, err := time.Parse(exifLayout, value)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse %s %q: %w", field, value, err)
		}
		return at, nil
	}
	return time.Time{}, ErrNoTimestamp
}

// VideoCreationTime reads the movie header creation time of MP4/MOV files.
func VideoCreationTime(path string) (time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, err
	}
	defer func() {
		_ = f.Close()
	}()

	boxes, err := mp4.ExtractBoxWithPayload(f, nil, mp4.BoxPath{mp4.BoxTypeMoov(), mp4.BoxTypeMvhd()})
	if err != nil {
		return time.Time{}, fmt.Errorf("read mp4 boxes: %w", err)
	}
	for _, box := range boxes {
		mvhd, ok := box.Payload.(*mp4.Mvhd)
		if !ok {
			continue
		}
		secs := uint64(mvhd.CreationTimeV0)
		if mvhd.GetVersion() == 1 {
			secs = mvhd.CreationTimeV1
		}
		if secs == 0 {
			return time.Time{}, ErrNoTimestamp
		}
		return time.Unix(int64(secs)-mp4EpochOffset, 0).UTC(), nil
	}
	return time.Time{}, ErrNoTimestamp
}
