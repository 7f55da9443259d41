package image

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/davegraham/imagegen/pkg/models"
)

// DecodePayload turns a provider image string into raw bytes. Two
// encodings are recognized: a data URL (data:image/png;base64,...) and
// bare base64. The MIME type is taken from the data URL header when
// present, otherwise left empty for the payload's png default.
func DecodePayload(s string) (*models.ImagePayload, error) {
	var mime string

	if strings.HasPrefix(s, "data:") {
		header, rest, ok := strings.Cut(s, ",")
		if !ok {
			return nil, fmt.Errorf("malformed data URL")
		}
		mime = strings.TrimPrefix(strings.SplitN(header, ";", 2)[0], "data:")
		s = rest
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64: %w", err)
	}

	return &models.ImagePayload{Data: data, MIME: mime}, nil
}

var mimeByExt = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
	".gif":  "image/gif",
}

// MIMEForPath infers a MIME type from a filename extension, defaulting
// to image/png.
func MIMEForPath(path string) string {
	if mime, ok := mimeByExt[strings.ToLower(filepath.Ext(path))]; ok {
		return mime
	}
	return "image/png"
}

type Saver struct {
	now func() time.Time
}

func NewSaver() *Saver {
	return &Saver{now: time.Now}
}

func NewSaverWithClock(now func() time.Time) *Saver {
	return &Saver{now: now}
}

// Save writes the payload under dir as <prefix>_<timestamp>_<NNN>.<ext>.
// The 3-digit counter is scoped to files sharing the same prefix,
// second-precision timestamp, and extension, so two saves within one
// second get distinct names.
func (s *Saver) Save(payload *models.ImagePayload, dir, prefix string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	ext := payload.Ext()
	timestamp := s.now().Format("20060102_150405")

	pattern := filepath.Join(dir, fmt.Sprintf("%s_%s_*.%s", prefix, timestamp, ext))
	existing, err := filepath.Glob(pattern)
	if err != nil {
		return "", fmt.Errorf("failed to scan output directory: %w", err)
	}

	filename := fmt.Sprintf("%s_%s_%03d.%s", prefix, timestamp, len(existing)+1, ext)
	path := filepath.Join(dir, filename)

	if err := os.WriteFile(path, payload.Data, 0644); err != nil {
		return "", fmt.Errorf("failed to write image: %w", err)
	}

	return path, nil
}
