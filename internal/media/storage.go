// Package media stores uploaded chat attachments on local disk.
package media

import (
	"context"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"dm-service/internal/apperr"
	"dm-service/internal/models"
)

const (
	DefaultMaxBytes = 50 << 20
	PublicPrefix    = "/uploads/chat/"
)

var allowedTypes = regexp.MustCompile(`jpeg|jpg|png|gif|mp4|mov|avi|mp3|wav|ogg|m4a|aac|webm|3gp`)

// Upload is a file received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.ReadSeeker
}

// Stored describes a saved attachment.
type Stored struct {
	Ref         string
	Kind        models.MessageKind
	ContentType string
	Size        int64
}

// LocalStorage writes attachments under Dir and serves them from PublicPrefix.
type LocalStorage struct {
	Dir      string
	MaxBytes int64
}

func NewLocalStorage(dir string, maxBytes int64) (*LocalStorage, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create media dir")
	}
	return &LocalStorage{Dir: dir, MaxBytes: maxBytes}, nil
}

// SaveMultipart opens a multipart file header and stores it.
func (s *LocalStorage) SaveMultipart(ctx context.Context, fh *multipart.FileHeader) (Stored, error) {
	f, err := fh.Open()
	if err != nil {
		return Stored{}, errors.Wrap(err, "open upload")
	}
	defer f.Close()

	return s.Save(ctx, Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        f,
	})
}

// Save checks the size and type rules and writes the file as <uuid><ext>.
func (s *LocalStorage) Save(ctx context.Context, up Upload) (Stored, error) {
	if up.Size > s.MaxBytes {
		return Stored{}, apperr.Validation("file too large")
	}

	sniffed, err := mimetype.DetectReader(up.Body)
	if err != nil {
		return Stored{}, errors.Wrap(err, "detect media type")
	}
	if _, err := up.Body.Seek(0, io.SeekStart); err != nil {
		return Stored{}, errors.Wrap(err, "rewind upload")
	}

	ext := strings.ToLower(filepath.Ext(up.Filename))
	if !Allowed(ext, up.ContentType, sniffed.String()) {
		return Stored{}, apperr.Validation("only images, videos, and audio files are allowed")
	}
	if ext == "" {
		ext = sniffed.Extension()
		if declared := mimetype.Lookup(up.ContentType); declared != nil && declared.Extension() != "" {
			ext = declared.Extension()
		}
	}

	name := uuid.NewString() + ext
	dst, err := os.Create(filepath.Join(s.Dir, name))
	if err != nil {
		return Stored{}, errors.Wrap(err, "create media file")
	}
	defer dst.Close()

	written, err := io.Copy(dst, io.LimitReader(up.Body, s.MaxBytes+1))
	if err != nil {
		_ = os.Remove(dst.Name())
		return Stored{}, errors.Wrap(err, "write media file")
	}
	if written > s.MaxBytes {
		_ = os.Remove(dst.Name())
		return Stored{}, apperr.Validation("file too large")
	}

	return Stored{
		Ref:         PublicPrefix + name,
		Kind:        InferKind(sniffed.String(), up.ContentType),
		ContentType: sniffed.String(),
		Size:        written,
	}, nil
}

// Remove deletes a stored attachment by its public ref. Missing files are not an error.
func (s *LocalStorage) Remove(_ context.Context, ref string) error {
	name := filepath.Base(strings.TrimPrefix(ref, PublicPrefix))
	if name == "." || name == string(filepath.Separator) || name == "" {
		return apperr.Validation("invalid media ref")
	}
	err := os.Remove(filepath.Join(s.Dir, name))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove media file")
	}
	return nil
}

// Allowed accepts a file when either its extension or one of its media types
// names an allowed format.
func Allowed(ext string, mediaTypes ...string) bool {
	if ext != "" && allowedTypes.MatchString(strings.TrimPrefix(ext, ".")) {
		return true
	}
	for _, mt := range mediaTypes {
		if mt != "" && allowedTypes.MatchString(strings.ToLower(mt)) {
			return true
		}
	}
	return false
}

// InferKind maps the first recognizable media type to a message kind,
// defaulting to image.
func InferKind(mediaTypes ...string) models.MessageKind {
	for _, mt := range mediaTypes {
		switch {
		case strings.HasPrefix(mt, "image/"):
			return models.KindImage
		case strings.HasPrefix(mt, "video/"):
			return models.KindVideo
		case strings.HasPrefix(mt, "audio/"):
			return models.KindVoice
		}
	}
	return models.KindImage
}
