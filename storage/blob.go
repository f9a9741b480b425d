package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrNotAnImage is returned when an upload does not sniff as an image.
	ErrNotAnImage = errors.New("only image files are allowed")
	// ErrTooLarge is returned when an upload exceeds the configured size.
	ErrTooLarge = errors.New("file is too large")
)

// BlobStore holds uploaded images and hands back a URL clients can load them from.
type BlobStore interface {
	Upload(ctx context.Context, fh *multipart.FileHeader) (string, error)
	// DeleteByURL removes the object behind url. URLs the store did not issue are ignored.
	DeleteByURL(ctx context.Context, url string) error
}

// CheckImage verifies the size limit and sniffs the first bytes of the upload.
// It returns the detected content type.
func CheckImage(fh *multipart.FileHeader, maxBytes int64) (string, error) {
	if maxBytes > 0 && fh.Size > maxBytes {
		return "", fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, fh.Size, maxBytes)
	}

	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}

	contentType := http.DetectContentType(head[:n])
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("%w: got %s", ErrNotAnImage, contentType)
	}
	return contentType, nil
}

// objectName builds "{uuid}_{filename}" from the client file name with any directory part dropped.
func objectName(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	base = strings.Map(func(r rune) rune {
		switch {
		case r == ' ':
			return '_'
		case r < 0x20, r == '/', r == '?', r == '#', r == '%':
			return -1
		}
		return r
	}, base)
	if base == "" || base == "." || base == ".." {
		base = "upload"
	}
	return uuid.NewString() + "_" + base
}
