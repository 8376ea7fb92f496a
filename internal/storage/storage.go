// Package storage keeps the images uploaded with recipes. Two drivers exist:
// LocalStore writes under a directory served at /uploads/images, and
// S3Store puts objects in a bucket.
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/xid"
)

// ImageStore saves and removes recipe images. The string Save returns is
// what the recipe's image field holds, and what Delete accepts back.
type ImageStore interface {
	Save(ctx context.Context, ext string, r io.Reader) (string, error)
	Delete(ctx context.Context, path string) error
}

// AllowedExtensions are the image types accepted on upload, keyed by file
// extension, with the content type each is stored under.
var AllowedExtensions = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
}

// keyPrefix is shared by both drivers so a stored path looks the same
// whichever one wrote it.
const keyPrefix = "uploads/images/"

// newKey returns a fresh object key such as "uploads/images/<xid>.png".
func newKey(ext string) (string, error) {
	ext = strings.ToLower(ext)
	if _, ok := AllowedExtensions[ext]; !ok {
		return "", fmt.Errorf("storage: unsupported image type %q", ext)
	}
	return keyPrefix + xid.New().String() + ext, nil
}
