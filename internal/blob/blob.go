// Package blob is the Blob Store port for profile images.
package blob

import (
	"context"
	"fmt"
	"path"
	"strings"

	id "clocklayer/pkg/domain"
	dErrors "clocklayer/pkg/domain-errors"
)

// Store uploads an object and returns its public URL.
type Store interface {
	Upload(ctx context.Context, objectPath, contentType string, data []byte) (string, error)
}

// MaxImageBytes bounds profile image uploads.
const MaxImageBytes = 5 << 20

// ProfileImagePath returns profile_pictures/<identity>/<file>. The file name
// is reduced to its base name so callers cannot escape the identity prefix.
func ProfileImagePath(identityID id.IdentityID, fileName string) (string, error) {
	base := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if base == "." || base == "/" || base == ".." || strings.TrimSpace(base) == "" {
		return "", dErrors.New(dErrors.CodeValidation, "image file name is required")
	}
	return fmt.Sprintf("profile_pictures/%s/%s", identityID, base), nil
}

// AllowedImageType reports whether contentType is accepted for profile images.
func AllowedImageType(contentType string) bool {
	switch contentType {
	case "image/jpeg", "image/png", "image/webp", "image/gif":
		return true
	}
	return false
}
