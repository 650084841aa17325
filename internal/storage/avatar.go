package storage

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const MaxAvatarBytes = 2 * 1024 * 1024

var (
	ErrNotDataURI       = errors.New("not a data URI")
	ErrUnsupportedImage = errors.New("avatar must be a png, jpeg, gif or webp image")
	ErrAvatarTooLarge   = fmt.Errorf("avatar exceeds %d bytes", MaxAvatarBytes)
)

var avatarContentTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
}

// DecodeImageDataURI parses data:image/<type>;base64,<payload>.
func DecodeImageDataURI(raw string) (contentType string, data []byte, err error) {
	if !strings.HasPrefix(raw, "data:") {
		return "", nil, ErrNotDataURI
	}
	header, payload, found := strings.Cut(strings.TrimPrefix(raw, "data:"), ",")
	if !found || !strings.HasSuffix(header, ";base64") {
		return "", nil, ErrNotDataURI
	}

	contentType = strings.ToLower(strings.TrimSuffix(header, ";base64"))
	if !avatarContentTypes[contentType] {
		return "", nil, ErrUnsupportedImage
	}
	if base64.StdEncoding.DecodedLen(len(payload)) > MaxAvatarBytes+3 {
		return "", nil, ErrAvatarTooLarge
	}

	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("invalid base64 payload: %w", err)
	}
	if len(data) > MaxAvatarBytes {
		return "", nil, ErrAvatarTooLarge
	}
	return contentType, data, nil
}

// AvatarObjectName is the single object key per user; uploads overwrite it and
// the content type travels as object metadata.
func AvatarObjectName(userID uuid.UUID) string {
	return fmt.Sprintf("avatars/%s", userID)
}
