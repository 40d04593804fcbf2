package upload

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/LucsL0pes/mini-gymatch/internal/multipart"
)

// MaxSize is the upload ceiling enforced after buffering.
const MaxSize = 6 * 1024 * 1024 // 6MB

var allowedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/heic": true,
	"image/heif": true,
}

// PolicyError is a rejection with a user-facing reason.
type PolicyError struct {
	Reason string
}

func (e *PolicyError) Error() string {
	return e.Reason
}

// Accept validates a decoded file part against the upload policy. Rules are
// checked in order and the first failure wins. The declared content type is
// trusted as-is; magic bytes are not inspected.
func Accept(part *multipart.FilePart) error {
	if part.Size <= 0 {
		return &PolicyError{Reason: "file is empty"}
	}
	if part.Size > MaxSize {
		return &PolicyError{Reason: "file too large (limit 6MB)"}
	}
	if !allowedMIME[strings.ToLower(part.ContentType)] {
		return &PolicyError{Reason: "unsupported file type"}
	}
	return nil
}

// SanitizeFilename strips diacritics via NFKD decomposition and replaces
// everything outside [A-Za-z0-9._-] with underscores, producing a name safe
// to embed in a storage key.
func SanitizeFilename(filename string) string {
	decomposed := norm.NFKD.String(filename)

	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// StorageKey composes the object key for a user's proof upload. The
// timestamp-based scheme is not collision-proof within one millisecond; the
// record only ever tracks the latest upload, so a collision overwrites.
func StorageKey(userID, filename string, now time.Time) string {
	name := SanitizeFilename(filename)
	if name == "" {
		name = "proof"
	}
	return fmt.Sprintf("%s/%d-%s", userID, now.UnixMilli(), name)
}
