package storage

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/properbooky/internal/common"
	"github.com/dmitrijs2005/properbooky/internal/validator"
)

const maxBaseNameRunes = 64

// randSuffix is a seam for tests.
var randSuffix = func() (string, error) { return common.MakeRandHexString(4) }

// ObjectKey builds "{ownerID}/{unixMillis}-{random}-{sanitized name}.{ext}".
// The extension comes from the media type, not from the client's file name.
func ObjectKey(ownerID, name, mediaType string, now time.Time) (string, error) {
	ext, ok := validator.ExtensionFor(mediaType)
	if !ok {
		return "", fmt.Errorf("%w: no extension for %q", common.ErrValidation, mediaType)
	}
	suffix, err := randSuffix()
	if err != nil {
		return "", fmt.Errorf("random suffix: %w", err)
	}
	return fmt.Sprintf("%s/%d-%s-%s.%s", ownerID, now.UnixMilli(), suffix, SanitizeName(name), ext), nil
}

// SanitizeName strips the extension and replaces every rune that is not an
// ASCII letter or digit with '_'.
func SanitizeName(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))

	var b strings.Builder
	n := 0
	for _, r := range base {
		if n == maxBaseNameRunes {
			break
		}
		if r < utf8.RuneSelf && (r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
		n++
	}
	if b.Len() == 0 {
		return "book"
	}
	return b.String()
}
