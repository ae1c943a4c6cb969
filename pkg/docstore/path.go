package docstore

import (
	"sort"
	"strings"

	pkgerrors "github.com/angelmondragon/qrcatalog-backend/pkg/errors"
)

const forbiddenKeyChars = ".$#[]"

// Join builds a slash separated path from its segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// SplitPath validates path and returns its segments. The empty path addresses the root.
func SplitPath(path string) ([]string, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil, nil
	}
	segments := strings.Split(trimmed, "/")
	for _, seg := range segments {
		if err := ValidateKey(seg); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid document path").
				WithDetails(map[string]any{"path": path})
		}
	}
	return segments, nil
}

// ValidateKey rejects keys the document store cannot hold.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "empty path segment")
	}
	if strings.ContainsAny(key, forbiddenKeyChars+"/") {
		return pkgerrors.New(pkgerrors.CodeValidation, "path segment contains a forbidden character").
			WithDetails(map[string]any{"segment": key})
	}
	for _, r := range key {
		if r < 0x20 || r == 0x7f {
			return pkgerrors.New(pkgerrors.CodeValidation, "path segment contains a control character").
				WithDetails(map[string]any{"segment": key})
		}
	}
	return nil
}

var keyEscaper = strings.NewReplacer(
	"%", "%25",
	".", "%2E",
	"$", "%24",
	"#", "%23",
	"[", "%5B",
	"]", "%5D",
	"/", "%2F",
)

var keyUnescaper = strings.NewReplacer(
	"%2E", ".",
	"%24", "$",
	"%23", "#",
	"%5B", "[",
	"%5D", "]",
	"%2F", "/",
	"%25", "%",
)

// EscapeKey turns free text (e.g. a product name) into a legal key. It is reversible via UnescapeKey.
func EscapeKey(text string) string {
	return keyEscaper.Replace(text)
}

// UnescapeKey reverses EscapeKey.
func UnescapeKey(key string) string {
	return keyUnescaper.Replace(key)
}

// SortedKeys sorts keys in place and returns them.
func SortedKeys(keys []string) []string {
	sort.Strings(keys)
	return keys
}
