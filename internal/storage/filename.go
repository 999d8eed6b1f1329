package storage

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// AllowedExtensions is the upload allow-list, lower case without the dot.
var AllowedExtensions = map[string]struct{}{
	"txt": {}, "pdf": {}, "png": {}, "jpg": {}, "jpeg": {}, "gif": {},
	"doc": {}, "docx": {}, "ppt": {}, "pptx": {}, "xls": {}, "xlsx": {},
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// AllowedFile reports whether the text after the final dot is an allowed
// extension (case-insensitive). Names without a dot are rejected.
func AllowedFile(filename string) bool {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 {
		return false
	}
	_, ok := AllowedExtensions[strings.ToLower(filename[idx+1:])]
	return ok
}

// Extension returns the lower-cased extension including the dot, or "".
func Extension(filename string) string {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 {
		return ""
	}
	return strings.ToLower(filename[idx:])
}

// SecureFilename reduces a user supplied name to a flat ASCII name: accents
// are folded, path separators become spaces, whitespace runs become "_",
// anything outside [A-Za-z0-9_.-] is dropped and leading or trailing dots
// and underscores are trimmed. The result may be empty.
func SecureFilename(filename string) string {
	ascii := transform.Chain(norm.NFKD, runes.Remove(runes.Predicate(func(r rune) bool {
		return r > unicode.MaxASCII
	})))
	name, _, err := transform.String(ascii, filename)
	if err != nil {
		return ""
	}

	name = strings.NewReplacer("/", " ", `\`, " ").Replace(name)
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	return strings.Trim(name, "._")
}

// StoredName generates a fresh storage name for an upload: a random UUID plus
// the original extension. It never contains any part of the original name.
func StoredName(originalName string) string {
	return uuid.New().String() + Extension(originalName)
}
