package gallery

import (
	"path"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/text/unicode/norm"
)

// TimestampLayout is the UTC, second-resolution prefix of every object name.
// It sorts lexically in upload order.
const TimestampLayout = "20060102T150405"

const (
	maxFilenameLen = 200
	fallbackBase   = "image"
)

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// Device names that are reserved on Windows; prefixed so the object can be
// downloaded and saved on any client.
var reservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// ObjectName derives the storage name for an upload received at ts.
// Two uploads of the same file within the same second get the same name and
// the later one overwrites the earlier.
func ObjectName(ts time.Time, filename, contentType string) string {
	return ts.UTC().Format(TimestampLayout) + "-" + SanitizeFilename(filename, contentType)
}

// SanitizeFilename reduces a client-supplied filename to a flat, portable
// name: directory components and separators are dropped, non-ASCII letters
// are folded to their ASCII base, and only [A-Za-z0-9_.-] survives. Leading
// and trailing dots and underscores are trimmed. When nothing is left the
// name falls back to "image" plus the extension registered for contentType.
func SanitizeFilename(filename, contentType string) string {
	name := toASCII(norm.NFKD.String(filename))
	name = strings.NewReplacer("/", " ", "\\", " ").Replace(name)
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	name = strings.Trim(name, "._")

	if name != "" && reservedNames[strings.ToUpper(strings.SplitN(name, ".", 2)[0])] {
		name = "_" + name
	}
	if len(name) > maxFilenameLen {
		name = strings.TrimLeft(truncateKeepExt(name), "._")
	}
	if name == "" {
		name = fallbackBase + extensionFor(contentType)
	}
	return name
}

func toASCII(s string) string {
	return strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII || unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

func truncateKeepExt(name string) string {
	ext := path.Ext(name)
	if len(ext) > 16 {
		ext = ""
	}
	base := strings.TrimRight(name[:maxFilenameLen-len(ext)], "._")
	return base + ext
}

func extensionFor(contentType string) string {
	mt, _, _ := strings.Cut(contentType, ";")
	if m := mimetype.Lookup(strings.ToLower(strings.TrimSpace(mt))); m != nil {
		return m.Extension()
	}
	return ""
}
