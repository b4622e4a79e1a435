package documents

import (
	"encoding/hex"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	// MaxDisplayNameLen caps the sanitized title, in runes.
	MaxDisplayNameLen = 120
	// MaxDisplayNameBytes keeps StoredNameFor within the 255-byte file name
	// limit of common filesystems, whatever the script of the title.
	MaxDisplayNameBytes = 200
	// DefaultDisplayName is used when nothing survives sanitization.
	DefaultDisplayName = "document"
	// IDLength is the length of a minted identifier (hex of a UUIDv4).
	IDLength = 32

	idSeparator = "_"
)

// Name bundles everything minted for one artifact before it is stored.
type Name struct {
	ID          string
	DisplayName string
	StoredName  string
}

// Mint derives a fresh identifier and the disk names for title.
// Identifiers come from a UUIDv4 (122 random bits from crypto/rand).
func Mint(title string) Name {
	u := uuid.New()
	id := hex.EncodeToString(u[:])
	display := SanitizeTitle(title)
	return Name{
		ID:          id,
		DisplayName: display,
		StoredName:  StoredNameFor(display, id),
	}
}

// StoredNameFor embeds the full identifier as the terminal segment.
func StoredNameFor(display, id string) string {
	return display + idSeparator + id + Extension
}

// SanitizeTitle keeps letters, digits, '-', '_', '.' and spaces, collapses
// whitespace runs to '_' and caps the length.
func SanitizeTitle(title string) string {
	var b strings.Builder
	pendingSpace := false
	for _, r := range strings.TrimSpace(title) {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = true
			continue
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_', r == '.':
		default:
			continue
		}
		if pendingSpace && b.Len() > 0 {
			b.WriteString(idSeparator)
		}
		pendingSpace = false
		b.WriteRune(r)
	}

	// no hidden files, no "." / ".." names
	name := strings.TrimLeft(b.String(), ".")
	if runes := []rune(name); len(runes) > MaxDisplayNameLen {
		name = string(runes[:MaxDisplayNameLen])
	}
	name = truncateBytes(name, MaxDisplayNameBytes)
	if name == "" {
		return DefaultDisplayName
	}
	return name
}

// truncateBytes cuts s to at most n bytes without splitting a rune.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// ValidID reports whether id has the shape Mint produces.
func ValidID(id string) bool {
	if len(id) != IDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// MatchesID reports whether storedName is the stored name of id: either
// exactly "<id>.docx" or ending in "_<id>.docx".
func MatchesID(storedName, id string) bool {
	if storedName == id+Extension {
		return true
	}
	return strings.HasSuffix(storedName, idSeparator+id+Extension)
}

// ParseStoredName recovers the display name and identifier from a stored
// name. ok is false for anything not produced by StoredNameFor, including
// legacy short-identifier names and temp files.
func ParseStoredName(storedName string) (display, id string, ok bool) {
	base, found := strings.CutSuffix(storedName, Extension)
	if !found {
		return "", "", false
	}
	i := strings.LastIndex(base, idSeparator)
	if i < 0 {
		if ValidID(base) {
			return DefaultDisplayName, base, true
		}
		return "", "", false
	}
	display, id = base[:i], base[i+1:]
	if !ValidID(id) {
		return "", "", false
	}
	if display == "" {
		display = DefaultDisplayName
	}
	return display, id, true
}
