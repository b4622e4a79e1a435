package documents

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestMintIdentifiersAreUnique(t *testing.T) {
	const n = 10000
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		name := Mint("Cover Letter")
		if !ValidID(name.ID) {
			t.Fatalf("minted invalid id %q", name.ID)
		}
		if _, dup := seen[name.ID]; dup {
			t.Fatalf("duplicate id after %d mints: %s", i, name.ID)
		}
		seen[name.ID] = struct{}{}
	}
}

func TestMintStoredNameEncodesID(t *testing.T) {
	name := Mint("Cover Letter")
	if name.DisplayName != "Cover_Letter" {
		t.Fatalf("unexpected display name %q", name.DisplayName)
	}
	if name.StoredName != "Cover_Letter_"+name.ID+".docx" {
		t.Fatalf("unexpected stored name %q", name.StoredName)
	}
	if !MatchesID(name.StoredName, name.ID) {
		t.Fatalf("stored name does not match its own id")
	}
	display, id, ok := ParseStoredName(name.StoredName)
	if !ok || id != name.ID || display != name.DisplayName {
		t.Fatalf("parse mismatch: %q %q %v", display, id, ok)
	}
}

func TestSanitizeTitle(t *testing.T) {
	cases := map[string]string{
		"My/Bad:Title??":        "MyBadTitle",
		"  Senior   Engineer  ": "Senior_Engineer",
		"../../etc/passwd":      "etcpasswd",
		"..":                    DefaultDisplayName,
		"":                      DefaultDisplayName,
		"???":                   DefaultDisplayName,
		"CV - Ana.María":        "CV_-_Ana.María",
	}
	for in, want := range cases {
		if got := SanitizeTitle(in); got != want {
			t.Fatalf("SanitizeTitle(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSanitizeTitleUnsafeCharsAndCap(t *testing.T) {
	got := SanitizeTitle("My/Bad:Title??" + strings.Repeat("x", 500))
	if strings.ContainsAny(got, `/\:*?"<>|`) {
		t.Fatalf("path-unsafe characters left in %q", got)
	}
	if n := utf8.RuneCountInString(got); n > MaxDisplayNameLen {
		t.Fatalf("display name too long: %d", n)
	}

	for _, title := range []string{strings.Repeat("履", 200), strings.Repeat("😀", 150), strings.Repeat("é", 300)} {
		display := SanitizeTitle(title)
		if !utf8.ValidString(display) {
			t.Fatalf("truncation split a rune: %q", display)
		}
		if len(display) > MaxDisplayNameBytes {
			t.Fatalf("display name is %d bytes", len(display))
		}
		if n := len(StoredNameFor(display, strings.Repeat("a", IDLength))); n > 255 {
			t.Fatalf("stored name is %d bytes, over the file name limit", n)
		}
	}
}

func TestMatchesIDIsExact(t *testing.T) {
	id := strings.Repeat("a", 32)
	other := strings.Repeat("b", 32)
	cases := []struct {
		name string
		want bool
	}{
		{"Title_" + id + ".docx", true},
		{id + ".docx", true},
		{"Title_" + id + "_" + other + ".docx", false},
		{"Title_x" + id + ".docx", false},
		{"Title_" + id[:8] + ".docx", false},
		{"Title_" + id + ".docx.tmp", false},
	}
	for _, c := range cases {
		if got := MatchesID(c.name, id); got != c.want {
			t.Fatalf("MatchesID(%q) = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestParseStoredNameRejectsLegacyNames(t *testing.T) {
	for _, name := range []string{
		"Cover_Letter_1a2b3c4d.docx",
		".tmp-12345",
		"notes.txt",
		"Cover_Letter_" + strings.Repeat("G", 32) + ".docx",
	} {
		if _, _, ok := ParseStoredName(name); ok {
			t.Fatalf("expected %q to be rejected", name)
		}
	}
}

func TestValidID(t *testing.T) {
	if ValidID("") || ValidID("abc") || ValidID(strings.Repeat("A", 32)) {
		t.Fatalf("accepted malformed id")
	}
	if ValidID("../" + strings.Repeat("a", 29)) {
		t.Fatalf("accepted traversal id")
	}
	if !ValidID(strings.Repeat("0f", 16)) {
		t.Fatalf("rejected valid id")
	}
}
