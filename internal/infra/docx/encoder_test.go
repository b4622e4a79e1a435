package docx

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"
	"testing"

	domain "github.com/bryanwahyu/docgen/internal/domain/documents"
)

func documentXML(t *testing.T, data []byte) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("not a zip container: %v", err)
	}
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open document.xml: %v", err)
		}
		defer rc.Close()
		body, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("read document.xml: %v", err)
		}
		return string(body)
	}
	t.Fatalf("word/document.xml missing")
	return ""
}

func TestEncodeStructure(t *testing.T) {
	doc := &domain.Document{}
	domain.RenderMarkdown(doc, "# Intro\nHello\n- Point A\n- Point B")

	data, err := NewEncoder().Encode(doc)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	xml := documentXML(t, data)

	for _, want := range []string{"Intro", "Hello", "Point A", "Point B"} {
		if !strings.Contains(xml, want) {
			t.Fatalf("document.xml missing %q", want)
		}
	}
	if n := strings.Count(xml, `w:val="Heading1"`); n != 1 {
		t.Fatalf("expected 1 heading, got %d", n)
	}
	if n := strings.Count(xml, `w:val="`+bulletStyle+`"`); n != 2 {
		t.Fatalf("expected 2 bullet paragraphs, got %d", n)
	}
	if strings.Index(xml, "Hello") > strings.Index(xml, "Point A") {
		t.Fatalf("paragraph rendered after bullets")
	}
}

func TestEncodePageBreakAndEmptyParagraph(t *testing.T) {
	doc := &domain.Document{Blocks: []domain.Block{
		{Kind: domain.BlockParagraph},
		{Kind: domain.BlockPageBreak},
		{Kind: domain.BlockHeading, Level: 3, Text: "Education"},
	}}
	data, err := NewEncoder().Encode(doc)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	xml := documentXML(t, data)
	if !strings.Contains(xml, `w:type="page"`) {
		t.Fatalf("page break missing")
	}
	if !strings.Contains(xml, `w:val="Heading3"`) {
		t.Fatalf("heading 3 missing")
	}
}

func TestEncodeRejectsUnknownBlock(t *testing.T) {
	_, err := NewEncoder().Encode(&domain.Document{Blocks: []domain.Block{{Kind: "table"}}})
	if err == nil {
		t.Fatalf("expected error for unknown block kind")
	}
}
