package documents

import (
	"strings"
	"time"
)

// BlockKind enum
type BlockKind string

const (
	BlockHeading    BlockKind = "heading"
	BlockParagraph  BlockKind = "paragraph"
	BlockBulletList BlockKind = "bullet_list"
	BlockPageBreak  BlockKind = "page_break"
)

// Font sizes in points.
const (
	BodyFontSize = 11
	MetaFontSize = 9
)

// Block is one structural element of a rendered document.
type Block struct {
	Kind  BlockKind
	Level int      // headings only
	Text  string   // headings and paragraphs
	Size  int      // paragraphs, 0 means template default
	Items []string // bullet lists
}

// Document is the in-memory model handed to an Encoder.
type Document struct {
	Blocks []Block
}

func (d *Document) heading(text string, level int) {
	d.Blocks = append(d.Blocks, Block{Kind: BlockHeading, Level: level, Text: text})
}

func (d *Document) paragraph(text string, size int) {
	d.Blocks = append(d.Blocks, Block{Kind: BlockParagraph, Text: text, Size: size})
}

// Render builds the document model for req. It is pure apart from using now
// for the date in the meta line.
func Render(req CreateRequest, now time.Time) *Document {
	doc := &Document{}

	doc.heading(req.Title, 1)

	var meta []string
	if req.Candidate != nil && req.Candidate.FullName != "" {
		meta = append(meta, req.Candidate.FullName)
	}
	meta = append(meta, now.Format("2006-01-02"))
	meta = append(meta, "Language: "+req.Language)
	doc.paragraph(strings.Join(meta, " | "), MetaFontSize)
	doc.paragraph("", 0)

	RenderMarkdown(doc, req.Content.BodyMarkdown)

	if len(req.Content.Sections) > 0 {
		doc.Blocks = append(doc.Blocks, Block{Kind: BlockPageBreak})
		doc.heading("Additional Sections", 2)
		for _, s := range req.Content.Sections {
			if s.Heading != "" {
				doc.heading(s.Heading, 3)
			}
			RenderMarkdown(doc, s.Text)
		}
	}
	return doc
}

// RenderMarkdown appends the blocks for a constrained markdown subset:
// "# " and "## " headings, "- " bullets and plain paragraphs. Consecutive
// bullets become a single list, flushed by the next non-bullet line.
func RenderMarkdown(doc *Document, text string) {
	var bullets []string
	flush := func() {
		if len(bullets) == 0 {
			return
		}
		doc.Blocks = append(doc.Blocks, Block{Kind: BlockBulletList, Items: bullets})
		bullets = nil
	}

	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line = strings.TrimRight(line, " \t\r")

		switch {
		case strings.TrimSpace(line) == "":
			flush()
			doc.paragraph("", 0)
		case strings.HasPrefix(line, "## "):
			flush()
			doc.heading(line[3:], 2)
		case strings.HasPrefix(line, "# "):
			flush()
			doc.heading(line[2:], 1)
		case strings.HasPrefix(line, "- "):
			bullets = append(bullets, line[2:])
		default:
			flush()
			doc.paragraph(line, BodyFontSize)
		}
	}
	flush()
}
