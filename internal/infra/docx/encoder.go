package docx

import (
	"bytes"
	"fmt"

	"github.com/gomutex/godocx"

	domain "github.com/bryanwahyu/docgen/internal/domain/documents"
)

// bulletStyle is the style id of the bulleted list paragraph in the default template.
const bulletStyle = "ListBullet"

// Encoder writes documents with the godocx default template.
type Encoder struct{}

func NewEncoder() *Encoder { return &Encoder{} }

// Encode implements domain.Encoder.
func (Encoder) Encode(doc *domain.Document) ([]byte, error) {
	out, err := godocx.NewDocument()
	if err != nil {
		return nil, fmt.Errorf("open docx template: %w", err)
	}
	defer out.Close()

	for _, b := range doc.Blocks {
		switch b.Kind {
		case domain.BlockHeading:
			if _, err := out.AddHeading(b.Text, uint(b.Level)); err != nil {
				return nil, fmt.Errorf("heading %q: %w", b.Text, err)
			}
		case domain.BlockParagraph:
			if b.Text == "" {
				out.AddEmptyParagraph()
				continue
			}
			p := out.AddEmptyParagraph()
			run := p.AddText(b.Text)
			if b.Size > 0 {
				run.Size(uint64(b.Size))
			}
		case domain.BlockBulletList:
			for _, item := range b.Items {
				p := out.AddEmptyParagraph()
				p.Style(bulletStyle)
				p.AddText(item).Size(domain.BodyFontSize)
			}
		case domain.BlockPageBreak:
			out.AddPageBreak()
		default:
			return nil, fmt.Errorf("unknown block kind %q", b.Kind)
		}
	}

	var buf bytes.Buffer
	if err := out.Write(&buf); err != nil {
		return nil, fmt.Errorf("write docx: %w", err)
	}
	return buf.Bytes(), nil
}
