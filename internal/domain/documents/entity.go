package documents

import (
	"time"
)

// ContentTypeDOCX is the only MIME type this service produces.
const ContentTypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Extension of every stored artifact.
const Extension = ".docx"

// DocumentType enum
type DocumentType string

const (
	TypeCoverLetter        DocumentType = "cover_letter"
	TypeCV                 DocumentType = "cv"
	TypeRecruiterScorecard DocumentType = "recruiter_scorecard"
)

// Valid reports whether t is one of the known document types.
func (t DocumentType) Valid() bool {
	switch t {
	case TypeCoverLetter, TypeCV, TypeRecruiterScorecard:
		return true
	}
	return false
}

// Format enum, only docx for now
type Format string

const FormatDOCX Format = "docx"

// Delivery tells the endpoint whether to inline the bytes in the response.
type Delivery string

const (
	DeliveryLink   Delivery = "link"
	DeliveryInline Delivery = "inline"
)

// Candidate value object
type Candidate struct {
	FullName string `json:"full_name,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Location string `json:"location,omitempty"`
}

// Section is an optional trailing block rendered after a page break.
type Section struct {
	Heading string `json:"heading,omitempty"`
	Text    string `json:"text"`
}

// Content holds the markdown body plus optional sections.
type Content struct {
	BodyMarkdown string    `json:"body_markdown"`
	Sections     []Section `json:"sections,omitempty"`
}

// CreateRequest is the payload of POST /v1/documents.
type CreateRequest struct {
	DocumentType DocumentType `json:"document_type"`
	Format       Format       `json:"format"`
	Language     string       `json:"language"`
	Title        string       `json:"title"`
	Candidate    *Candidate   `json:"candidate,omitempty"`
	Content      Content      `json:"content"`
	Delivery     Delivery     `json:"delivery,omitempty"`
}

// Artifact is a generated document plus its persistence metadata.
// The bytes live in the ArtifactStore and are read through Open.
type Artifact struct {
	ID          string    `json:"identifier"`
	DisplayName string    `json:"display_name"`
	StoredName  string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	Size        int64     `json:"size"`
}

// FileName is the suggested download name.
func (a Artifact) FileName() string {
	return a.DisplayName + Extension
}

// ExpiresAt is the instant after which the artifact may be swept.
func (a Artifact) ExpiresAt(ttl time.Duration) time.Time {
	return a.CreatedAt.Add(ttl)
}

// Expired reports whether the artifact is older than ttl at now.
// An artifact stamped in the future (clock skew) is never expired.
func Expired(createdAt, now time.Time, ttl time.Duration) bool {
	return now.Sub(createdAt) > ttl
}
