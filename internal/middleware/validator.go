package middleware

import (
	"fmt"
	"strings"

	domain "github.com/bryanwahyu/docgen/internal/domain/documents"
)

// Input validation and sanitization utilities

// FieldError is one rejected request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every problem with a create request.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "invalid request: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return domain.ErrValidation }

// ValidateCreateRequest normalizes req in place and rejects it when a
// required field is missing or an enum value is unknown.
func ValidateCreateRequest(req *domain.CreateRequest) error {
	var errs []FieldError
	add := func(field, format string, args ...any) {
		errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	req.Title = SanitizeString(req.Title)
	req.Language = SanitizeString(req.Language)
	req.DocumentType = domain.DocumentType(strings.ToLower(strings.TrimSpace(string(req.DocumentType))))
	req.Format = domain.Format(strings.ToLower(strings.TrimSpace(string(req.Format))))
	if req.Candidate != nil {
		req.Candidate.FullName = SanitizeString(req.Candidate.FullName)
		req.Candidate.Email = SanitizeString(req.Candidate.Email)
		req.Candidate.Phone = SanitizeString(req.Candidate.Phone)
		req.Candidate.Location = SanitizeString(req.Candidate.Location)
	}
	for i := range req.Content.Sections {
		req.Content.Sections[i].Heading = SanitizeString(req.Content.Sections[i].Heading)
	}

	switch {
	case req.DocumentType == "":
		add("document_type", "is required")
	case !req.DocumentType.Valid():
		add("document_type", "must be one of cover_letter, cv, recruiter_scorecard (got %q)", req.DocumentType)
	}
	switch req.Format {
	case "":
		add("format", "is required")
	case domain.FormatDOCX:
	default:
		add("format", "only docx is supported (got %q)", req.Format)
	}
	if req.Language == "" {
		add("language", "is required")
	}
	if req.Title == "" {
		add("title", "is required")
	}
	if strings.TrimSpace(req.Content.BodyMarkdown) == "" {
		add("content.body_markdown", "is required")
	}
	for i, s := range req.Content.Sections {
		if strings.TrimSpace(s.Text) == "" {
			add(fmt.Sprintf("content.sections[%d].text", i), "is required")
		}
	}
	switch req.Delivery {
	case "":
		req.Delivery = domain.DeliveryLink
	case domain.DeliveryLink, domain.DeliveryInline:
	default:
		add("delivery", "must be link or inline (got %q)", req.Delivery)
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	// Remove control characters
	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}
