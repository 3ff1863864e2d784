package letters

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/lmeyrat/jobpilot/internal/jobs"
)

// Renderer lays out letter sections on an A4 page.
type Renderer struct {
	clock jobs.Clock
}

// NewRenderer constructs a Renderer.
func NewRenderer(clock jobs.Clock) *Renderer {
	return &Renderer{clock: clock}
}

// Render produces the PDF bytes for a cover letter: sender block, recipient
// block, date line, subject, body paragraphs and closing.
func (r *Renderer) Render(letter jobs.CoverLetter, profile jobs.ApplyProfile) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(25, 25, 25)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", 11)

	tr := pdf.UnicodeTranslatorFromDescriptor("")

	// Sender block, top left.
	sender := []string{
		strings.TrimSpace(profile.FirstName + " " + profile.LastName),
		profile.ZipCode,
		profile.Phone,
		profile.Email,
	}
	for _, line := range sender {
		if line != "" {
			pdf.CellFormat(0, 5, tr(line), "", 1, "L", false, 0, "")
		}
	}
	pdf.Ln(8)

	// Recipient block, right-aligned per Swiss convention.
	for _, line := range strings.Split(letter.RecipientInfo, "\n") {
		if strings.TrimSpace(line) != "" {
			pdf.CellFormat(0, 5, tr(strings.TrimSpace(line)), "", 1, "R", false, 0, "")
		}
	}
	pdf.Ln(8)

	pdf.CellFormat(0, 5, tr(r.clock.Now().Format("2 January 2006")), "", 1, "R", false, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.MultiCell(0, 5, tr(letter.Subject), "", "L", false)
	pdf.Ln(4)
	pdf.SetFont("Helvetica", "", 11)

	body := []string{
		letter.Greeting,
		letter.Introduction,
		letter.Experience,
		letter.Motivation,
		letter.Conclusion,
		letter.Closing,
	}
	for _, paragraph := range body {
		if strings.TrimSpace(paragraph) == "" {
			continue
		}
		pdf.MultiCell(0, 5, tr(paragraph), "", "L", false)
		pdf.Ln(4)
	}

	pdf.Ln(6)
	pdf.CellFormat(0, 5, tr(strings.TrimSpace(profile.FirstName+" "+profile.LastName)), "", 1, "L", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// PDFFileName derives the uploaded filename for a letter: localized prefix
// plus the sanitized company name, falling back to the candidate's name.
func PDFFileName(posting jobs.Posting, profile jobs.ApplyProfile) string {
	prefix := LetterPrefix(DetectLanguage(posting.Description))
	if posting.Company != "" {
		return fmt.Sprintf("%s_%s.pdf", prefix, SanitizeFileName(posting.Company))
	}
	return fmt.Sprintf("%s_%s_%s.pdf", prefix,
		SanitizeFileName(profile.FirstName), SanitizeFileName(profile.LastName))
}

// SanitizeFileName strips characters most filesystems reject and collapses
// runs of whitespace into single underscores.
func SanitizeFileName(name string) string {
	replacer := strings.NewReplacer(
		"<", "_", ">", "_", ":", "_", "\"", "_", "/", "_",
		"\\", "_", "|", "_", "?", "_", "*", "_",
	)
	name = replacer.Replace(strings.TrimSpace(name))
	return strings.Join(strings.Fields(name), "_")
}

var _ jobs.PDFRenderer = (*Renderer)(nil)
