package letters

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lmeyrat/jobpilot/internal/jobs"
)

type fixedClock struct{}

func (fixedClock) Now() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func TestRenderProducesPDF(t *testing.T) {
	t.Parallel()

	letter := jobs.CoverLetter{
		Subject:       "Bewerbung als Backend Engineer",
		Greeting:      "Sehr geehrte Damen und Herren,",
		Introduction:  "mit grossem Interesse habe ich Ihre Ausschreibung gelesen.",
		Experience:    "Fünf Jahre Erfahrung mit Go und verteilten Systemen.",
		Motivation:    "Ihre Plattform überzeugt mich.",
		Conclusion:    "Ich freue mich auf ein Gespräch.",
		Closing:       "Freundliche Grüsse",
		RecipientInfo: "Acme AG\nMusterstrasse 1\n8000 Zürich",
	}
	profile := jobs.ApplyProfile{
		FirstName: "Lina",
		LastName:  "Meyer",
		Email:     "lina@example.test",
		Phone:     "+41790000000",
		ZipCode:   "8004",
	}

	pdf, err := NewRenderer(fixedClock{}).Render(letter, profile)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
	require.Greater(t, len(pdf), 500)
}

func TestRenderSkipsEmptySections(t *testing.T) {
	t.Parallel()

	letter := jobs.CoverLetter{
		Subject:      "Application",
		Introduction: "I am writing to apply.",
		Closing:      "Kind regards",
	}
	pdf, err := NewRenderer(fixedClock{}).Render(letter, jobs.ApplyProfile{FirstName: "Lina"})
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
}

func TestPDFFileNameUsesCompanyAndLanguage(t *testing.T) {
	t.Parallel()

	posting := jobs.Posting{
		Company:     "Acme: Dev / Ops AG",
		Description: "Wir suchen eine Person für die Entwicklung und Sie arbeiten mit uns.",
	}
	got := PDFFileName(posting, jobs.ApplyProfile{})
	require.Equal(t, "Bewerbungsschreiben_Acme__Dev___Ops_AG.pdf", got)
}

func TestPDFFileNameFallsBackToCandidateName(t *testing.T) {
	t.Parallel()

	posting := jobs.Posting{
		Description: "We are looking for an engineer to join our team and you will work with us.",
	}
	profile := jobs.ApplyProfile{FirstName: "Lina", LastName: "Meyer"}
	require.Equal(t, "Letter_Lina_Meyer.pdf", PDFFileName(posting, profile))
}

func TestSanitizeFileName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"Acme AG", "Acme_AG"},
		{"  spaced   name  ", "spaced_name"},
		{`a<b>c:d"e/f\g|h?i*j`, "a_b_c_d_e_f_g_h_i_j"},
		{"plain.pdf", "plain.pdf"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, SanitizeFileName(tc.in))
	}
}
