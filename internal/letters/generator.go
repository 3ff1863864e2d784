// Package letters generates cover-letter text and renders it to PDF.
package letters

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/lmeyrat/jobpilot/internal/jobs"
	"github.com/lmeyrat/jobpilot/internal/llm"
)

// Length caps for the generated sections, matching the target site's letter
// conventions (roughly two A4 pages).
const (
	MaxRecipientLineLength = 26
	MaxSubjectLength       = 52
	MaxParagraphLength     = 400
	MaxTotalLength         = 2000
)

const systemPromptTemplate = `You are an expert Swiss cover letter writer who creates personalized, professional cover letters.
Your task is to generate a cover letter that follows Swiss business standards and etiquette.

Key requirements:
- Maintain a formal yet engaging tone
- Follow Swiss letter structure (subject, greeting, body, closing)
- Ensure content is specific to the job and company
- Keep total length under %d characters
- Write in %s following local conventions
- Avoid generic phrases and clichés
- Show genuine interest in the position
- Do NOT include placeholders such as [Your Name]; the candidate's name is added externally.`

const recipientSystemPrompt = `You are an expert in extracting recipient information for Swiss business correspondence.
Extract the recipient lines (company, contact person, address) a person would write at the top of a cover letter, from the job description alone.
Never invent details and never write "not specified"; omit what is unknown. Each line must stay under %d characters. Answer in %s.`

const userPromptTemplate = `Create a cover letter based on the following information:

Candidate profile:
%s

Job description:
%s

Constraints: subject line at most %d characters, each paragraph at most %d characters, total at most %d characters. Use a formal, culturally appropriate closing for %s.`

// Config carries the candidate material and model selection for generation.
type Config struct {
	Model           string
	ProfileText     string
	ReferenceLetter string
	MaxRetries      int
	Backoff         time.Duration
}

// Generator produces cover-letter sections via the local model server.
type Generator struct {
	client *llm.Client
	cfg    Config
	logger *zap.Logger
}

// NewGenerator constructs a Generator.
func NewGenerator(client *llm.Client, cfg Config, logger *zap.Logger) *Generator {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 2 * time.Second
	}
	return &Generator{client: client, cfg: cfg, logger: logger}
}

// letterSections mirrors the structured output requested from the model.
type letterSections struct {
	Subject      string `json:"subject"`
	Greeting     string `json:"greeting"`
	Introduction string `json:"introduction"`
	Experience   string `json:"experience"`
	Motivation   string `json:"motivation"`
	Conclusion   string `json:"conclusion"`
	Closing      string `json:"closing"`
}

func sectionsSchema() *llm.Schema {
	return &llm.Schema{
		Type: "object",
		Properties: map[string]llm.SchemaProperty{
			"subject":      {Type: "string", Description: "Subject line", MaxLength: MaxSubjectLength},
			"greeting":     {Type: "string", Description: "Formal greeting"},
			"introduction": {Type: "string", MaxLength: MaxParagraphLength},
			"experience":   {Type: "string", Description: "Skills and experience matched to the role", MaxLength: MaxParagraphLength},
			"motivation":   {Type: "string", Description: "Value proposition for the company", MaxLength: MaxParagraphLength},
			"conclusion":   {Type: "string", Description: "Call to action and availability", MaxLength: MaxParagraphLength},
			"closing":      {Type: "string", Description: "Formal closing phrase"},
		},
		Required: []string{"subject", "greeting", "introduction", "experience", "motivation", "conclusion", "closing"},
	}
}

func recipientSchema() *llm.Schema {
	return &llm.Schema{
		Type: "object",
		Properties: map[string]llm.SchemaProperty{
			"recipient": {Type: "string", Description: "Recipient block, one address line per newline"},
		},
		Required: []string{"recipient"},
	}
}

// Generate produces the letter sections for one posting. Each model call is
// retried with a fixed backoff before the whole generation is reported as
// failed for that posting.
func (g *Generator) Generate(ctx context.Context, userID int64, posting jobs.Posting) (jobs.CoverLetter, error) {
	lang := DetectLanguage(posting.Description)
	langName := languageNames[lang]

	system := fmt.Sprintf(systemPromptTemplate, MaxTotalLength, langName)
	if g.cfg.ReferenceLetter != "" {
		system += "\n\nMirror the tone and rhythm of this reference letter without copying phrases from it:\n" + g.cfg.ReferenceLetter
	}
	user := fmt.Sprintf(userPromptTemplate,
		g.cfg.ProfileText, posting.Description,
		MaxSubjectLength, MaxParagraphLength, MaxTotalLength, langName)

	raw, err := g.chatWithRetry(ctx, []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}, sectionsSchema())
	if err != nil {
		return jobs.CoverLetter{}, fmt.Errorf("generate sections: %w", err)
	}

	var sections letterSections
	if err := json.Unmarshal([]byte(raw), &sections); err != nil {
		return jobs.CoverLetter{}, fmt.Errorf("parse sections: %w", err)
	}
	if strings.TrimSpace(sections.Introduction) == "" {
		return jobs.CoverLetter{}, fmt.Errorf("model returned empty letter body")
	}

	recipient, err := g.generateRecipient(ctx, posting, langName)
	if err != nil {
		// Recipient extraction is best-effort; the letter is still usable.
		g.logger.Warn("recipient extraction failed",
			zap.String("external_id", posting.ExternalID), zap.Error(err))
	}

	return jobs.CoverLetter{
		UserID:        userID,
		PostingID:     posting.ID,
		Subject:       truncate(sections.Subject, MaxSubjectLength),
		Greeting:      sections.Greeting,
		Introduction:  sections.Introduction,
		Experience:    sections.Experience,
		Motivation:    sections.Motivation,
		Conclusion:    sections.Conclusion,
		Closing:       sections.Closing,
		RecipientInfo: recipient,
	}, nil
}

func (g *Generator) generateRecipient(ctx context.Context, posting jobs.Posting, langName string) (string, error) {
	raw, err := g.chatWithRetry(ctx, []llm.Message{
		{Role: "system", Content: fmt.Sprintf(recipientSystemPrompt, MaxRecipientLineLength, langName)},
		{Role: "user", Content: posting.Description},
	}, recipientSchema())
	if err != nil {
		return "", err
	}
	var out struct {
		Recipient string `json:"recipient"`
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return "", fmt.Errorf("parse recipient: %w", err)
	}
	return out.Recipient, nil
}

func (g *Generator) chatWithRetry(ctx context.Context, messages []llm.Message, schema *llm.Schema) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= g.cfg.MaxRetries; attempt++ {
		raw, err := g.client.Chat(ctx, g.cfg.Model, messages, schema)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		g.logger.Warn("model call failed",
			zap.Int("attempt", attempt), zap.Int("max", g.cfg.MaxRetries), zap.Error(err))
		if attempt < g.cfg.MaxRetries {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(g.cfg.Backoff):
			}
		}
	}
	return "", lastErr
}

// truncate caps s at max runes; slicing on bytes could split a multi-byte
// character in French or German subjects.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
