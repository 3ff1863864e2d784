package letters

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lmeyrat/jobpilot/internal/jobs"
	"github.com/lmeyrat/jobpilot/internal/llm"
)

const sectionsJSON = `{
	"subject": "Application for Backend Engineer",
	"greeting": "Dear Hiring Team,",
	"introduction": "I am writing to apply for the backend role.",
	"experience": "Five years of Go services in production.",
	"motivation": "Your platform work matches my interests.",
	"conclusion": "I am available for an interview at short notice.",
	"closing": "Kind regards"
}`

const recipientJSON = `{"recipient": "Acme AG\nMusterstrasse 1\n8000 Zurich"}`

func chatBody(content string) []byte {
	body, _ := json.Marshal(map[string]any{
		"message": map[string]string{"role": "assistant", "content": content},
	})
	return body
}

func testPosting() jobs.Posting {
	return jobs.Posting{
		ID:          42,
		ExternalID:  "posting-0042",
		Title:       "Backend Engineer",
		Company:     "Acme AG",
		Description: "We are looking for an engineer to join our team and you will work with us.",
	}
}

func newGenerator(serverURL string) *Generator {
	return NewGenerator(llm.New(serverURL), Config{
		Model:       "llama3",
		ProfileText: "Lina Meyer, backend engineer, five years of Go.",
		MaxRetries:  3,
		Backoff:     time.Millisecond,
	}, zap.NewNop())
}

func TestGenerateProducesLetter(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		switch calls.Add(1) {
		case 1:
			w.Write(chatBody(sectionsJSON))
		default:
			w.Write(chatBody(recipientJSON))
		}
	}))
	defer srv.Close()

	letter, err := newGenerator(srv.URL).Generate(context.Background(), 7, testPosting())
	require.NoError(t, err)
	require.Equal(t, int64(7), letter.UserID)
	require.Equal(t, int64(42), letter.PostingID)
	require.Equal(t, "Application for Backend Engineer", letter.Subject)
	require.Equal(t, "I am writing to apply for the backend role.", letter.Introduction)
	require.Equal(t, "Acme AG\nMusterstrasse 1\n8000 Zurich", letter.RecipientInfo)
	require.Equal(t, int32(2), calls.Load())
}

func TestGenerateRetriesModelFailures(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusInternalServerError)
		case 2:
			w.Write(chatBody(sectionsJSON))
		default:
			w.Write(chatBody(recipientJSON))
		}
	}))
	defer srv.Close()

	letter, err := newGenerator(srv.URL).Generate(context.Background(), 7, testPosting())
	require.NoError(t, err)
	require.NotEmpty(t, letter.Introduction)
	require.Equal(t, int32(3), calls.Load())
}

func TestGenerateFailsAfterRetryBudget(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newGenerator(srv.URL).Generate(context.Background(), 7, testPosting())
	require.Error(t, err)
	require.Contains(t, err.Error(), "generate sections")
}

func TestGenerateRejectsEmptyLetterBody(t *testing.T) {
	t.Parallel()

	empty := strings.Replace(sectionsJSON,
		`"I am writing to apply for the backend role."`, `"  "`, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write(chatBody(empty))
	}))
	defer srv.Close()

	_, err := newGenerator(srv.URL).Generate(context.Background(), 7, testPosting())
	require.Error(t, err)
	require.Contains(t, err.Error(), "empty letter body")
}

func TestGenerateToleratesRecipientFailure(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.Write(chatBody(sectionsJSON))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	letter, err := newGenerator(srv.URL).Generate(context.Background(), 7, testPosting())
	require.NoError(t, err)
	require.Empty(t, letter.RecipientInfo)
	require.NotEmpty(t, letter.Introduction)
}

func TestGenerateTruncatesOverlongSubject(t *testing.T) {
	t.Parallel()

	long := strings.Replace(sectionsJSON,
		"Application for Backend Engineer",
		strings.Repeat("Very Long Subject ", 10), 1)
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.Write(chatBody(long))
			return
		}
		w.Write(chatBody(recipientJSON))
	}))
	defer srv.Close()

	letter, err := newGenerator(srv.URL).Generate(context.Background(), 7, testPosting())
	require.NoError(t, err)
	require.Len(t, letter.Subject, MaxSubjectLength)
}

func TestGenerateSubjectTruncationKeepsRunesIntact(t *testing.T) {
	t.Parallel()

	long := strings.Replace(sectionsJSON,
		"Application for Backend Engineer",
		strings.Repeat("Bewerbung für Zürich ", 10), 1)
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.Write(chatBody(long))
			return
		}
		w.Write(chatBody(recipientJSON))
	}))
	defer srv.Close()

	letter, err := newGenerator(srv.URL).Generate(context.Background(), 7, testPosting())
	require.NoError(t, err)
	require.True(t, utf8.ValidString(letter.Subject))
	require.Equal(t, MaxSubjectLength, utf8.RuneCountInString(letter.Subject))
}
