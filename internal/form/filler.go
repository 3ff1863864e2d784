package form

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lmeyrat/jobpilot/internal/browser"
	"github.com/lmeyrat/jobpilot/internal/jobs"
)

const (
	cleanupAttempts = 3
	cleanupDelay    = time.Second
)

// Filler pushes profile values and documents into the live form. Individual
// control failures are logged and left for the next convergence pass.
type Filler struct {
	log *zap.Logger
}

// NewFiller constructs a form filler.
func NewFiller(log *zap.Logger) *Filler {
	return &Filler{log: log}
}

// FillFields fills exactly the fields the checker reported missing.
func (f *Filler) FillFields(ctx context.Context, page browser.Page, profile jobs.ApplyProfile, missingFields []string) {
	for _, field := range missingFields {
		switch {
		case field == fieldGender:
			f.selectGender(ctx, page, profile.Gender)
		case field == fieldAvailability:
			f.selectAvailability(ctx, page, profile.Availability)
		case field == fieldWorkPermit:
			f.selectWorkPermit(ctx, page, profile.WorkPermit)
		case field == fieldRequirements:
			f.answerRequirements(ctx, page, profile.AutoAnswer)
		case strings.HasPrefix(field, "input[name="):
			value := f.textValue(profile, field)
			if err := page.Fill(ctx, field, value); err != nil {
				f.log.Warn("text fill failed", zap.String("selector", field), zap.Error(err))
			}
		default:
			f.log.Warn("unknown missing field", zap.String("field", field))
		}
	}
}

func (f *Filler) textValue(profile jobs.ApplyProfile, selector string) string {
	switch selector {
	case firstnameInput:
		return profile.FirstName
	case lastnameInput:
		return profile.LastName
	case emailInput:
		return profile.Email
	case phoneInput:
		return profile.Phone
	case zipCodeInput:
		return profile.ZipCode
	}
	return ""
}

func (f *Filler) selectGender(ctx context.Context, page browser.Page, gender string) {
	var selector string
	switch gender {
	case "male":
		selector = genderMaleButton
	case "female":
		selector = genderFemaleButton
	default:
		return
	}
	f.safeClick(ctx, page, selector)
}

func (f *Filler) selectAvailability(ctx context.Context, page browser.Page, availability int) {
	visible, err := page.IsVisible(ctx, availabilityTrigger)
	if err != nil || !visible {
		return
	}
	f.safeClick(ctx, page, availabilityTrigger)
	f.safeClick(ctx, page, selectItem(availabilityItemIndex(availability)))
}

func (f *Filler) selectWorkPermit(ctx context.Context, page browser.Page, permit int) {
	visible, err := page.IsVisible(ctx, workPermitTrigger)
	if err != nil || !visible {
		return
	}
	if permit < 1 || permit > 10 {
		f.log.Warn("work permit index out of range", zap.Int("permit", permit))
		return
	}
	f.safeClick(ctx, page, workPermitTrigger)
	f.safeClick(ctx, page, workPermitItem(permit))
}

// answerRequirements clicks "yes" on every unanswered requirement prompt
// when the profile opted into auto-answering.
func (f *Filler) answerRequirements(ctx context.Context, page browser.Page, autoAnswer bool) {
	if !autoAnswer {
		return
	}
	visible, err := page.IsVisible(ctx, requirementsContainer)
	if err != nil || !visible {
		return
	}
	count, err := page.Count(ctx, requirementItems)
	if err != nil {
		return
	}
	for i := 0; i < count; i++ {
		f.safeClick(ctx, page, requirementButton(i, true))
	}
}

// UploadFiles writes each document to a scratch file and feeds it to the
// matching section's file input. Files whose dedicated section is absent are
// re-targeted to the "other" section. The returned paths must be cleaned up
// by the caller once uploads settle.
func (f *Filler) UploadFiles(ctx context.Context, page browser.Page, files []UploadFile) ([]string, error) {
	sections := map[string]bool{}
	for _, kind := range []string{SectionCV, SectionMotivation, SectionOther} {
		visible, err := page.IsVisible(ctx, sectionHead(kind))
		sections[kind] = err == nil && visible
	}

	var scratch []string
	for _, file := range files {
		kind := file.Kind
		if kind == "" || !sections[kind] {
			kind = SectionOther
		}
		path, err := f.uploadOne(ctx, page, file, kind)
		if err != nil {
			f.CleanupFiles(scratch)
			return nil, err
		}
		scratch = append(scratch, path)
	}
	return scratch, nil
}

func (f *Filler) uploadOne(ctx context.Context, page browser.Page, file UploadFile, kind string) (string, error) {
	if file.Name == "" || len(file.Bytes) == 0 {
		return "", fmt.Errorf("upload %q: empty name or content", file.Name)
	}
	path := filepath.Join(os.TempDir(), file.Name)
	if err := os.WriteFile(path, file.Bytes, 0o600); err != nil {
		return "", fmt.Errorf("write scratch file: %w", err)
	}

	f.safeClick(ctx, page, sectionHead(kind))
	if err := page.SetFiles(ctx, sectionFileInput(kind), []string{path}); err != nil {
		f.CleanupFiles([]string{path})
		return "", fmt.Errorf("set upload input for %q: %w", file.Name, err)
	}
	f.log.Debug("upload started", zap.String("file", file.Name), zap.String("section", kind))
	return path, nil
}

// CleanupFiles deletes scratch files with bounded retries; the browser can
// hold a handle briefly after SetFiles.
func (f *Filler) CleanupFiles(paths []string) {
	for _, path := range paths {
		removed := false
		for attempt := 1; attempt <= cleanupAttempts; attempt++ {
			err := os.Remove(path)
			if err == nil || os.IsNotExist(err) {
				removed = true
				break
			}
			f.log.Warn("scratch file still in use",
				zap.String("path", path), zap.Int("attempt", attempt))
			time.Sleep(cleanupDelay)
		}
		if !removed {
			f.log.Error("scratch file left behind", zap.String("path", path))
		}
	}
}

// Submit clicks the apply button, or the save button when directApply is
// false.
func (f *Filler) Submit(ctx context.Context, page browser.Page, directApply bool) error {
	selector := submitSaveButton
	if directApply {
		selector = submitApplyButton
	}
	if err := page.Click(ctx, selector); err != nil {
		return fmt.Errorf("click submit: %w", err)
	}
	return page.WaitNetworkIdle(ctx, 30*time.Second)
}

// DismissLoginTeaser clicks through the login teaser, which reuses the
// cached session without a new sign-in.
func (f *Filler) DismissLoginTeaser(ctx context.Context, page browser.Page) {
	f.safeClick(ctx, page, loginTeaserButton)
}

// AcceptCookies dismisses the consent modal when present.
func (f *Filler) AcceptCookies(ctx context.Context, page browser.Page) {
	visible, err := page.IsVisible(ctx, cookieConsentButton)
	if err == nil && visible {
		f.safeClick(ctx, page, cookieConsentButton)
	}
}

func (f *Filler) safeClick(ctx context.Context, page browser.Page, selector string) {
	if err := page.Click(ctx, selector); err != nil {
		f.log.Warn("click failed", zap.String("selector", selector), zap.Error(err))
	}
}
