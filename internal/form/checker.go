package form

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lmeyrat/jobpilot/internal/browser"
	"github.com/lmeyrat/jobpilot/internal/jobs"
)

// UploadFile is one document expected on the form, carried as bytes until it
// reaches a scratch file for the upload input.
type UploadFile struct {
	Kind  string
	Name  string
	Bytes []byte
}

// Checker verifies the live form state against the desired profile. Probe
// failures count the field as missing so the filler gets another shot.
type Checker struct {
	log *zap.Logger
}

// NewChecker constructs a form checker.
func NewChecker(log *zap.Logger) *Checker {
	return &Checker{log: log}
}

// VerifyAll probes every known control and returns the fields and files that
// do not yet match the profile. Controls absent from this form are satisfied
// by definition.
func (c *Checker) VerifyAll(ctx context.Context, page browser.Page, profile jobs.ApplyProfile, files []UploadFile) (missingFields []string, missingFiles []UploadFile) {
	textFields := []struct {
		selector string
		expected string
	}{
		{firstnameInput, profile.FirstName},
		{lastnameInput, profile.LastName},
		{emailInput, profile.Email},
		{phoneInput, profile.Phone},
		{zipCodeInput, profile.ZipCode},
	}
	for _, f := range textFields {
		if !c.checkTextField(ctx, page, f.selector, f.expected) {
			missingFields = append(missingFields, f.selector)
		}
	}
	if !c.checkGender(ctx, page, profile.Gender) {
		missingFields = append(missingFields, fieldGender)
	}
	if !c.checkAvailability(ctx, page, profile.Availability) {
		missingFields = append(missingFields, fieldAvailability)
	}
	if !c.checkWorkPermit(ctx, page, profile.WorkPermit) {
		missingFields = append(missingFields, fieldWorkPermit)
	}
	if !c.checkRequirements(ctx, page) {
		missingFields = append(missingFields, fieldRequirements)
	}

	for _, file := range files {
		if !c.checkDocumentUploaded(ctx, page, file.Name) {
			missingFiles = append(missingFiles, file)
		}
	}
	return missingFields, missingFiles
}

func (c *Checker) checkTextField(ctx context.Context, page browser.Page, selector, expected string) bool {
	visible, err := page.IsVisible(ctx, selector)
	if err != nil {
		c.log.Warn("text field probe failed", zap.String("selector", selector), zap.Error(err))
		return false
	}
	if !visible {
		return true
	}
	current, err := page.InputValue(ctx, selector)
	if err != nil {
		c.log.Warn("input value read failed", zap.String("selector", selector), zap.Error(err))
		return false
	}
	return current == expected
}

func (c *Checker) checkGender(ctx context.Context, page browser.Page, gender string) bool {
	maleVisible, _ := page.IsVisible(ctx, genderMaleButton)
	femaleVisible, _ := page.IsVisible(ctx, genderFemaleButton)
	if !maleVisible && !femaleVisible {
		return true
	}
	if gender != "male" && gender != "female" {
		return false
	}
	pressed, err := page.IsVisible(ctx, pressedGender(gender))
	return err == nil && pressed
}

// checkAvailability opens the dropdown to read the selection and always
// closes it again, even when the probe fails mid-way.
func (c *Checker) checkAvailability(ctx context.Context, page browser.Page, availability int) bool {
	visible, err := page.IsVisible(ctx, availabilityTrigger)
	if err != nil || !visible {
		return err == nil
	}
	if err := page.Click(ctx, availabilityTrigger); err != nil {
		c.log.Warn("availability dropdown open failed", zap.Error(err))
		return false
	}
	defer func() {
		if err := page.Click(ctx, availabilityTrigger); err != nil {
			c.log.Warn("availability dropdown close failed", zap.Error(err))
		}
	}()
	// The site lists availability entries in reverse option order.
	index := availabilityItemIndex(availability)
	selected, err := page.IsVisible(ctx, selectedItem(index))
	return err == nil && selected
}

func (c *Checker) checkWorkPermit(ctx context.Context, page browser.Page, permit int) bool {
	visible, err := page.IsVisible(ctx, workPermitTrigger)
	if err != nil || !visible {
		return err == nil
	}
	if err := page.Click(ctx, workPermitTrigger); err != nil {
		c.log.Warn("work permit dropdown open failed", zap.Error(err))
		return false
	}
	defer func() {
		if err := page.Click(ctx, workPermitTrigger); err != nil {
			c.log.Warn("work permit dropdown close failed", zap.Error(err))
		}
	}()
	selected, err := page.IsVisible(ctx, selectedItem(permit-1))
	return err == nil && selected
}

func (c *Checker) checkRequirements(ctx context.Context, page browser.Page) bool {
	visible, err := page.IsVisible(ctx, requirementsContainer)
	if err != nil || !visible {
		return err == nil
	}
	count, err := page.Count(ctx, requirementItems)
	if err != nil {
		return false
	}
	for i := 0; i < count; i++ {
		yes, _ := page.IsVisible(ctx, requirementPressed(i, true))
		no, _ := page.IsVisible(ctx, requirementPressed(i, false))
		if !yes && !no {
			return false
		}
	}
	return true
}

func (c *Checker) checkDocumentUploaded(ctx context.Context, page browser.Page, name string) bool {
	if err := page.WaitNetworkIdle(ctx, 30*time.Second); err != nil {
		c.log.Debug("network idle wait before document probe", zap.Error(err))
	}
	found, err := page.ContainsText(ctx, name)
	return err == nil && found
}

// WaitForUploads blocks until no upload progress indicator remains and every
// expected file shows on the page, bounded by timeout. It returns the files
// still missing at the deadline.
func (c *Checker) WaitForUploads(ctx context.Context, page browser.Page, files []UploadFile, timeout time.Duration) (bool, []UploadFile) {
	deadline := time.Now().Add(timeout)
	var missing []UploadFile
	for time.Now().Before(deadline) {
		if inProgress, _ := page.IsVisible(ctx, uploadProgressBar); inProgress {
			if !sleepCtx(ctx, 500*time.Millisecond) {
				return false, files
			}
			continue
		}

		missing = missing[:0]
		for _, file := range files {
			if found, err := page.ContainsText(ctx, file.Name); err != nil || !found {
				missing = append(missing, file)
			}
		}
		if len(missing) == 0 {
			return true, nil
		}
		if !sleepCtx(ctx, 500*time.Millisecond) {
			return false, missing
		}
	}
	return false, missing
}

// availabilityItemIndex maps the profile's notice-period value (0..6) onto
// the dropdown's reversed entry order.
func availabilityItemIndex(availability int) int {
	if availability < 0 {
		availability = 0
	}
	if availability > 6 {
		availability = 6
	}
	return 6 - availability
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
