package form

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFillFieldsTouchesOnlyMissingFields(t *testing.T) {
	t.Parallel()

	page := newFakeFormPage()
	page.visible[availabilityTrigger] = true
	filler := NewFiller(zap.NewNop())

	filler.FillFields(context.Background(), page, fullProfile(),
		[]string{firstnameInput, fieldGender, fieldAvailability})

	require.Equal(t, map[string]string{firstnameInput: "Lina"}, page.fills)
	require.Equal(t, 1, page.clickCount(genderFemaleButton))
	require.Equal(t, 1, page.clickCount(availabilityTrigger))
	// Availability 2 selects the reversed fifth entry.
	require.Equal(t, 1, page.clickCount(selectItem(4)))
	require.Zero(t, page.clickCount(genderMaleButton))
}

func TestSelectWorkPermitClicksPositionedItem(t *testing.T) {
	t.Parallel()

	page := newFakeFormPage()
	page.visible[workPermitTrigger] = true
	filler := NewFiller(zap.NewNop())

	filler.FillFields(context.Background(), page, fullProfile(), []string{fieldWorkPermit})
	require.Equal(t, 1, page.clickCount(workPermitTrigger))
	require.Equal(t, 1, page.clickCount(workPermitItem(3)))
}

func TestSelectWorkPermitRejectsOutOfRange(t *testing.T) {
	t.Parallel()

	page := newFakeFormPage()
	page.visible[workPermitTrigger] = true
	filler := NewFiller(zap.NewNop())

	profile := fullProfile()
	profile.WorkPermit = 0
	filler.FillFields(context.Background(), page, profile, []string{fieldWorkPermit})
	require.Empty(t, page.clicks)
}

func TestAnswerRequirementsHonorsOptOut(t *testing.T) {
	t.Parallel()

	page := newFakeFormPage()
	page.visible[requirementsContainer] = true
	page.counts[requirementItems] = 2
	filler := NewFiller(zap.NewNop())

	profile := fullProfile()
	profile.AutoAnswer = false
	filler.FillFields(context.Background(), page, profile, []string{fieldRequirements})
	require.Empty(t, page.clicks)

	profile.AutoAnswer = true
	filler.FillFields(context.Background(), page, profile, []string{fieldRequirements})
	require.Equal(t, 1, page.clickCount(requirementButton(0, true)))
	require.Equal(t, 1, page.clickCount(requirementButton(1, true)))
}

func TestUploadFilesRetargetsAbsentSections(t *testing.T) {
	t.Parallel()

	page := newFakeFormPage()
	page.visible[sectionHead(SectionCV)] = true
	page.visible[sectionHead(SectionOther)] = true
	filler := NewFiller(zap.NewNop())

	files := []UploadFile{
		{Kind: SectionCV, Name: "cv_lina.pdf", Bytes: []byte("%PDF cv")},
		{Kind: SectionMotivation, Name: "letter_acme.pdf", Bytes: []byte("%PDF letter")},
	}
	scratch, err := filler.UploadFiles(context.Background(), page, files)
	require.NoError(t, err)
	require.Len(t, scratch, 2)

	require.Len(t, page.uploads[sectionFileInput(SectionCV)], 1)
	// The motivation section is absent, its file lands in "other".
	require.Len(t, page.uploads[sectionFileInput(SectionOther)], 1)
	require.Empty(t, page.uploads[sectionFileInput(SectionMotivation)])

	for _, path := range scratch {
		_, statErr := os.Stat(path)
		require.NoError(t, statErr)
	}
	filler.CleanupFiles(scratch)
	for _, path := range scratch {
		_, statErr := os.Stat(path)
		require.True(t, os.IsNotExist(statErr))
	}
}

func TestUploadFilesRejectsEmptyContent(t *testing.T) {
	t.Parallel()

	page := newFakeFormPage()
	page.visible[sectionHead(SectionCV)] = true
	filler := NewFiller(zap.NewNop())

	_, err := filler.UploadFiles(context.Background(), page, []UploadFile{
		{Kind: SectionCV, Name: "cv_lina.pdf"},
	})
	require.Error(t, err)
	require.Empty(t, page.uploads)
}

func TestCleanupFilesIgnoresMissingPaths(t *testing.T) {
	t.Parallel()

	filler := NewFiller(zap.NewNop())
	filler.CleanupFiles([]string{filepath.Join(os.TempDir(), "never-created-scratch.pdf")})
}

func TestSubmitPicksButtonByMode(t *testing.T) {
	t.Parallel()

	page := newFakeFormPage()
	filler := NewFiller(zap.NewNop())

	require.NoError(t, filler.Submit(context.Background(), page, true))
	require.Equal(t, 1, page.clickCount(submitApplyButton))

	require.NoError(t, filler.Submit(context.Background(), page, false))
	require.Equal(t, 1, page.clickCount(submitSaveButton))
}

func TestAcceptCookiesOnlyWhenModalPresent(t *testing.T) {
	t.Parallel()

	page := newFakeFormPage()
	filler := NewFiller(zap.NewNop())

	filler.AcceptCookies(context.Background(), page)
	require.Empty(t, page.clicks)

	page.visible[cookieConsentButton] = true
	filler.AcceptCookies(context.Background(), page)
	require.Equal(t, 1, page.clickCount(cookieConsentButton))
}
