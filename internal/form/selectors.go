// Package form reconciles a desired application profile against a live,
// partially-unknown application form. An absent control is a satisfied one;
// only present-but-wrong state produces work.
package form

import "fmt"

// Application form selectors. These name a versioned external surface;
// drift shows up as per-field misses at runtime, never as a crash.
const (
	firstnameInput = `input[name="firstname"]`
	lastnameInput  = `input[name="lastname"]`
	emailInput     = `input[name="email"]`
	phoneInput     = `input[name="phone"]`
	zipCodeInput   = `input[name="zipCode"]`

	genderMaleButton   = `button[value="male"]`
	genderFemaleButton = `button[value="female"]`

	availabilityTrigger = `#availability-trigger`
	workPermitTrigger   = `#workPermit-trigger`

	requirementsContainer = `div[data-cy="requirements-input"]`
	requirementItems      = `div[data-cy^="requirement-"]`

	expiredVacancyMarker  = `img[data-cy="application-expired-vacancy"]`
	alreadySubmittedImage = `img[alt="Application confirmation"]`
	cookieConsentButton   = `button[data-cy="cookie-consent-modal-primary"]`
	loginTeaserButton     = `button[data-cy="login-teaser-trigger"]`
	loginNavbarButton     = `button[data-cy="login-link"]`

	submitApplyButton = `.ml_s0 > .ai_center`
	submitSaveButton  = `.d_inline-flex > .ai_center`

	uploadProgressBar = `div.bg_brand\.30[style*="--progress"]`
)

// Upload section kinds recognized by the form.
const (
	SectionCV         = "cv"
	SectionMotivation = "motivation"
	SectionOther      = "other"
)

// Pseudo field names reported alongside raw input selectors.
const (
	fieldGender       = "gender"
	fieldAvailability = "availability"
	fieldWorkPermit   = "work_permit"
	fieldRequirements = "requirements"
)

func sectionHead(kind string) string {
	return fmt.Sprintf(`div[data-cy="document-section-head-%s"]`, kind)
}

func sectionFileInput(kind string) string {
	return fmt.Sprintf(`div[data-cy="document-section-%s"] input[type="file"]`, kind)
}

func pressedGender(gender string) string {
	return fmt.Sprintf(`button[value="%s"][aria-pressed="true"]`, gender)
}

func selectedItem(index int) string {
	return fmt.Sprintf(`div[data-cy="select-item-%d"][aria-selected="true"]`, index)
}

func selectItem(index int) string {
	return fmt.Sprintf(`div[data-cy="select-item-%d"]`, index)
}

func workPermitItem(position int) string {
	return fmt.Sprintf(`#workPermit div[aria-posinset="%d"]`, position)
}

func requirementButton(index int, answer bool) string {
	return fmt.Sprintf(`div[data-cy="requirement-%d"] button[value="%t"]`, index, answer)
}

func requirementPressed(index int, answer bool) string {
	return fmt.Sprintf(`div[data-cy="requirement-%d"] button[value="%t"][aria-pressed="true"]`, index, answer)
}
