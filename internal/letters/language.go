package letters

import "strings"

// stopwords used to guess the language of a posting description. The letter
// must be written in the posting's language, so a rough guess over common
// function words is enough; English is the fallback.
var stopwords = map[string][]string{
	"fr": {"le", "la", "les", "des", "un", "une", "et", "vous", "nous", "pour", "avec", "dans", "est", "sont", "votre"},
	"de": {"der", "die", "das", "und", "ein", "eine", "sie", "wir", "für", "mit", "ist", "sind", "ihre", "nicht", "von"},
	"it": {"il", "la", "le", "gli", "un", "una", "e", "per", "con", "di", "che", "siamo", "sono", "della", "nel"},
	"en": {"the", "and", "a", "an", "you", "we", "for", "with", "is", "are", "your", "of", "to", "in", "our"},
}

// letterPrefixes localize the uploaded cover-letter filename.
var letterPrefixes = map[string]string{
	"fr": "Lettre",
	"de": "Bewerbungsschreiben",
	"it": "Lettera",
	"en": "Letter",
}

// languageNames spell the language out for the generation prompt.
var languageNames = map[string]string{
	"fr": "French",
	"de": "German",
	"it": "Italian",
	"en": "English",
}

// DetectLanguage guesses the language of text among fr/de/it/en by stopword
// frequency. Ties and empty input resolve to English.
func DetectLanguage(text string) string {
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return "en"
	}
	seen := make(map[string]int, len(words))
	for _, w := range words {
		seen[strings.Trim(w, ".,;:!?()'\"")]++
	}

	best, bestScore := "en", 0
	for _, lang := range []string{"fr", "de", "it", "en"} {
		score := 0
		for _, sw := range stopwords[lang] {
			score += seen[sw]
		}
		if score > bestScore {
			best, bestScore = lang, score
		}
	}
	return best
}

// LetterPrefix returns the localized filename prefix for a language code.
func LetterPrefix(lang string) string {
	if p, ok := letterPrefixes[lang]; ok {
		return p
	}
	return "Letter"
}
