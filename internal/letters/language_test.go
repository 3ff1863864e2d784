package letters

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectLanguage(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		text string
		want string
	}{
		{
			name: "german",
			text: "Wir sind ein wachsendes Unternehmen und suchen eine engagierte Person für die Entwicklung. Sie arbeiten mit modernen Technologien und wir bieten flexible Arbeitszeiten.",
			want: "de",
		},
		{
			name: "french",
			text: "Nous sommes une entreprise en croissance et nous cherchons une personne pour le développement. Vous travaillez avec des technologies modernes dans un environnement agréable.",
			want: "fr",
		},
		{
			name: "italian",
			text: "Siamo una azienda in crescita e cerchiamo una persona per lo sviluppo. Lavorerai con il nostro team nel cuore della città con tecnologie moderne.",
			want: "it",
		},
		{
			name: "english",
			text: "We are a growing company and we are looking for an engineer to join our team. You will work with modern technologies in the heart of the city.",
			want: "en",
		},
		{
			name: "empty falls back to english",
			text: "",
			want: "en",
		},
		{
			name: "numbers only fall back to english",
			text: "100% 8004 2025",
			want: "en",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, DetectLanguage(tc.text))
		})
	}
}

func TestLetterPrefix(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Bewerbungsschreiben", LetterPrefix("de"))
	require.Equal(t, "Lettre", LetterPrefix("fr"))
	require.Equal(t, "Lettera", LetterPrefix("it"))
	require.Equal(t, "Letter", LetterPrefix("en"))
	require.Equal(t, "Letter", LetterPrefix("rm"))
}
