package indicator

import (
	"os"
	"strings"
)

type locale string

const (
	localeEnglish locale = "en"
	localeGerman  locale = "de"
	localeSpanish locale = "es"
	localeFrench  locale = "fr"
)

// messages holds the notification text for each conversation phase.
type messages struct {
	listening string
	thinking  string
	errorText string
}

var catalog = map[locale]messages{
	localeEnglish: {listening: "Listening…", thinking: "Thinking…", errorText: "Conversation error"},
	localeGerman:  {listening: "Höre zu…", thinking: "Denke nach…", errorText: "Gesprächsfehler"},
	localeSpanish: {listening: "Escuchando…", thinking: "Pensando…", errorText: "Error de conversación"},
	localeFrench:  {listening: "À l'écoute…", thinking: "Réflexion…", errorText: "Erreur de conversation"},
}

// messagesFromEnv picks the catalog entry for LC_ALL, LC_MESSAGES, or LANG,
// in that order.
func messagesFromEnv() messages {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if raw := os.Getenv(key); strings.TrimSpace(raw) != "" {
			return catalog[resolveLocale(raw)]
		}
	}
	return catalog[localeEnglish]
}

// resolveLocale maps a POSIX locale such as "de_DE.UTF-8" to a catalog
// entry, defaulting to English.
func resolveLocale(raw string) locale {
	lang, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(raw)), "_")
	lang, _, _ = strings.Cut(lang, ".")
	if _, ok := catalog[locale(lang)]; ok {
		return locale(lang)
	}
	return localeEnglish
}
