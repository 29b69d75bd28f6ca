package model

import "strings"

type Locale string

const (
	LocaleEnglish Locale = "en"
	LocaleHindi   Locale = "hi"
	LocaleMarathi Locale = "mr"

	DefaultLocale = LocaleEnglish
)

// Locales lists every supported locale.
var Locales = []Locale{LocaleEnglish, LocaleHindi, LocaleMarathi}

var greetings = map[Locale]string{
	LocaleEnglish: "🙏 **Namaste! I am 'Suraksha Sahayak'.**\n\nI can help you find the perfect insurance plan. To get started, may I know your **full name**?",
	LocaleHindi:   "🙏 **नमस्ते! मैं 'सुरक्षा सहायक' हूँ।**\n\nमैं आपको सही बीमा योजना खोजने में मदद कर सकता हूँ। शुरू करने के लिए, क्या मैं आपका **पूरा नाम** जान सकता हूँ?",
	LocaleMarathi: "🙏 **नमस्कार! मी 'सुरक्षा सहाय्यक' आहे.**\n\nमी तुम्हाला योग्य विमा योजना शोधण्यात मदत करू शकतो. सुरू करण्यासाठी, कृपया मला तुमचे **पूर्ण नाव** सांगाल का?",
}

// ParseLocale normalizes a locale tag such as "hi", "HI" or "hi-IN".
// Unrecognized values fall back to DefaultLocale.
func ParseLocale(s string) Locale {
	s = strings.ToLower(strings.TrimSpace(s))
	if i := strings.IndexAny(s, "-_"); i >= 0 {
		s = s[:i]
	}

	l := Locale(s)
	if l.Supported() {
		return l
	}
	return DefaultLocale
}

// Supported reports whether the locale is one of Locales.
func (l Locale) Supported() bool {
	_, ok := greetings[l]
	return ok
}

// Greeting returns the markdown greeting that opens a conversation.
func (l Locale) Greeting() string {
	if g, ok := greetings[l]; ok {
		return g
	}
	return greetings[DefaultLocale]
}

// Language returns the language code sent to the speech synthesis endpoint.
func (l Locale) Language() string {
	if l.Supported() {
		return string(l)
	}
	return string(DefaultLocale)
}

func (l Locale) String() string { return string(l) }
