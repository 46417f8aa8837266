// Package language holds the fixed catalogue of languages the translator
// offers and the helpers to derive base codes from region-qualified tags.
package language

import (
	"strings"

	xlanguage "golang.org/x/text/language"
)

// Option is one selectable language.
type Option struct {
	Code  string
	Label string
	Flag  string
}

var options = []Option{
	{Code: "fr-FR", Label: "French (France)", Flag: "🇫🇷"},
	{Code: "en-US", Label: "English (US)", Flag: "🇺🇸"},
	{Code: "es-ES", Label: "Spanish (Spain)", Flag: "🇪🇸"},
	{Code: "de-DE", Label: "German (Germany)", Flag: "🇩🇪"},
	{Code: "it-IT", Label: "Italian (Italy)", Flag: "🇮🇹"},
	{Code: "pt-PT", Label: "Portuguese (Portugal)", Flag: "🇵🇹"},
	{Code: "ja-JP", Label: "Japanese", Flag: "🇯🇵"},
	{Code: "ko-KR", Label: "Korean", Flag: "🇰🇷"},
	{Code: "ru-RU", Label: "Russian", Flag: "🇷🇺"},
	{Code: "ar-SA", Label: "Arabic", Flag: "🇸🇦"},
}

const (
	DefaultSource = "fr-FR"
	DefaultTarget = "en-US"
)

// All returns the catalogue in display order.
func All() []Option {
	return append([]Option(nil), options...)
}

// Lookup finds an option by its exact code.
func Lookup(code string) (Option, bool) {
	for _, opt := range options {
		if opt.Code == code {
			return opt, true
		}
	}
	return Option{}, false
}

// Label returns the display label for code, or a generic fallback.
func Label(code string) string {
	if opt, ok := Lookup(code); ok {
		return opt.Label
	}
	return "selected language"
}

// Base returns the two-letter language of a region-qualified tag ("fr" for "fr-FR").
func Base(code string) string {
	tag, err := xlanguage.Parse(code)
	if err != nil {
		base, _, _ := strings.Cut(code, "-")
		return strings.ToLower(base)
	}
	base, _ := tag.Base()
	return base.String()
}

// Cycle returns the code step positions away from code, wrapping around the
// catalogue. Unknown codes start from the first entry.
func Cycle(code string, step int) string {
	idx := 0
	for i, opt := range options {
		if opt.Code == code {
			idx = i
			break
		}
	}
	n := len(options)
	idx = ((idx+step)%n + n) % n
	return options[idx].Code
}
