package models

import (
	"errors"
	"strings"

	"golang.org/x/text/language"
)

// ErrUnsupportedLanguage is returned for locale codes outside the supported set
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Language is a supported word-list locale code such as "en-us"
type Language string

const (
	LanguageEnglishUS Language = "en-us"
	LanguageGerman    Language = "de-de"
)

// supportedTags maps canonical BCP-47 tags to the lowercase codes used in asset paths
var supportedTags = map[language.Tag]Language{
	language.AmericanEnglish:    LanguageEnglishUS,
	language.MustParse("de-DE"): LanguageGerman,
}

// SupportedLanguages returns all languages word lists exist for
func SupportedLanguages() []Language {
	return []Language{LanguageEnglishUS, LanguageGerman}
}

// ParseLanguage canonicalises a locale code ("en_US", "EN-us", "en-US") to a Language
func ParseLanguage(s string) (Language, error) {
	raw := strings.TrimSpace(strings.ReplaceAll(s, "_", "-"))
	if raw == "" {
		return "", ErrUnsupportedLanguage
	}

	tag, err := language.Parse(raw)
	if err != nil {
		return "", ErrUnsupportedLanguage
	}

	lang, ok := supportedTags[tag]
	if !ok {
		return "", ErrUnsupportedLanguage
	}
	return lang, nil
}

// Valid reports whether l is one of the supported languages
func (l Language) Valid() bool {
	for _, supported := range SupportedLanguages() {
		if l == supported {
			return true
		}
	}
	return false
}

// FileCode returns the underscore form used in word-list file names ("en_us")
func (l Language) FileCode() string {
	return strings.ReplaceAll(string(l), "-", "_")
}

// TTSCode returns the primary language subtag used by speech synthesis ("en")
func (l Language) TTSCode() string {
	code, _, _ := strings.Cut(string(l), "-")
	return code
}

func (l Language) String() string {
	return string(l)
}
