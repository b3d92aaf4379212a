package translate

import "strings"

var languageNames = map[string]string{
	"ar": "Arabic",
	"cs": "Czech",
	"da": "Danish",
	"de": "German",
	"el": "Greek",
	"en": "English",
	"es": "Spanish",
	"fi": "Finnish",
	"fr": "French",
	"hu": "Hungarian",
	"it": "Italian",
	"ja": "Japanese",
	"ko": "Korean",
	"nl": "Dutch",
	"no": "Norwegian",
	"pl": "Polish",
	"pt": "Portuguese",
	"ro": "Romanian",
	"ru": "Russian",
	"sv": "Swedish",
	"tr": "Turkish",
	"uk": "Ukrainian",
	"vi": "Vietnamese",
	"zh": "Chinese",
}

// FLORES-200 codes as used by NLLB models.
var floresCodes = map[string]string{
	"arb": "ar", "ces": "cs", "dan": "da", "deu": "de", "ell": "el",
	"eng": "en", "spa": "es", "fin": "fi", "fra": "fr", "hun": "hu",
	"ita": "it", "jpn": "ja", "kor": "ko", "nld": "nl", "nob": "no",
	"pol": "pl", "por": "pt", "ron": "ro", "rus": "ru", "swe": "sv",
	"tur": "tr", "ukr": "uk", "vie": "vi", "zho": "zh",
}

// Code normalizes a language tag to its lower-case base code: "de-DE",
// "de_DE" and "deu_Latn" all become "de". Unknown tags are returned
// lower-cased.
func Code(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	if c, ok := floresCodes[lang]; ok {
		return c
	}
	return lang
}

// Name returns the English name of a language for use in prompts, falling
// back to the code itself.
func Name(lang string) string {
	code := Code(lang)
	if n, ok := languageNames[code]; ok {
		return n
	}
	return code
}
