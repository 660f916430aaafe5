// Package translation defines the contract the coordination core expects
// from a text translation service.
package translation

import "context"

// Translator converts final transcript text between languages.
type Translator interface {
	Translate(ctx context.Context, text, sourceLanguage, targetLanguage string) (string, error)
}

// All translates one text into every requested target language. Failed
// targets are simply absent from the result; the caller decides whether a
// partially empty result is acceptable. The error map carries the per-target
// causes for targets that failed.
func All(ctx context.Context, translator Translator, text, sourceLanguage string, targetLanguages []string) (map[string]string, map[string]error) {
	translations := make(map[string]string, len(targetLanguages))
	failures := map[string]error{}

	for _, targetLanguage := range targetLanguages {
		if targetLanguage == sourceLanguage {
			translations[targetLanguage] = text
			continue
		}

		translated, err := translator.Translate(ctx, text, sourceLanguage, targetLanguage)
		if err != nil {
			failures[targetLanguage] = err
			continue
		}
		translations[targetLanguage] = translated
	}

	return translations, failures
}
