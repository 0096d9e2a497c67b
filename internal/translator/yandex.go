package translator

import (
	"context"
	"encoding/json"
	"strings"

	"socialpress/internal/apiclient"
	"socialpress/internal/errs"
)

const yandexAPIBase = "https://translate.api.cloud.yandex.net/translate/v2"

// Yandex translates text via the Yandex Cloud Translate API.
type Yandex struct {
	settings map[string]string
	client   *apiclient.Client
	apiBase  string // overridable for tests; empty means the real API
}

func (y *Yandex) base() string {
	if y.apiBase != "" {
		return y.apiBase
	}
	return yandexAPIBase
}

// TestConnection translates a short probe phrase.
func (y *Yandex) TestConnection(ctx context.Context) error {
	_, err := y.Translate(ctx, "Hello", "es")
	return err
}

// Translate returns text translated into targetLang. Long text is
// split into chunks at sentence boundaries and translated piecewise.
func (y *Yandex) Translate(ctx context.Context, text, targetLang string) (string, error) {
	if text == "" {
		return "", nil
	}
	if targetLang == "" {
		return "", errs.New(errs.TranslationError, "no target language configured")
	}

	chunks := splitText(cleanText(text))
	translated := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		out, err := y.translateChunk(ctx, chunk, targetLang)
		if err != nil {
			return "", err
		}
		translated = append(translated, out)
	}
	return strings.Join(translated, " "), nil
}

func (y *Yandex) translateChunk(ctx context.Context, chunk, targetLang string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"targetLanguageCode": languageCode(targetLang),
		"texts":              []string{chunk},
		"folderId":           y.settings["folder_id"],
	})
	if err != nil {
		return "", errs.Wrap(errs.TranslationError, err, "encoding translation request")
	}

	var response struct {
		Translations []struct {
			Text string `json:"text"`
		} `json:"translations"`
	}
	err = y.client.RequestJSON(ctx, y.base()+"/translate", apiclient.Options{
		Method:  "POST",
		Headers: y.headers(),
		Body:    body,
	}, false, &response)
	if err != nil {
		return "", errs.Wrap(errs.TranslationError, err, "translating text")
	}
	if len(response.Translations) == 0 || response.Translations[0].Text == "" {
		return "", errs.New(errs.TranslationError, "translation failed: empty response from API")
	}
	return response.Translations[0].Text, nil
}

// DetectLanguage returns the language code of text.
func (y *Yandex) DetectLanguage(ctx context.Context, text string) (string, error) {
	if text == "" {
		return "", errs.New(errs.TranslationError, "no text provided for language detection")
	}

	body, err := json.Marshal(map[string]any{
		"text":     cleanText(text),
		"folderId": y.settings["folder_id"],
	})
	if err != nil {
		return "", errs.Wrap(errs.TranslationError, err, "encoding detection request")
	}

	var response struct {
		LanguageCode string `json:"languageCode"`
	}
	err = y.client.RequestJSON(ctx, y.base()+"/detect", apiclient.Options{
		Method:  "POST",
		Headers: y.headers(),
		Body:    body,
	}, false, &response)
	if err != nil {
		return "", errs.Wrap(errs.TranslationError, err, "detecting language")
	}
	if response.LanguageCode == "" {
		return "", errs.New(errs.TranslationError, "language detection failed")
	}
	return response.LanguageCode, nil
}

func (y *Yandex) headers() map[string]string {
	return map[string]string{
		"Authorization": "Api-Key " + y.settings["api_key"],
		"Content-Type":  "application/json",
	}
}

// languageCode normalizes a language code to the lowercase two-letter
// form the API expects.
func languageCode(code string) string {
	code = strings.ToLower(code)
	if len(code) > 2 {
		code = code[:2]
	}
	return code
}
