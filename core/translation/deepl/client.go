package deepl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
)

const defaultTranslateURL = "https://api-free.deepl.com/v2/translate"

// Client translates text through the DeepL REST API.
type Client struct {
	apiKey       string
	translateURL string
	httpClient   *http.Client
}

type ClientOption func(*Client)

func WithAPIKey(apiKey string) ClientOption {
	return func(c *Client) {
		c.apiKey = apiKey
	}
}

// WithTranslateURL overrides the endpoint, e.g. for the paid API host or a
// test server.
func WithTranslateURL(translateURL string) ClientOption {
	return func(c *Client) {
		c.translateURL = translateURL
	}
}

func NewClient(opts ...ClientOption) *Client {
	client := &Client{
		translateURL: defaultTranslateURL,
		httpClient:   &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	for _, opt := range opts {
		opt(client)
	}

	if client.apiKey == "" {
		if apiKey, ok := os.LookupEnv("DEEPL_API_KEY"); ok {
			client.apiKey = apiKey
		}
	}

	return client
}

type requestBody struct {
	Text       []string `json:"text"`
	SourceLang string   `json:"source_lang,omitempty"`
	TargetLang string   `json:"target_lang"`
}

type responseBody struct {
	Translations []struct {
		DetectedSourceLanguage string `json:"detected_source_language"`
		Text                   string `json:"text"`
	} `json:"translations"`
}

// Translate converts one text into the target language.
func (c *Client) Translate(ctx context.Context, text, sourceLanguage, targetLanguage string) (string, error) {
	ctx, span := tracer.Start(ctx, "translate text")
	defer span.End()
	span.SetAttributes(
		attribute.String("request.source_language", sourceLanguage),
		attribute.String("request.target_language", targetLanguage),
	)

	if c.apiKey == "" {
		err := fmt.Errorf("deepl api key not found")
		span.RecordError(err)
		return "", err
	}

	reqBody := requestBody{
		Text:       []string{text},
		SourceLang: normalizeLanguage(sourceLanguage),
		TargetLang: normalizeLanguage(targetLanguage),
	}

	requestBodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		err = fmt.Errorf("error marshalling JSON: %w", err)
		span.RecordError(err)
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.translateURL, bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		err = fmt.Errorf("failed to build deepl request: %w", err)
		span.RecordError(err)
		return "", err
	}
	req.Header.Set("Authorization", "DeepL-Auth-Key "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("failed to reach deepl: %w", err)
		span.RecordError(err)
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		err = fmt.Errorf("deepl returned status %d: %s", resp.StatusCode, string(body))
		span.RecordError(err)
		return "", err
	}

	var parsed responseBody
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		err = fmt.Errorf("failed to decode deepl response: %w", err)
		span.RecordError(err)
		return "", err
	}

	if len(parsed.Translations) == 0 {
		err = fmt.Errorf("deepl returned no translations")
		span.RecordError(err)
		return "", err
	}

	translated := parsed.Translations[0].Text
	if detected := parsed.Translations[0].DetectedSourceLanguage; detected != "" &&
		sourceLanguage != "" && !strings.EqualFold(detected, normalizeLanguage(sourceLanguage)) {
		logger.InfoContext(ctx, "detected source language differs from configured one",
			"configured", sourceLanguage, "detected", detected)
	}

	return translated, nil
}

// normalizeLanguage maps BCP-47 style tags ("en-US") to DeepL's upper-case
// two-letter codes ("EN"). DeepL target variants ("EN-GB", "PT-BR") are kept
// as-is.
func normalizeLanguage(language string) string {
	upper := strings.ToUpper(language)
	switch upper {
	case "EN-GB", "EN-US", "PT-BR", "PT-PT", "ZH-HANS", "ZH-HANT":
		return upper
	}
	if base, _, found := strings.Cut(upper, "-"); found {
		return base
	}
	return upper
}
