package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ljubanic/parley-core/core/speechtotext"
)

type prerecordedResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// TranscribeAudio transcribes one complete audio buffer through the
// prerecorded endpoint and returns every candidate deepgram produced.
func (c *Client) TranscribeAudio(ctx context.Context, audio []byte, language string) ([]speechtotext.Candidate, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("deepgram api key not found")
	}

	listenUrl, _ := url.Parse(prerecordedURL)
	queryParams := listenUrl.Query()
	queryParams.Set("model", c.model)
	if language != "" {
		queryParams.Set("language", language)
	}
	queryParams.Set("smart_format", "true")
	queryParams.Set("alternatives", "3")
	listenUrl.RawQuery = queryParams.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, listenUrl.String(), bytes.NewReader(audio))
	if err != nil {
		return nil, fmt.Errorf("failed to build deepgram request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)
	req.Header.Set("Content-Type", "audio/*")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach deepgram: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("deepgram returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed prerecordedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode deepgram response: %w", err)
	}

	candidates := []speechtotext.Candidate{}
	for _, channel := range parsed.Results.Channels {
		for _, alternative := range channel.Alternatives {
			transcript := strings.TrimSpace(alternative.Transcript)
			if len(transcript) == 0 {
				continue
			}
			candidates = append(candidates, speechtotext.Candidate{
				Transcript: transcript,
				Confidence: alternative.Confidence,
				IsFinal:    true,
			})
		}
	}

	return candidates, nil
}
