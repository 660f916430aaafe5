package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"github.com/ljubanic/parley-core/core/speechtotext"
	"github.com/ljubanic/parley-core/internal/utils"
)

// StartStreaming opens a live recognition stream. Results are delivered
// through the configured callbacks until the stream is stopped or dies.
func (c *Client) StartStreaming(ctx context.Context, opts ...speechtotext.TranscriptionOption) error {
	options := &speechtotext.TranscriptionOptions{Encoding: speechtotext.DefaultEncoding()}
	for _, opt := range opts {
		opt(options)
	}

	encoding, err := convertEncoding(options.Encoding)
	if err != nil {
		return fmt.Errorf("invalid encoding: %w", err)
	}

	if c.apiKey == "" {
		return fmt.Errorf("deepgram api key not found")
	}

	callbacks, wsConfig := newCallbackConfig(*options)

	conn, err := connectWebsocket(c.apiKey, connectionOptions{
		sampleRate: encoding.SampleRate,
		encoding:   encoding.Format.Name(),
		model:      c.model,
		language:   options.Language,

		websocketConfig: wsConfig,
	})
	if err != nil {
		return fmt.Errorf("failed to open websocket: %w", err)
	}

	streamCtx, cancel := context.WithCancel(ctx)

	c.connMu.Lock()
	c.conn = conn
	c.stopped.Store(false)
	c.paused.Store(false)
	c.lastMsgTs = time.Now()
	c.streamCancel = cancel
	c.connMu.Unlock()

	go c.keepAlive(streamCtx)
	go c.readAndProcessMessages(conn, callbacks)

	return nil
}

type connectionOptions struct {
	sampleRate int
	encoding   string
	model      string
	language   string

	websocketConfig
}

func connectWebsocket(apiKey string, options connectionOptions) (*websocket.Conn, error) {
	listenUrl, _ := url.Parse(defaultListenURL)
	queryParams := listenUrl.Query()
	queryParams.Set("encoding", options.encoding)
	queryParams.Set("sample_rate", strconv.Itoa(options.sampleRate))
	queryParams.Set("channels", "1")
	queryParams.Set("model", options.model)
	if options.language != "" {
		queryParams.Set("language", options.language)
	}
	queryParams.Set("smart_format", "true")
	if options.shouldEnhanceSpeechEndingDetection {
		queryParams.Set("utterance_end_ms", "1000")
		queryParams.Set("interim_results", "true")
	} else if options.shouldRequestInterimResults {
		queryParams.Set("interim_results", "true")
	}
	queryParams.Set("endpointing", "300")
	if options.shouldDetectSpeechStart || options.shouldEnhanceSpeechEndingDetection {
		queryParams.Set("vad_events", "true")
	}

	listenUrl.RawQuery = queryParams.Encode()
	conn, _, err := websocket.DefaultDialer.Dial(listenUrl.String(),
		http.Header{"Authorization": {"Token " + apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}

	return conn, err
}

// SendAudio forwards one audio chunk to the live stream. Chunks sent while
// the stream is paused are dropped without touching the socket.
func (c *Client) SendAudio(audio []byte) error {
	if c.paused.Load() {
		return nil
	}

	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("no active deepgram stream")
	}

	c.lastMsgTs = time.Now()
	if err := c.conn.WriteMessage(websocket.BinaryMessage, audio); err != nil {
		return fmt.Errorf("failed to write to deepgram client: %w", err)
	}
	return nil
}

// PauseStreaming stops forwarding audio. The socket stays open and is kept
// alive so the stream can be resumed without a reconnect.
func (c *Client) PauseStreaming() error {
	c.paused.Store(true)
	return nil
}

func (c *Client) ResumeStreaming() error {
	c.paused.Store(false)
	return nil
}

// StopStreaming closes the live stream. Safe to call with no stream open.
func (c *Client) StopStreaming() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	c.stopped.Store(true)
	if c.streamCancel != nil {
		c.streamCancel()
		c.streamCancel = nil
	}

	if c.conn != nil {
		if err := c.conn.WriteJSON(struct {
			Type string `json:"type"`
		}{Type: string(api.TypeCloseStreamResponse)}); err != nil {
			return fmt.Errorf("failed to close deepgram stream through websocket: %w", err)
		}
	}
	return nil
}

func (c *Client) sendKeepAlive() {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return
	}

	if err := c.conn.WriteJSON(
		struct {
			Type string `json:"type"`
		}{
			Type: "KeepAlive",
		}); err != nil {
		log.Println("Failed to write to deepgram client", "error", err)
	}
}

// keepAlive pings the socket while no audio is flowing (silence or pause) so
// deepgram does not close the stream from its side.
func (c *Client) keepAlive(ctx context.Context) {
	const interval = 3 * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastKeepAliveTime *time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.connMu.Lock()
			idle := time.Since(c.lastMsgTs) >= interval
			c.connMu.Unlock()
			if !idle {
				lastKeepAliveTime = nil
				continue
			}
			if lastKeepAliveTime == nil || time.Since(*lastKeepAliveTime) >= interval {
				c.sendKeepAlive()
				lastKeepAliveTime = utils.Ptr(time.Now())
			}
		}
	}
}

func (c *Client) readAndProcessMessages(conn *websocket.Conn, callbacks callbackConfig) {
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if err.Error() != "websocket: close 1000 (normal)" {
				log.Println("Failed to read deepgram websocket message", "error", err)
			}

			c.connMu.Lock()
			c.conn = nil
			c.connMu.Unlock()
			conn.Close()

			if !c.stopped.Load() {
				callbacks.streamClosedCallback(fmt.Errorf("deepgram stream closed: %w", err))
			}
			return
		}
		if msgType != websocket.BinaryMessage {
			c.processMessage(msg, callbacks)
		}
	}
}

func (c *Client) processMessage(msg []byte, callbacks callbackConfig) {
	var parsedMsg struct {
		Type string `json:"type"`
	}
	err := json.Unmarshal(msg, &parsedMsg)
	if err != nil {
		log.Println("Failed to unmarshal deepgram message", "error", err)
		return
	}

	switch api.TypeResponse(parsedMsg.Type) {
	case api.TypeMessageResponse:
		var msgResp api.MessageResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			log.Println("Failed to unmarshal deepgram message", err)
			return
		}
		if len(msgResp.Channel.Alternatives) == 0 {
			return
		}

		alternative := msgResp.Channel.Alternatives[0]
		transcript := strings.TrimSpace(alternative.Transcript)
		if len(transcript) == 0 {
			return
		}

		if msgResp.IsFinal {
			callbacks.transcriptionCallback(speechtotext.Candidate{
				Transcript: transcript,
				Confidence: alternative.Confidence,
				IsFinal:    true,
			})
		} else {
			callbacks.interimTranscriptionCallback(transcript)
		}

	case api.TypeUtteranceEndResponse:
		var msgResp api.UtteranceEndResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			log.Println("Failed to unmarshal deepgram message", err)
			return
		}

		callbacks.endSpeechCallback()

	case api.TypeSpeechStartedResponse:
		var msgResp api.SpeechStartedResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			log.Println("Failed to unmarshal deepgram message", err)
			return
		}

		callbacks.startSpeechCallback()
	}
}
