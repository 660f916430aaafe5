package deepgram

import (
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultModel     = "nova-3"
	defaultListenURL = "wss://api.deepgram.com/v1/listen"
	prerecordedURL   = "https://api.deepgram.com/v1/listen"
)

// Client talks to Deepgram's listen API, both the streaming websocket and
// the prerecorded endpoint.
type Client struct {
	apiKey string
	model  string

	httpClient *http.Client

	connMu    sync.Mutex
	conn      *websocket.Conn
	paused    atomic.Bool
	stopped   atomic.Bool
	lastMsgTs time.Time

	streamCancel func()
}

type ClientOption func(*Client)

func WithAPIKey(apiKey string) ClientOption {
	return func(c *Client) {
		c.apiKey = apiKey
	}
}

func WithModel(model string) ClientOption {
	return func(c *Client) {
		c.model = model
	}
}

func NewClient(opts ...ClientOption) *Client {
	client := &Client{
		model:      defaultModel,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	for _, opt := range opts {
		opt(client)
	}

	if client.apiKey == "" {
		if apiKey, ok := os.LookupEnv("DEEPGRAM_API_KEY"); ok {
			client.apiKey = apiKey
		}
	}

	return client
}

// Init reports whether the client is usable at all. It does not open a
// connection.
func (c *Client) Init() bool {
	return c != nil && c.apiKey != ""
}
