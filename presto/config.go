package presto

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/sonic-data/sonic-go/internal/xerrors"
	"github.com/sonic-data/sonic-go/log"
)

const (
	defaultRetryDelay = time.Second
	defaultUser       = "sonic"
)

var errMissingURL = xerrors.Wrap(errors.New("presto: missing 'url' in source config"))

// HTTPClient is the injected capability used to issue backend requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// sourceConfig is the driver-recognized part of the query's backend
// configuration blob.
type sourceConfig struct {
	URL        string `json:"url"`
	User       string `json:"user,omitempty"`
	MaxRetries int    `json:"maxRetries,omitempty"`
	RetryDelay string `json:"retryDelay,omitempty"`
	Watermark  int    `json:"watermark,omitempty"`
}

func parseConfig(blob json.RawMessage) (c sourceConfig, _ error) {
	c = sourceConfig{User: defaultUser}
	if len(blob) > 0 {
		if err := json.Unmarshal(blob, &c); err != nil {
			return c, xerrors.WithStackTrace(fmt.Errorf("presto: malformed source config: %w", err))
		}
	}
	if c.URL == "" {
		return c, xerrors.WithStackTrace(errMissingURL)
	}
	if c.MaxRetries < 0 {
		return c, xerrors.WithStackTrace(fmt.Errorf("presto: negative maxRetries: %d", c.MaxRetries))
	}
	if c.Watermark < 0 {
		return c, xerrors.WithStackTrace(fmt.Errorf("presto: negative watermark: %d", c.Watermark))
	}

	return c, nil
}

func (c sourceConfig) retryDelay() (time.Duration, error) {
	if c.RetryDelay == "" {
		return defaultRetryDelay, nil
	}
	d, err := time.ParseDuration(c.RetryDelay)
	if err != nil {
		return 0, xerrors.WithStackTrace(fmt.Errorf("presto: malformed retryDelay: %w", err))
	}
	if d < 0 {
		return 0, xerrors.WithStackTrace(fmt.Errorf("presto: negative retryDelay: %s", d))
	}

	return d, nil
}

type Option func(d *Driver)

func WithHTTPClient(client HTTPClient) Option {
	return func(d *Driver) {
		d.httpClient = client
	}
}

func WithClock(clock clockwork.Clock) Option {
	return func(d *Driver) {
		d.clock = clock
	}
}

func WithLogger(l log.Logger) Option {
	return func(d *Driver) {
		d.logger = l
	}
}

// WithMaxRetries overrides the config blob's maxRetries.
func WithMaxRetries(n int) Option {
	return func(d *Driver) {
		if n >= 0 {
			d.maxRetries = n
		}
	}
}

// WithRetryDelay overrides the config blob's retryDelay.
func WithRetryDelay(delay time.Duration) Option {
	return func(d *Driver) {
		if delay >= 0 {
			d.retryDelay = delay
		}
	}
}

// WithWatermark overrides the config blob's watermark.
func WithWatermark(n int) Option {
	return func(d *Driver) {
		if n >= 0 {
			d.watermark = n
		}
	}
}
