// Package presto implements the paginating query driver: it polls the
// backend's request/poll HTTP API and turns every page into protocol
// messages under the publisher contract.
package presto

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/sonic-data/sonic-go/internal/backoff"
	"github.com/sonic-data/sonic-go/internal/wait"
	"github.com/sonic-data/sonic-go/internal/xerrors"
	"github.com/sonic-data/sonic-go/log"
	"github.com/sonic-data/sonic-go/message"
	"github.com/sonic-data/sonic-go/publisher"
)

const (
	statementPath = "/v1/statement"
	userHeader    = "X-Presto-User"
	sourceHeader  = "X-Presto-Source"
	sourceName    = "sonic"

	progressUnit = "splits"
)

// BackendError is a backend-side query failure. It ends the session with
// Done(success=false), never the connection.
type BackendError struct {
	Name    string
	Message string
	State   string
}

func (e *BackendError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("presto: %s: %s", e.Name, e.Message)
	}

	return fmt.Sprintf("presto: query %s: %s", strings.ToLower(e.State), e.Message)
}

var _ publisher.Driver = (*Driver)(nil)

// Driver drives one query against a paginating backend. All mutable
// state belongs to the owning publisher session.
type Driver struct {
	httpClient HTTPClient
	clock      clockwork.Clock
	logger     log.Logger

	endpoint   string
	user       string
	text       string
	traceID    string
	maxRetries int
	retryDelay time.Duration
	watermark  int

	started          bool
	schemaSent       bool
	nextURI          string
	partialCancelURI string
	lastCompleted    int64
}

// New builds a driver for q from its backend config blob.
func New(q *message.Query, opts ...Option) (*Driver, error) {
	cfg, err := parseConfig(q.Config)
	if err != nil {
		return nil, err
	}
	delay, err := cfg.retryDelay()
	if err != nil {
		return nil, err
	}
	d := &Driver{
		httpClient: http.DefaultClient,
		clock:      clockwork.NewRealClock(),
		logger:     log.Nop(),
		endpoint:   strings.TrimSuffix(cfg.URL, "/"),
		user:       cfg.User,
		text:       q.Text,
		traceID:    q.TraceID,
		maxRetries: cfg.MaxRetries,
		retryDelay: delay,
		watermark:  cfg.Watermark,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}

	return d, nil
}

// NewPublisher builds the driver and wraps it into a publisher session
// configured with the driver's watermark.
func NewPublisher(q *message.Query, opts ...Option) (*publisher.Publisher, error) {
	d, err := New(q, opts...)
	if err != nil {
		return nil, err
	}

	return publisher.New(d,
		publisher.WithWatermark(d.watermark),
		publisher.WithLogger(d.logger),
	), nil
}

// Next fetches one backend page, retrying transient failures of the same
// request up to maxRetries with a fixed delay between attempts.
func (d *Driver) Next(ctx context.Context) (_ []message.Message, last bool, _ error) {
	var (
		page *queryResponse
		err  error
	)
	for attempt := 0; ; attempt++ {
		page, err = d.fetchPage(ctx)
		if err == nil {
			break
		}
		if !xerrors.IsRetryable(err) || attempt >= d.maxRetries {
			return nil, false, err
		}
		d.logger.Log(log.WithLevel(ctx, log.DEBUG), "retrying backend request",
			log.Int("attempt", attempt+1),
			log.Duration("delay", d.retryDelay),
			log.Error(err),
		)
		if werr := wait.Wait(ctx, d.clock, backoff.Fixed(d.retryDelay), attempt); werr != nil {
			return nil, false, werr
		}
	}

	d.started = true
	d.nextURI = page.NextURI
	if page.PartialCancelURI != "" {
		d.partialCancelURI = page.PartialCancelURI
	}

	msgs := make([]message.Message, 0, len(page.Data)+2)
	if !d.schemaSent && len(page.Columns) > 0 {
		msgs = append(msgs, schemaOf(page.Columns))
		d.schemaSent = true
	}

	// one progress delta per page, rows or not; the denominator is
	// always the current page's total
	delta := page.Stats.CompletedSplits - d.lastCompleted
	d.lastCompleted = page.Stats.CompletedSplits
	total := page.Stats.TotalSplits
	msgs = append(msgs, &message.Progress{
		Kind:  message.ProgressRunning,
		Value: delta,
		Total: &total,
		Unit:  progressUnit,
	})

	for _, row := range page.Data {
		msgs = append(msgs, &message.DataRow{Values: []interface{}(row)})
	}

	if page.Error.Message != "" || page.Stats.failed() {
		return msgs, false, xerrors.WithStackTrace(&BackendError{
			Name:    page.Error.ErrorName,
			Message: page.Error.Message,
			State:   page.Stats.State,
		})
	}

	return msgs, page.NextURI == "", nil
}

// Cancel issues a best-effort cancellation request against the backend's
// cancellation reference, when one was supplied.
func (d *Driver) Cancel(ctx context.Context) error {
	uri := d.partialCancelURI
	if uri == "" {
		uri = d.nextURI
	}
	if uri == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, uri, nil)
	if err != nil {
		return xerrors.WithStackTrace(err)
	}
	req.Header.Set(userHeader, d.user)
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return xerrors.WithStackTrace(err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return nil
}

// fetchPage performs a single request attempt: the initial statement
// POST, or a GET on the last continuation reference.
func (d *Driver) fetchPage(ctx context.Context) (*queryResponse, error) {
	var (
		req *http.Request
		err error
	)
	if !d.started {
		req, err = http.NewRequestWithContext(ctx,
			http.MethodPost, d.endpoint+statementPath, strings.NewReader(d.text),
		)
	} else {
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, d.nextURI, nil)
	}
	if err != nil {
		return nil, xerrors.WithStackTrace(err)
	}
	req.Header.Set(userHeader, d.user)
	req.Header.Set(sourceHeader, sourceName)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, xerrors.WithStackTrace(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusServiceUnavailable:
		// the backend asks to repeat the very same request
		return nil, xerrors.WithStackTrace(xerrors.Retryable(
			fmt.Errorf("presto: backend busy: %s", resp.Status),
			xerrors.WithName("SERVICE_UNAVAILABLE"),
		))
	default:
		return nil, xerrors.WithStackTrace(fmt.Errorf("presto: unexpected backend status: %s", resp.Status))
	}

	var page queryResponse
	if err = json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, xerrors.WithStackTrace(fmt.Errorf("presto: malformed backend response: %w", err))
	}

	return &page, nil
}

func schemaOf(columns []queryColumn) *message.TypeSchema {
	schema := &message.TypeSchema{
		Columns: make([]message.Column, 0, len(columns)),
	}
	for _, c := range columns {
		schema.Columns = append(schema.Columns, message.Column{
			Name: c.Name,
			Type: inferType(c.Type),
		})
	}

	return schema
}
