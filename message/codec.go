package message

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sonic-data/sonic-go/internal/xerrors"
)

const (
	variantSuccess = "success"
	variantError   = "error"
)

var errUnknownEvent = xerrors.Wrap(errors.New("message: unknown event code"))

// envelope is the wire shape of every protocol message.
type envelope struct {
	Event   Event           `json:"e"`
	Variant string          `json:"v,omitempty"`
	Payload json.RawMessage `json:"p,omitempty"`
}

type queryPayload struct {
	TraceID string          `json:"trace_id,omitempty"`
	Auth    string          `json:"auth,omitempty"`
	Config  json.RawMessage `json:"config"`
}

type progressPayload struct {
	Status ProgressKind `json:"s"`
	Value  int64        `json:"p"`
	Total  *int64       `json:"t,omitempty"`
	Unit   string       `json:"u,omitempty"`
}

// Marshal serializes m into its payload bytes.
func Marshal(m Message) ([]byte, error) {
	e := envelope{Event: m.Event()}
	var err error
	switch m := m.(type) {
	case *Query:
		e.Variant = m.Text
		e.Payload, err = json.Marshal(queryPayload{
			TraceID: m.TraceID,
			Auth:    m.Auth,
			Config:  m.Config,
		})
	case *Acknowledge:
	case *Progress:
		e.Payload, err = json.Marshal(progressPayload{
			Status: m.Kind,
			Value:  m.Value,
			Total:  m.Total,
			Unit:   m.Unit,
		})
	case *TypeSchema:
		cols := make([][2]string, 0, len(m.Columns))
		for _, c := range m.Columns {
			cols = append(cols, [2]string{c.Name, string(c.Type)})
		}
		e.Payload, err = json.Marshal(cols)
	case *DataRow:
		e.Payload, err = json.Marshal(m.Values)
	case *Done:
		if m.Success {
			e.Variant = variantSuccess
		} else {
			e.Variant = variantError
		}
		if len(m.Errors) > 0 {
			e.Payload, err = json.Marshal(m.Errors)
		}
	default:
		return nil, xerrors.WithStackTrace(fmt.Errorf("message: cannot marshal %T", m))
	}
	if err != nil {
		return nil, xerrors.WithStackTrace(err)
	}

	return json.Marshal(e)
}

// Unmarshal parses payload bytes into a typed protocol message.
func Unmarshal(b []byte) (Message, error) {
	var e envelope
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, xerrors.WithStackTrace(fmt.Errorf("message: malformed envelope: %w", err))
	}

	switch e.Event {
	case EventQuery:
		var p queryPayload
		if len(e.Payload) > 0 {
			if err := json.Unmarshal(e.Payload, &p); err != nil {
				return nil, xerrors.WithStackTrace(fmt.Errorf("message: malformed query payload: %w", err))
			}
		}

		return &Query{
			TraceID: p.TraceID,
			Auth:    p.Auth,
			Text:    e.Variant,
			Config:  p.Config,
		}, nil
	case EventAcknowledge:
		return &Acknowledge{}, nil
	case EventProgress:
		var p progressPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return nil, xerrors.WithStackTrace(fmt.Errorf("message: malformed progress payload: %w", err))
		}

		return &Progress{
			Kind:  p.Status,
			Value: p.Value,
			Total: p.Total,
			Unit:  p.Unit,
		}, nil
	case EventTypeSchema:
		var cols [][2]string
		if err := json.Unmarshal(e.Payload, &cols); err != nil {
			return nil, xerrors.WithStackTrace(fmt.Errorf("message: malformed type schema payload: %w", err))
		}
		schema := &TypeSchema{Columns: make([]Column, 0, len(cols))}
		for _, c := range cols {
			schema.Columns = append(schema.Columns, Column{Name: c[0], Type: InferredType(c[1])})
		}

		return schema, nil
	case EventDataRow:
		var values []interface{}
		if err := json.Unmarshal(e.Payload, &values); err != nil {
			return nil, xerrors.WithStackTrace(fmt.Errorf("message: malformed data row payload: %w", err))
		}

		return &DataRow{Values: values}, nil
	case EventDone:
		done := &Done{Success: e.Variant == variantSuccess}
		if len(e.Payload) > 0 {
			if err := json.Unmarshal(e.Payload, &done.Errors); err != nil {
				return nil, xerrors.WithStackTrace(fmt.Errorf("message: malformed done payload: %w", err))
			}
		}

		return done, nil
	default:
		return nil, xerrors.WithStackTrace(fmt.Errorf("%w: %q", errUnknownEvent, e.Event))
	}
}
