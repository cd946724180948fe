package message

import (
	"encoding/json"
)

// Event is the single-letter wire code of a protocol message.
type Event string

const (
	EventQuery       = Event("Q")
	EventAcknowledge = Event("A")
	EventProgress    = Event("P")
	EventTypeSchema  = Event("T")
	EventDataRow     = Event("O")
	EventDone        = Event("D")
)

// Message is one typed protocol message of a query stream.
type Message interface {
	Event() Event
}

var (
	_ Message = (*Query)(nil)
	_ Message = (*Acknowledge)(nil)
	_ Message = (*Progress)(nil)
	_ Message = (*TypeSchema)(nil)
	_ Message = (*DataRow)(nil)
	_ Message = (*Done)(nil)
)

// Query starts a session. It is immutable for the session lifetime.
type Query struct {
	// ID is assigned by the server, zero until then.
	ID      int64
	TraceID string
	// Auth is an opaque authorization token.
	Auth string
	// Text is the raw query text.
	Text string
	// Config is the backend-specific configuration blob.
	Config json.RawMessage
}

func (*Query) Event() Event { return EventQuery }

// Acknowledge is sent by the client after observing Done.
type Acknowledge struct{}

func (*Acknowledge) Event() Event { return EventAcknowledge }

type ProgressKind int32

const (
	ProgressStarted = ProgressKind(iota)
	ProgressRunning
)

// Progress reports backend work units completed since the previous
// Progress message of the same session.
type Progress struct {
	Kind  ProgressKind
	Value int64
	// Total is the current denominator, absent when unknown.
	Total *int64
	Unit  string
}

func (*Progress) Event() Event { return EventProgress }

// InferredType is the generic column type inferred from a backend-native
// type name.
type InferredType string

const (
	TypeBoolean = InferredType("Boolean")
	TypeNumber  = InferredType("Number")
	TypeString  = InferredType("String")
	TypeArray   = InferredType("Array")
	TypeObject  = InferredType("Object")
)

type Column struct {
	Name string
	Type InferredType
}

// TypeSchema carries the inferred column types, emitted at most once per
// session before the first data row.
type TypeSchema struct {
	Columns []Column
}

func (*TypeSchema) Event() Event { return EventTypeSchema }

// DataRow carries one result row, values ordered as the schema columns.
type DataRow struct {
	Values []interface{}
}

func (*DataRow) Event() Event { return EventDataRow }

// Done terminates a session stream. No message follows it.
type Done struct {
	Success bool
	Errors  []string
}

func (*Done) Event() Event { return EventDone }

// DoneOK returns a successful terminal message.
func DoneOK() *Done {
	return &Done{Success: true}
}

// DoneWithError returns a failed terminal message describing err.
func DoneWithError(err error) *Done {
	return &Done{Success: false, Errors: []string{err.Error()}}
}
