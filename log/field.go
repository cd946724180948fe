package log

import (
	"fmt"
	"strconv"
	"time"
)

type FieldType int

const (
	InvalidType FieldType = iota

	IntType
	Int64Type
	StringType
	BoolType
	DurationType
	ErrorType
	AnyType
)

// Field is typed key-value pair attached to a log message.
type Field struct {
	ftype FieldType
	key   string

	vint int64
	vstr string
	verr error
	vany interface{}
}

func (f Field) Key() string {
	return f.key
}

func (f Field) Type() FieldType {
	return f.ftype
}

func (f Field) IntValue() int {
	f.checkType(IntType)

	return int(f.vint)
}

func (f Field) Int64Value() int64 {
	f.checkType(Int64Type)

	return f.vint
}

func (f Field) StringValue() string {
	f.checkType(StringType)

	return f.vstr
}

func (f Field) BoolValue() bool {
	f.checkType(BoolType)

	return f.vint != 0
}

func (f Field) DurationValue() time.Duration {
	f.checkType(DurationType)

	return time.Duration(f.vint)
}

func (f Field) ErrorValue() error {
	f.checkType(ErrorType)

	return f.verr
}

func (f Field) AnyValue() interface{} {
	f.checkType(AnyType)

	return f.vany
}

func (f Field) checkType(want FieldType) {
	if f.ftype != want {
		panic(fmt.Sprintf("bad type of field %q: have %d, want %d", f.key, f.ftype, want))
	}
}

// String renders the field value for text sinks.
func (f Field) String() string {
	switch f.ftype {
	case IntType, Int64Type:
		return strconv.FormatInt(f.vint, 10)
	case StringType:
		return f.vstr
	case BoolType:
		return strconv.FormatBool(f.vint != 0)
	case DurationType:
		return time.Duration(f.vint).String()
	case ErrorType:
		if f.verr == nil {
			return "<nil>"
		}

		return f.verr.Error()
	case AnyType:
		return fmt.Sprint(f.vany)
	default:
		panic(fmt.Sprintf("unknown type of field %q: %d", f.key, f.ftype))
	}
}

func Int(k string, v int) Field {
	return Field{ftype: IntType, key: k, vint: int64(v)}
}

func Int64(k string, v int64) Field {
	return Field{ftype: Int64Type, key: k, vint: v}
}

func String(k, v string) Field {
	return Field{ftype: StringType, key: k, vstr: v}
}

func Bool(k string, v bool) Field {
	f := Field{ftype: BoolType, key: k}
	if v {
		f.vint = 1
	}

	return f
}

func Duration(k string, v time.Duration) Field {
	return Field{ftype: DurationType, key: k, vint: int64(v)}
}

func Error(v error) Field {
	return NamedError("error", v)
}

func NamedError(k string, v error) Field {
	return Field{ftype: ErrorType, key: k, verr: v}
}

func Any(k string, v interface{}) Field {
	return Field{ftype: AnyType, key: k, vany: v}
}
