package log

import "strings"

type Level int

const (
	TRACE = Level(iota)
	DEBUG
	INFO
	WARN
	ERROR
	FATAL

	QUIET
)

const (
	lblTrace = "TRACE"
	lblDebug = "DEBUG"
	lblInfo  = "INFO"
	lblWarn  = "WARN"
	lblError = "ERROR"
	lblFatal = "FATAL"
	lblQuiet = "QUIET"
)

func (l Level) String() string {
	switch l {
	case TRACE:
		return lblTrace
	case DEBUG:
		return lblDebug
	case INFO:
		return lblInfo
	case WARN:
		return lblWarn
	case ERROR:
		return lblError
	case FATAL:
		return lblFatal
	default:
		return lblQuiet
	}
}

func FromString(l string) Level {
	switch strings.ToUpper(l) {
	case lblTrace:
		return TRACE
	case lblDebug:
		return DEBUG
	case lblInfo:
		return INFO
	case lblWarn:
		return WARN
	case lblError:
		return ERROR
	case lblFatal:
		return FATAL
	default:
		return QUIET
	}
}
