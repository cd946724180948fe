package stack

import (
	"runtime"
	"strconv"
	"strings"
)

// Record returns a "function(file.go:line)" marker for the caller at the
// given depth. Depth 0 is the caller of Record itself.
func Record(depth int) string {
	function, file, line, _ := runtime.Caller(depth + 1)

	name := runtime.FuncForPC(function).Name()
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.LastIndexByte(file, '/'); i >= 0 {
		file = file[i+1:]
	}

	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('(')
	b.WriteString(file)
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(line))
	b.WriteByte(')')

	return b.String()
}
