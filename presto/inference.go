package presto

import (
	"strings"

	"github.com/sonic-data/sonic-go/message"
)

// nativeTypes maps backend-native type families to generic column types.
var nativeTypes = map[string]message.InferredType{
	"boolean": message.TypeBoolean,

	"tinyint":  message.TypeNumber,
	"smallint": message.TypeNumber,
	"integer":  message.TypeNumber,
	"bigint":   message.TypeNumber,
	"real":     message.TypeNumber,
	"double":   message.TypeNumber,
	"decimal":  message.TypeNumber,

	"varchar":                  message.TypeString,
	"char":                     message.TypeString,
	"date":                     message.TypeString,
	"time":                     message.TypeString,
	"time with time zone":      message.TypeString,
	"timestamp":                message.TypeString,
	"timestamp with time zone": message.TypeString,

	"array":     message.TypeArray,
	"varbinary": message.TypeArray,

	"json": message.TypeObject,
	"map":  message.TypeObject,
	"row":  message.TypeObject,
}

// inferType maps a backend-native type name to its generic type.
// Parameterized names like varchar(255) or array(integer) resolve by
// their base name; unrecognized names default to String.
func inferType(native string) message.InferredType {
	name := strings.ToLower(strings.TrimSpace(native))
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = name[:i]
	}
	if t, ok := nativeTypes[name]; ok {
		return t
	}

	return message.TypeString
}
