package presto

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sonic-data/sonic-go/message"
)

func TestInferType(t *testing.T) {
	for _, tt := range []struct {
		native string
		want   message.InferredType
	}{
		{native: "boolean", want: message.TypeBoolean},
		{native: "bigint", want: message.TypeNumber},
		{native: "double", want: message.TypeNumber},
		{native: "varchar", want: message.TypeString},
		{native: "varchar(255)", want: message.TypeString},
		{native: "timestamp", want: message.TypeString},
		{native: "timestamp with time zone", want: message.TypeString},
		{native: "date", want: message.TypeString},
		{native: "time", want: message.TypeString},
		{native: "array", want: message.TypeArray},
		{native: "array(integer)", want: message.TypeArray},
		{native: "varbinary", want: message.TypeArray},
		{native: "json", want: message.TypeObject},
		{native: "map", want: message.TypeObject},
		{native: "map(varchar, bigint)", want: message.TypeObject},
		{native: "BOOLEAN", want: message.TypeBoolean},
		// unrecognized native types default to String
		{native: "hyperloglog", want: message.TypeString},
		{native: "", want: message.TypeString},
	} {
		t.Run(tt.native, func(t *testing.T) {
			require.Equal(t, tt.want, inferType(tt.native))
		})
	}
}
