package database

import (
	"reflect"
	"testing"
)

func TestParseReplicaURLs(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "empty string",
			input: "",
			want:  nil,
		},
		{
			name:  "single URL",
			input: "postgres://replica1/gatehouse",
			want:  []string{"postgres://replica1/gatehouse"},
		},
		{
			name:  "multiple URLs",
			input: "postgres://replica1/gatehouse,postgres://replica2/gatehouse",
			want:  []string{"postgres://replica1/gatehouse", "postgres://replica2/gatehouse"},
		},
		{
			name:  "whitespace trimmed",
			input: " postgres://replica1/gatehouse , postgres://replica2/gatehouse ",
			want:  []string{"postgres://replica1/gatehouse", "postgres://replica2/gatehouse"},
		},
		{
			name:  "empty segments dropped",
			input: "postgres://replica1/gatehouse,,",
			want:  []string{"postgres://replica1/gatehouse"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseReplicaURLs(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseReplicaURLs(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
