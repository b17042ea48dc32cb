package canonical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLooksStructured(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{name: "object", content: `{"a":1}`, want: true},
		{name: "array", content: `[1,2,3]`, want: true},
		{name: "leading whitespace then object", content: "  \t\n {\"a\":1}", want: true},
		{name: "scalar", content: `42`, want: false},
		{name: "plain text", content: "hello world", want: false},
		{name: "empty", content: "", want: false},
		{name: "whitespace only", content: "   ", want: false},
		{name: "single character", content: "x", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LooksStructured(tt.content))
		})
	}
}

func TestCanonicalize(t *testing.T) {
	exclude := map[string]struct{}{"timestamp": {}, "ts": {}}

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "removes excluded top-level fields",
			content: `{"v":42,"timestamp":1000}`,
			want:    `{"v":42}`,
		},
		{
			name:    "sorts keys",
			content: `{"b":2,"a":1}`,
			want:    `{"a":1,"b":2}`,
		},
		{
			name:    "nested excluded field preserved",
			content: `{"outer":{"timestamp":5,"x":1},"timestamp":9}`,
			want:    `{"outer":{"timestamp":5,"x":1}}`,
		},
		{
			name:    "nested objects sorted recursively",
			content: `{"a":{"z":1,"y":2}}`,
			want:    `{"a":{"y":2,"z":1}}`,
		},
		{
			name:    "array order preserved",
			content: `{"a":[3,1,2]}`,
			want:    `{"a":[3,1,2]}`,
		},
		{
			name:    "top-level array returned verbatim",
			content: `[{"b":1,"a":2}]`,
			want:    `[{"b":1,"a":2}]`,
		},
		{
			name:    "parse error returned verbatim",
			content: `{"a":`,
			want:    `{"a":`,
		},
		{
			name:    "plain text returned verbatim",
			content: "not structured",
			want:    "not structured",
		},
		{
			name:    "large integers preserved exactly",
			content: `{"ts":1,"v":9007199254740993}`,
			want:    `{"v":9007199254740993}`,
		},
		{
			name:    "trailing garbage rejected",
			content: `{"a":1} trailing`,
			want:    `{"a":1} trailing`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Canonicalize(tt.content, exclude))
		})
	}
}

func TestCanonicalizeEquivalence(t *testing.T) {
	exclude := map[string]struct{}{"timestamp": {}}

	a := Canonicalize(`{"v":42,"timestamp":1000}`, exclude)
	b := Canonicalize(`{"timestamp":2000,"v":42}`, exclude)
	c := Canonicalize(`{"v":43,"timestamp":1000}`, exclude)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestExtractField(t *testing.T) {
	tests := []struct {
		name    string
		content string
		field   string
		want    string
		wantOK  bool
	}{
		{name: "number", content: `{"timestamp":1000}`, field: "timestamp", want: "1000", wantOK: true},
		{name: "64-bit number", content: `{"ts":8589934592}`, field: "ts", want: "8589934592", wantOK: true},
		{name: "string", content: `{"name":"abc"}`, field: "name", want: "abc", wantOK: true},
		{name: "bool", content: `{"flag":true}`, field: "flag", want: "true", wantOK: true},
		{name: "absent", content: `{"a":1}`, field: "b", wantOK: false},
		{name: "null", content: `{"a":null}`, field: "a", wantOK: false},
		{name: "not an object", content: `[1,2]`, field: "a", wantOK: false},
		{name: "parse error", content: `{`, field: "a", wantOK: false},
		{name: "nested object rendered", content: `{"a":{"b":1}}`, field: "a", want: `{"b":1}`, wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractField(tt.content, tt.field)
			require.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestValid(t *testing.T) {
	assert.True(t, Valid(`{"a":1}`))
	assert.True(t, Valid(`[1,2]`))
	assert.True(t, Valid(`42`))
	assert.False(t, Valid(``))
	assert.False(t, Valid(`  `))
	assert.False(t, Valid(`{"a":`))
}

func TestDeepCopyObject(t *testing.T) {
	obj, ok := DecodeObject(`{"a":{"b":[1,2]},"c":3}`)
	require.True(t, ok)

	clone := DeepCopyObject(obj)
	clone["a"].(map[string]any)["b"].([]any)[0] = "mutated"

	original, err := EncodeObject(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"a":{"b":[1,2]},"c":3}`, original)
}
