package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalSortedKeys(t *testing.T) {
	obj := map[string]any{
		"zebra": int64(1),
		"alpha": int64(2),
		"mike":  int64(3),
	}
	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"mike":3,"zebra":1}`, string(result))
}

func TestMarshalCanonicalNested(t *testing.T) {
	obj := map[string]any{
		"trace": []any{
			map[string]any{"cycle": int64(1), "category": "added"},
		},
		"name": "s",
	}
	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"name":"s","trace":[{"category":"added","cycle":1}]}`, string(result))
}

func TestMarshalCanonicalFloatsShortestForm(t *testing.T) {
	tests := []struct {
		in   float32
		want string
	}{
		{10, "10"},
		{12.5, "12.5"},
		{0, "0"},
		{-3.25, "-3.25"},
	}
	for _, tt := range tests {
		result, err := MarshalCanonical(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, string(result))
	}
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	result, err := MarshalCanonical("<layer> & co")
	require.NoError(t, err)
	assert.Equal(t, `"<layer> & co"`, string(result))
}

func TestMarshalCanonicalNFCNormalization(t *testing.T) {
	// e + combining acute (NFD) normalizes to precomposed U+00E9 (NFC).
	decomposed := "e\u0301"
	precomposed := "\u00e9"

	a, err := MarshalCanonical(decomposed)
	require.NoError(t, err)
	b, err := MarshalCanonical(precomposed)
	require.NoError(t, err)
	assert.Equal(t, string(b), string(a))
}

func TestMarshalCanonicalRejectsNullAndUnknownTypes(t *testing.T) {
	_, err := MarshalCanonical(nil)
	assert.ErrorContains(t, err, "null is forbidden")

	_, err = MarshalCanonical(struct{}{})
	assert.ErrorContains(t, err, "unsupported type")
}
