package studio

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixelweave-server/modules/common/apperr"
)

func TestParseParams(t *testing.T) {
	params, err := ParseParams(`{"garment_type":"coat","background":{"location":"studio","lighting":""}}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"garment_type": "coat",
		"background":   map[string]any{"location": "studio"},
	}, params)

	params, err = ParseParams("")
	require.NoError(t, err)
	assert.Empty(t, params)
}

func TestParseParamsKeepsFreeFormKeys(t *testing.T) {
	params, err := ParseParams(`{"garment_type":"t-shirt",` +
		`"extra":{"props":"sunglasses","style":"street"},` +
		`"model":{"gender":"non-binary","accessories":"watch"}}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"garment_type": "t-shirt",
		"extra":        map[string]any{"props": "sunglasses", "style": "street"},
		"model":        map[string]any{"gender": "non-binary", "accessories": "watch"},
	}, params)
}

func TestParseParamsRejectsMalformed(t *testing.T) {
	cases := []struct {
		name  string
		raw   string
		field string
	}{
		{"not an object", `[1,2]`, "parameters"},
		{"unknown top-level key", `{"garment_type":"coat","unknown":1}`, "parameters"},
		{"non-string value", `{"model":{"age":30}}`, ""},
		{"trailing data", `{"garment_type":"coat"} {}`, "parameters"},
		{"value too long", `{"extra":{"props":"` + strings.Repeat("x", 201) + `"}}`, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseParams(tc.raw)
			require.ErrorIs(t, err, apperr.ErrValidation)

			var fe *apperr.FieldError
			require.ErrorAs(t, err, &fe)
			if tc.field != "" {
				assert.Equal(t, tc.field, fe.Field)
			}
		})
	}
}
