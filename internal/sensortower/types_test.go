package sensortower

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityFragmentKeyFallbacks(t *testing.T) {
	tests := []struct {
		name        string
		payload     string
		absolute    float64
		comparison  float64
		delta       float64
		transformed float64
	}{
		{
			name:        "units-prefixed keys",
			payload:     `{"units_absolute": 700, "comparison_units_value": 630, "units_delta": 70, "units_transformed_delta": 0.11}`,
			absolute:    700,
			comparison:  630,
			delta:       70,
			transformed: 0.11,
		},
		{
			name:        "plain key fallbacks",
			payload:     `{"absolute": 700, "delta": 70, "transformed_delta": 0.11}`,
			absolute:    700,
			comparison:  0,
			delta:       70,
			transformed: 0.11,
		},
		{
			name:    "absent values count as zero",
			payload: `{}`,
		},
		{
			name:    "null values count as zero",
			payload: `{"units_absolute": null, "comparison_units_value": null}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fragment EntityFragment
			require.NoError(t, json.Unmarshal([]byte(tt.payload), &fragment))

			assert.Equal(t, tt.absolute, fragment.Absolute())
			assert.Equal(t, tt.comparison, fragment.Comparison())
			assert.Equal(t, tt.delta, fragment.Delta())
			assert.Equal(t, tt.transformed, fragment.TransformedDelta())
		})
	}
}

func TestAppIDDecodesNumbersAndStrings(t *testing.T) {
	var ids []AppID
	require.NoError(t, json.Unmarshal([]byte(`["55c5025102ac64f9c0001f96", 835599320, null]`), &ids))

	assert.Equal(t, AppID("55c5025102ac64f9c0001f96"), ids[0])
	assert.Equal(t, AppID("835599320"), ids[1])
	assert.Equal(t, AppID(""), ids[2])
}
