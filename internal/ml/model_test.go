package ml

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawLabel_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		input   string
		text    bool
		number  float64
		str     string
		wantErr bool
	}{
		{input: `1`, number: 1, str: "1"},
		{input: `2.0`, number: 2, str: "2"},
		{input: `"YES"`, text: true, str: "YES"},
		{input: `true`, number: 1, str: "1"},
		{input: `false`, number: 0, str: "0"},
		{input: `null`, wantErr: true},
		{input: `[1]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var l RawLabel
			err := json.Unmarshal([]byte(tt.input), &l)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.text, l.IsText())
			assert.Equal(t, tt.str, l.String())
			if !tt.text {
				n, ok := l.Number()
				assert.True(t, ok)
				assert.Equal(t, tt.number, n)
			}
		})
	}
}

func TestRawLabel_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(map[string]RawLabel{"a": NumberLabel(1), "b": TextLabel("NO")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a": 1, "b": "NO"}`, string(data))
}

func TestModelError(t *testing.T) {
	assert.Equal(t, "ValueError: bad shape", (&ModelError{Type: "ValueError", Message: "bad shape"}).Error())
	assert.Equal(t, "bad shape", (&ModelError{Message: "bad shape"}).Error())
}
