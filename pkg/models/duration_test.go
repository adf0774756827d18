package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDurationUnmarshalString(t *testing.T) {
	var d Duration

	require.NoError(t, json.Unmarshal([]byte(`"30s"`), &d))
	assert.Equal(t, Duration(30*time.Second), d)
}

func TestDurationUnmarshalNanoseconds(t *testing.T) {
	var d Duration

	require.NoError(t, json.Unmarshal([]byte(`5000000000`), &d))
	assert.Equal(t, Duration(5*time.Second), d)
}

func TestDurationUnmarshalInvalid(t *testing.T) {
	var d Duration

	assert.Error(t, json.Unmarshal([]byte(`"not-a-duration"`), &d))
	assert.ErrorIs(t, json.Unmarshal([]byte(`true`), &d), ErrInvalidDuration)
}

func TestDurationMarshal(t *testing.T) {
	data, err := json.Marshal(Duration(90 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, `"1m30s"`, string(data))
}
