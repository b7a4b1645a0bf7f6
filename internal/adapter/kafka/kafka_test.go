package kafka

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/station-climate-etl/internal/domain"
)

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2024, 9, 21, 6, 0, 0, 0, time.UTC)
	series := domain.StationSeries{
		Provider:    "ECAD",
		StationID:   9,
		StationCode: 229,
		Name:        "BADAJOZ",
		XAxis:       []time.Time{time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)},
		Lines:       map[string]domain.Values{"a": {math.NaN()}},
		Legend:      []string{"Máxima"},
		ProcessedAt: now,
	}

	msg, err := serializeToMessage("run-1", series)
	require.NoError(t, err)

	assert.Equal(t, []byte("229"), msg.Key)
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "provider", msg.Headers[0].Key)
	assert.Equal(t, []byte("ECAD"), msg.Headers[0].Value)
	assert.Equal(t, "run_id", msg.Headers[1].Key)
	assert.Equal(t, []byte("run-1"), msg.Headers[1].Value)
	assert.Equal(t, "processed_at", msg.Headers[2].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[2].Value)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.JSONEq(t, `{"a":[null]}`, string(body["lines"]))
	assert.JSONEq(t, `229`, string(body["station_code"]))
}
