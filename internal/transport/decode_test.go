package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/statline/internal/errors"
	"github.com/rileyhilliard/statline/internal/stream"
)

func TestDecode_Canonical(t *testing.T) {
	body := `{"request_id": 12, "metrics": {
		"load": {"datapoints": [[0.5, 1000], [null, 1010], [1.25, 1020]]},
		"cpu":  {"datapoints": []}
	}}`

	resp, err := Decode([]byte(body), -1)
	require.NoError(t, err)

	assert.Equal(t, int64(12), resp.RequestID)
	assert.Equal(t, []stream.Datapoint{
		{Time: time.Unix(1000, 0), Value: 0.5},
		{Time: time.Unix(1010, 0), Missing: true},
		{Time: time.Unix(1020, 0), Value: 1.25},
	}, resp.Metrics["load"])
	assert.Empty(t, resp.Metrics["cpu"])
	assert.Contains(t, resp.Metrics, "cpu")
}

func TestDecode_FlatForm(t *testing.T) {
	body := `{"request_id": 3, "load": {"datapoints": [[1, 1000]]}, "metrics": {"datapoints": [[2, 1000]]}}`

	resp, err := Decode([]byte(body), -1)
	require.NoError(t, err)

	assert.Equal(t, int64(3), resp.RequestID)
	assert.Len(t, resp.Metrics, 2)
	assert.Equal(t, 1.0, resp.Metrics["load"][0].Value)
	assert.Equal(t, 2.0, resp.Metrics["metrics"][0].Value)
}

func TestDecode_FallbackID(t *testing.T) {
	resp, err := Decode([]byte(`{"load": {"datapoints": []}}`), 44)
	require.NoError(t, err)
	assert.Equal(t, int64(44), resp.RequestID)
}

func TestDecode_FractionalTimestamp(t *testing.T) {
	resp, err := Decode([]byte(`{"request_id": 1, "metrics": {"load": {"datapoints": [[1, 1000.5]]}}}`), -1)
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1000, 500_000_000), resp.Metrics["load"][0].Time)
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>`},
		{"array body", `[1, 2]`},
		{"missing request id", `{"metrics": {}}`},
		{"string request id", `{"request_id": "7", "metrics": {}}`},
		{"datapoint not a pair", `{"request_id": 1, "metrics": {"load": {"datapoints": [[1]]}}}`},
		{"datapoint string value", `{"request_id": 1, "metrics": {"load": {"datapoints": [["high", 1000]]}}}`},
		{"null timestamp", `{"request_id": 1, "metrics": {"load": {"datapoints": [[1, null]]}}}`},
		{"missing datapoints", `{"request_id": 1, "metrics": {"load": {"points": []}}}`},
		{"series not an object", `{"request_id": 1, "metrics": {"load": 5}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.body), -1)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrResponse), "got %v", err)
		})
	}
}

func TestEncode_DecodesBack(t *testing.T) {
	resp := stream.Response{
		RequestID: 9,
		Metrics: map[string][]stream.Datapoint{
			"load": {
				{Time: time.Unix(1000, 0), Value: 2},
				{Time: time.Unix(1010, 0), Missing: true},
			},
		},
	}

	body, err := Encode(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"request_id": 9, "metrics": {"load": {"datapoints": [[2, 1000], [null, 1010]]}}}`, string(body))

	got, err := Decode(body, -1)
	require.NoError(t, err)
	assert.Equal(t, resp, got)
}
