package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/statline/internal/errors"
	"github.com/rileyhilliard/statline/internal/transport"
)

func TestErrorToJSON(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantMsg    string
		wantDetail bool
	}{
		{
			name:     "config not found",
			err:      errors.New(errors.ErrConfig, "Config file not found", "Run 'statline init'"),
			wantCode: ErrCodeConfigNotFound,
			wantMsg:  "Config file not found",
		},
		{
			name:     "config invalid",
			err:      errors.New(errors.ErrConfig, "transport 'x' isn't valid", ""),
			wantCode: ErrCodeConfigInvalid,
			wantMsg:  "transport 'x' isn't valid",
		},
		{
			name:     "transport",
			err:      errors.WrapWithCode(fmt.Errorf("dial tcp: refused"), errors.ErrTransport, "Gave up after 3 attempts", ""),
			wantCode: ErrCodeBackendUnreachable,
			wantMsg:  "Gave up after 3 attempts",
		},
		{
			name:     "response",
			err:      errors.New(errors.ErrResponse, "missing metric 'gpu'", ""),
			wantCode: ErrCodeBadResponse,
			wantMsg:  "missing metric 'gpu'",
		},
		{
			name: "backend status wins",
			err:  errors.WrapWithCode(&transport.StatusError{RequestID: 7, StatusCode: http.StatusBadGateway},
				errors.ErrTransport, "Gave up after 1 attempts", ""),
			wantCode:   ErrCodeBackendStatus,
			wantMsg:    "stats request 7: HTTP 502",
			wantDetail: true,
		},
		{
			name:     "plain error",
			err:      fmt.Errorf("boom"),
			wantCode: ErrCodeUnknown,
			wantMsg:  "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ErrorToJSON(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.wantCode, got.Code)
			assert.Equal(t, tt.wantMsg, got.Message)
			assert.Equal(t, tt.wantDetail, got.Details != nil)
		})
	}

	assert.Nil(t, ErrorToJSON(nil))
}

func TestWriteJSONSuccess(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSONSuccess(&buf, map[string]int{"series": 3}))

	var env JSONEnvelope
	require.NoError(t, json.Unmarshal(buf.Bytes(), &env))
	assert.True(t, env.Success)
	assert.Nil(t, env.Error)
	assert.Equal(t, map[string]interface{}{"series": float64(3)}, env.Data)
}

func TestWriteJSONFromError(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSONFromError(&buf, errors.New(errors.ErrConfig, "No panels configured", "Add one")))

	assert.Contains(t, buf.String(), `"success": false`)
	assert.Contains(t, buf.String(), `"code": "CONFIG_INVALID"`)
	assert.Contains(t, buf.String(), `"suggestion": "Add one"`)
}
