package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/statline/internal/errors"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		want    interface{}
		wantErr string
	}{
		{name: "default is poll", cfg: Config{Endpoint: "http://localhost:8080"}, want: &Poll{}},
		{name: "poll", cfg: Config{Kind: "poll", Endpoint: "http://localhost:8080"}, want: &Poll{}},
		{name: "push", cfg: Config{Kind: "PUSH", Endpoint: "http://localhost:8080"}, want: &Push{}},
		{name: "unknown kind", cfg: Config{Kind: "carrier-pigeon", Endpoint: "http://localhost:8080"}, wantErr: errors.ErrConfig},
		{name: "push with bad endpoint", cfg: Config{Kind: "push", Endpoint: "ftp://x"}, wantErr: errors.ErrConfig},
		{name: "poll without endpoint", cfg: Config{Kind: "poll"}, wantErr: errors.ErrConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := New(tt.cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			defer tr.Close()
			assert.IsType(t, tt.want, tr)
		})
	}
}
