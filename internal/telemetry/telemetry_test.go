package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_Disabled(t *testing.T) {
	shutdown, err := Init(context.Background(), "mindhealer", "")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInit_Enabled(t *testing.T) {
	shutdown, err := Init(context.Background(), "mindhealer", "http://127.0.0.1:4318")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestExporterOptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		endpoint string
		count    int
		wantErr  bool
	}{
		{endpoint: "collector:4318", count: 2},
		{endpoint: "http://collector:4318", count: 2},
		{endpoint: "https://collector:4318/v1/traces", count: 2},
		{endpoint: "http://", wantErr: true},
	}

	for _, tt := range tests {
		opts, err := exporterOptions(tt.endpoint)
		if tt.wantErr {
			assert.Error(t, err, tt.endpoint)
			continue
		}
		require.NoError(t, err, tt.endpoint)
		assert.Len(t, opts, tt.count, tt.endpoint)
	}
}
