package rpc_test

import (
	"context"
	"testing"

	"github.com/anz-io/smart-order-router/quoter/rpc"
	"github.com/zeebo/assert"
)

func TestNewOTelSDK_DevelopmentExporters(t *testing.T) {
	shutdown, err := rpc.NewOTelSDK(context.Background(), &rpc.OTelConfig{
		ServiceName:     "smart-order-router-test",
		EnableTracing:   true,
		EnableLogs:      true,
		DevelopmentMode: true,
	})
	assert.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
	// shutdown is idempotent
	assert.NoError(t, shutdown(context.Background()))
}

func TestNewOTelSDK_BadCACertificate(t *testing.T) {
	_, err := rpc.NewOTelSDK(context.Background(), &rpc.OTelConfig{
		EnableTracing:  true,
		UseOTLPTraces:  true,
		OTLPTracesURL:  "https://collector.invalid/v1/traces",
		OTLPCACertFile: t.TempDir() + "/missing.pem",
	})
	assert.Error(t, err)
}
