package server

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"routeopt/pkg/config"
	"routeopt/pkg/logger"
)

func init() {
	logger.Init("error")
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Name: "test-app", Version: "0.0.1"},
		HTTP: config.HTTPConfig{
			Port:            0,
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    5 * time.Second,
			ShutdownTimeout: time.Second,
		},
		Audit: config.AuditConfig{Enabled: false},
	}
}

func TestNew(t *testing.T) {
	srv := New(testConfig(), http.NewServeMux())
	assert.NotNil(t, srv)
	assert.Equal(t, ":0", srv.Addr())

	// Audit logger должен быть nil, так как выключен
	assert.Nil(t, srv.auditLogger)
}

func TestNew_WithAuditStdout(t *testing.T) {
	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.Backend = "stdout"

	srv := New(cfg, http.NewServeMux())
	assert.NotNil(t, srv)
	assert.NotNil(t, srv.auditLogger)
}

func TestShutdown_BeforeRun(t *testing.T) {
	srv := New(testConfig(), http.NewServeMux())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// Shutdown до старта не должен ни блокироваться, ни паниковать
	assert.NoError(t, srv.Shutdown(ctx))
}
