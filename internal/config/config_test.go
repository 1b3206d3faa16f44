package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/sendcloud-fulfillment/internal/config"
)

// unsetEnv clears a variable for the duration of the test.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad_Defaults(t *testing.T) {
	unsetEnv(t, "PORT", "LOG_LEVEL", "SENDCLOUD_BASE_URL", "SENDCLOUD_TO_COUNTRY", "SENDCLOUD_TIMEOUT",
		"SENDCLOUD_BREAKER_ENABLED", "SENDCLOUD_RETURN_SERVICE_POINT_ID", "SENDCLOUD_RETURN_REFUND_TYPE",
		"SENDCLOUD_RETURN_DELIVERY_OPTION", "SERVICE_NAME")

	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 80, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "https://panel.sendcloud.sc/api/v2", cfg.SendcloudBaseURL)
	assert.Equal(t, "NL", cfg.SendcloudToCountry)
	assert.Equal(t, 30*time.Second, cfg.SendcloudTimeout)
	assert.False(t, cfg.BreakerEnabled)
	assert.Equal(t, int64(10875349), cfg.ReturnServicePointID)
	assert.Equal(t, "money", cfg.ReturnRefundType)
	assert.Equal(t, "drop_off_point", cfg.ReturnDeliveryOption)
	assert.Equal(t, "sendcloud-fulfillment", cfg.ServiceName)
}

func TestLoad_DotEnvDoesNotOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("SENDCLOUD_BRAND_DOMAIN=from-file\nSENDCLOUD_TO_COUNTRY=BE\n"), 0o600))

	t.Setenv("SENDCLOUD_TO_COUNTRY", "DE")
	unsetEnv(t, "SENDCLOUD_BRAND_DOMAIN")

	cfg, err := config.Load(envFile)
	require.NoError(t, err)

	assert.Equal(t, "DE", cfg.SendcloudToCountry)
	assert.Equal(t, "from-file", cfg.SendcloudBrandDomain)
}

func TestLoad_InvalidValue(t *testing.T) {
	t.Setenv("SENDCLOUD_TIMEOUT", "soon")

	_, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestApplyFlags(t *testing.T) {
	unsetEnv(t, "PORT", "SENDCLOUD_API_TOKEN", "SENDCLOUD_USE_MOCK")

	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"--port", "9090", "--log-level", "debug", "--mock"}))

	require.NoError(t, cfg.ApplyFlags(fs))
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.SendcloudUseMock)
}

func TestValidate(t *testing.T) {
	cfg := &config.Config{Port: 8080, SendcloudAPIToken: "token"}
	assert.NoError(t, cfg.Validate())

	cfg.Port = 70000
	assert.Error(t, cfg.Validate())

	cfg = &config.Config{Port: 8080}
	assert.Error(t, cfg.Validate(), "token is required without mock")

	cfg.SendcloudUseMock = true
	assert.NoError(t, cfg.Validate())
}

func TestAttributes(t *testing.T) {
	cfg := &config.Config{ServiceName: "svc", Version: "1.2.3", SendcloudToCountry: "NL"}

	attrs := cfg.Attributes()
	require.NotEmpty(t, attrs)
	assert.Equal(t, "service.name", string(attrs[0].Key))
	assert.Equal(t, "svc", attrs[0].Value.AsString())
}
