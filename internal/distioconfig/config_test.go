package distioconfig_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/distio/internal/distioconfig"
)

func TestLoadAppliesDefaults(t *testing.T) {
	distioconfig.Reset()

	var cfg distioconfig.ProxyConfig
	require.NoError(t, distioconfig.Load(&cfg))

	assert.Equal(t, 7531, cfg.Port)
	assert.Equal(t, ".", cfg.Root)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.LogJSON)
}

func TestLoadReadsEnvironment(t *testing.T) {
	distioconfig.Reset()
	t.Setenv("DISTIO_PROXY_PORT", "9000")
	t.Setenv("DISTIO_AUTHORIZED_IPS", "10.0.0.1,10.0.0.2")
	t.Setenv("DISTIO_KILL_SLAVES_AFTER", "30s")

	var cfg distioconfig.ProxyConfig
	require.NoError(t, distioconfig.Load(&cfg))

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, cfg.AuthorizedIPs)
	assert.Equal(t, 30*time.Second, cfg.KillSlavesAfter)
}

func TestLoadCachesPerType(t *testing.T) {
	distioconfig.Reset()
	t.Setenv("DISTIO_PROXY_PORT", "1111")

	var first distioconfig.ProxyConfig
	require.NoError(t, distioconfig.Load(&first))
	assert.Equal(t, 1111, first.Port)

	t.Setenv("DISTIO_PROXY_PORT", "2222")
	var second distioconfig.ProxyConfig
	require.NoError(t, distioconfig.Load(&second))
	assert.Equal(t, 1111, second.Port, "second Load of the same type must reuse the cached value")
}

func TestControllerConfigDefaults(t *testing.T) {
	distioconfig.Reset()

	var cfg distioconfig.ControllerConfig
	require.NoError(t, distioconfig.Load(&cfg))

	assert.Equal(t, 10*time.Second, cfg.CloseTimeout)
	assert.False(t, cfg.CatchAll)
	assert.Equal(t, "info", cfg.LogLevel)
}
