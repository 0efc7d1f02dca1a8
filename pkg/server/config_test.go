package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigSetDefaults(t *testing.T) {
	var c Config
	c.setDefaults()

	assert.Equal(t, ":4730", c.ListenAddr)
	assert.Equal(t, defaultBacklog, c.Backlog)
	assert.Equal(t, defaultMaxFunctionNameSize, c.MaxFunctionNameSize)
	assert.Equal(t, defaultMaxJobHandleSize, c.MaxJobHandleSize)
	assert.Equal(t, defaultMaxUniqueSize, c.MaxUniqueSize)
	assert.Equal(t, defaultReadTimeout, c.ReadTimeout)
	assert.Equal(t, defaultWriteTimeout, c.WriteTimeout)
	assert.NotNil(t, c.Log)
}

func TestConfigSetDefaultsPreservesExplicitValues(t *testing.T) {
	c := Config{ListenAddr: "0.0.0.0:9999", Backlog: 10}
	c.setDefaults()
	assert.Equal(t, "0.0.0.0:9999", c.ListenAddr)
	assert.Equal(t, 10, c.Backlog)
}

func TestLogLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LogDebug.String())
	assert.Equal(t, "ERROR", LogError.String())
}
