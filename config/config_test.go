package config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())

	assert.Equal(t, 2, c.Network.Topology.Orgs)
	assert.Equal(t, 2, c.Network.Topology.PeersPerOrg)
	assert.Equal(t, 1, c.Network.Topology.Orderers)
	assert.Equal(t, 7160, c.Network.Topology.StartingPort)
	assert.Equal(t, "hyperbench-channel", c.Network.Channel)
	assert.Equal(t, 8, c.Scheduler.Workers)
	assert.Equal(t, OnExistingSkip, c.Registration.OnExisting)
	assert.Equal(t, 60*time.Second, c.Readiness.Timeout)
	assert.Equal(t, 1000000, c.Traffic.Throughput)
	assert.False(t, c.Chaincode.Enabled())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "hyperbench.yaml")
	require.NoError(t, ioutil.WriteFile(file, []byte(`
base: /tmp/hb
network:
  orgs: 3
  channel: bench
readiness:
  timeout: 90s
chaincode:
  name: basic
  path: ./chaincode/basic
`), 0644))

	require.NoError(t, os.Setenv("HYPERBENCH_SCHEDULER_WORKERS", "4"))
	defer os.Unsetenv("HYPERBENCH_SCHEDULER_WORKERS")

	c, err := Load(New(), file)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/hb", c.Base)
	assert.Equal(t, 3, c.Network.Topology.Orgs)
	assert.Equal(t, 2, c.Network.Topology.PeersPerOrg)
	assert.Equal(t, "bench", c.Network.Channel)
	assert.Equal(t, 90*time.Second, c.Readiness.Timeout)
	assert.Equal(t, 4, c.Scheduler.Workers)
	assert.True(t, c.Chaincode.Enabled())
	assert.Equal(t, "golang", c.Chaincode.Kind)

	_, err = Load(New(), filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"old fabric", func(c *Config) { c.FabricVersion = "2.2.1" }},
		{"bad fabric", func(c *Config) { c.FabricVersion = "latest" }},
		{"runtime", func(c *Config) { c.Runtime.Driver = "podman" }},
		{"mysql without dsn", func(c *Config) { c.Store.Driver = StoreMySQL }},
		{"on existing", func(c *Config) { c.Registration.OnExisting = "replace" }},
		{"workers", func(c *Config) { c.Scheduler.Workers = 0 }},
		{"golang without path", func(c *Config) { c.Chaincode.Name = "basic" }},
		{"external without address", func(c *Config) { c.Chaincode.Name = "basic"; c.Chaincode.Kind = "external" }},
		{"loss", func(c *Config) { c.Traffic.Loss = 120 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := Default()
			tc.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
