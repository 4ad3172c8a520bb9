package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestHosts(t *testing.T) {
	out, err := execute(t, "hosts", "--n-orgs", "3", "--n-peer-per-org", "1", "--n-orderers", "2")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	// transport CA, 3 org CAs, the orderer CA, 3 peers and 2 orderers
	assert.Len(t, lines, 10)
	assert.Contains(t, lines, "127.0.0.1 tls.ca")
	assert.Contains(t, lines, "127.0.0.1 peer1.org3.org")
	assert.Contains(t, lines, "127.0.0.1 orderer2.orderer.org")
	assert.Equal(t, 3, conf.Network.Topology.Orgs)
}

func TestProfileFormat(t *testing.T) {
	_, err := execute(t, "profile", "--format", "xml")
	assert.Error(t, err)
}

func TestDeployEnablesTraffic(t *testing.T) {
	cmd := deployCmd()
	require.NoError(t, cmd.Flags().Parse([]string{"--delay", "20", "--n-orgs", "1"}))
	require.NoError(t, cmd.PreRunE(cmd, nil))
	assert.True(t, conf.Traffic.Enabled)
	assert.Equal(t, 20, conf.Traffic.Delay)
	assert.Equal(t, 1, conf.Network.Topology.Orgs)
	assert.Equal(t, "hyperbench-channel", conf.Network.Channel)
}
