package service

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hyperbench/dao"
	"hyperbench/enum"
	"hyperbench/model"
)

func TestDeployScenario(t *testing.T) {
	h := newHarness(t)
	ns := NewNetworkService(h.deps)
	ctx := context.Background()

	req := h.request()
	req.Chaincode = externalSource("1.0")
	net, err := ns.Deploy(ctx, req)
	require.NoError(t, err)

	assert.Len(t, net.Peers(), 4)
	assert.Len(t, net.Orderers(), 1)
	assert.FileExists(t, net.Layout.ChannelArtifact("hyperbench-channel"))
	assert.FileExists(t, net.Layout.ConnectionProfile("json"))
	assert.FileExists(t, net.Layout.HostsFile())

	rec, err := h.store.FindNetwork("net1")
	require.NoError(t, err)
	assert.Equal(t, enum.StatusRunning, rec.Status)

	nodes, err := ns.Nodes("net1")
	require.NoError(t, err)
	assert.Len(t, nodes, 9)

	ch, err := h.store.FindChannel("net1", "hyperbench-channel")
	require.NoError(t, err)
	assert.Len(t, ch.JoinedPeers, 4)

	_, err = NewChannelService(net, h.deps).CreateGenesis(ctx, "hyperbench-channel")
	assert.True(t, errors.Is(err, model.ErrChannelAlreadyExists))

	data, err := ns.Profile("net1", FormatJSON)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Org2OrgMSP")
	assert.NotContains(t, string(data), "PRIVATE KEY")

	def, err := ns.DeployChaincode(ctx, "net1", externalSource("1.1"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), def.Sequence)
}

func TestDeployRecordsFailure(t *testing.T) {
	h := newHarness(t)
	h.rt.silent = true
	h.deps.Waiter.Timeout = 20 * time.Millisecond

	_, err := NewNetworkService(h.deps).Deploy(context.Background(), h.request())
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrStartupTimeout))

	rec, err := h.store.FindNetwork("net1")
	require.NoError(t, err)
	assert.Equal(t, enum.StatusError, rec.Status)
}

func TestTeardown(t *testing.T) {
	h := newHarness(t)
	ns := NewNetworkService(h.deps)
	ctx := context.Background()

	_, err := ns.Deploy(ctx, h.request())
	require.NoError(t, err)
	nodes, err := h.store.FindNodes("net1")
	require.NoError(t, err)
	var names []string
	for _, n := range nodes {
		names = append(names, n.Name)
	}
	require.NoError(t, ns.Teardown(ctx, "net1"))

	assert.Empty(t, h.rt.running)
	assert.Len(t, h.rt.removed, 9)
	assert.ElementsMatch(t, names, h.rt.removed)
	assert.NoFileExists(t, h.net.Layout.ChannelArtifact("hyperbench-channel"))

	_, err = h.store.FindNetwork("net1")
	assert.True(t, errors.Is(err, dao.ErrNotFound))

	require.NoError(t, ns.Teardown(ctx, "net1"), "teardown twice")
}

func TestDeployRecordsChannelQuorum(t *testing.T) {
	h := newHarness(t)
	req := h.request()
	req.Chaincode = externalSource("1.0")
	req.Chaincode.QuorumPolicy = model.QuorumAny

	_, err := NewNetworkService(h.deps).Deploy(context.Background(), req)
	require.NoError(t, err)

	ch, err := h.store.FindChannel("net1", "hyperbench-channel")
	require.NoError(t, err)
	assert.Equal(t, "OutOf(1, 'Org1OrgMSP.member', 'Org2OrgMSP.member')", ch.Quorum)
}

func TestTeardownPartialNetwork(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.SaveNode(&dao.NodeRecord{Network: "net1", Name: "tls.ca", Kind: dao.NodeCA, Status: enum.StatusRunning}))
	require.NoError(t, h.store.SaveNode(&dao.NodeRecord{Network: "net1", Name: "ca.org1.org", Kind: dao.NodeCA, Org: "org1.org", Status: enum.StatusStarting}))

	require.NoError(t, NewNetworkService(h.deps).Teardown(context.Background(), "net1"))
	assert.ElementsMatch(t, []string{"tls.ca", "ca.org1.org"}, h.rt.removed)

	nodes, err := h.store.FindNodes("net1")
	require.NoError(t, err)
	assert.Empty(t, nodes)
}
