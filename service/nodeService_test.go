package service

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hyperbench/enum"
	"hyperbench/model"
)

func TestProvisionNeedsBootstrappedOrg(t *testing.T) {
	h := newHarness(t)
	pki := NewPKIService(h.net, h.deps)
	enroll := NewEnrollService(h.net, h.deps, pki)
	nodes := NewNodeService(h.net, h.deps, NewOrganizationService(h.net, pki, enroll), enroll)

	org := h.net.PeerOrgs()[0]
	err := nodes.ProvisionPeer(context.Background(), org, org.Peers[0])
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrProvisioning))
	assert.Empty(t, h.rt.started)
}

func TestProvisionPeersAndOrderers(t *testing.T) {
	h := newHarness(t)
	h.deps.Traffic = &model.TrafficShaping{Enabled: true, Throughput: 100, Delay: 10, Hosts: []string{"peer1.org1.org"}}
	_, enroll, orgs := h.bootstrap(t)
	nodes := NewNodeService(h.net, h.deps, orgs, enroll)
	ctx := context.Background()

	require.NoError(t, nodes.ProvisionPeers(ctx))
	require.NoError(t, nodes.ProvisionOrderers(ctx))

	for _, p := range h.net.Peers() {
		ok, _ := h.rt.Running(ctx, p.Name)
		assert.True(t, ok, p.Name)
		assert.FileExists(t, p.Identity.TLS().SignCert())
	}
	for _, o := range h.net.Orderers() {
		assert.FileExists(t, o.Consenter.ClientTLSCert)
	}

	recs, err := h.store.FindNodes("net1")
	require.NoError(t, err)
	// 4 CAs, 4 peers, 1 orderer
	require.Len(t, recs, 9)
	for _, r := range recs {
		assert.Equal(t, enum.StatusRunning, r.Status, r.Name)
	}

	assert.Len(t, h.rt.execs["peer1.org1.org"], 1)
	assert.Empty(t, h.rt.execs["peer2.org1.org"])
}

func TestPeerContainerWiring(t *testing.T) {
	h := newHarness(t)
	p := h.net.PeerOrgs()[0].Peers[0]
	spec := h.deps.Containers.NewPeer(h.net, p)

	assert.Equal(t, "peer1.org1.org", spec.Name)
	assert.Equal(t, "Org1OrgMSP", spec.Env["CORE_PEER_LOCALMSPID"])
	assert.Equal(t, "peer2.org1.org:7164", spec.Env["CORE_PEER_GOSSIP_BOOTSTRAP"])
	assert.Equal(t, "peer1.org1.org:7163", spec.Env["CORE_PEER_GOSSIP_EXTERNALENDPOINT"])
	assert.True(t, spec.NetAdmin)
	require.Len(t, spec.Mounts, 1)
	assert.Equal(t, "organizations/peerOrganizations/org1.org/peers/peer1.org1.org", spec.Mounts[0].Source)

	o := h.net.Orderers()[0]
	ospec := h.deps.Containers.NewOrderer(h.net, o)
	assert.Equal(t, []int{o.Port, o.AdminPort}, ospec.Ports)
	assert.Equal(t, "true", ospec.Env["ORDERER_CHANNELPARTICIPATION_ENABLED"])
}
