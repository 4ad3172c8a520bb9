package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateTopology(t *testing.T) {
	tests := []struct {
		orgs, peers, orderers int
	}{
		{1, 1, 1},
		{2, 2, 1},
		{3, 4, 3},
	}

	for _, tc := range tests {
		topo, err := GenerateTopology(TopologyParams{Orgs: tc.orgs, PeersPerOrg: tc.peers, Orderers: tc.orderers, StartingPort: 7160})
		require.NoError(t, err)

		assert.Equal(t, "tls.ca", topo.Transport().CommonName)
		assert.Equal(t, 7161, topo.Transport().Port)
		assert.Len(t, topo.PeerOrgs(), tc.orgs)

		peers := 0
		for _, o := range topo.PeerOrgs() {
			peers += len(o.Peers)
		}
		assert.Equal(t, tc.orgs*tc.peers, peers)

		require.Len(t, topo.OrdererOrgs(), 1)
		assert.Len(t, topo.OrdererOrgs()[0].Orderers, tc.orderers)
	}
}

func TestGenerateTopologyNaming(t *testing.T) {
	topo, err := GenerateTopology(TopologyParams{Orgs: 2, PeersPerOrg: 2, Orderers: 1, StartingPort: 7160})
	require.NoError(t, err)

	org2 := topo.PeerOrgs()[1]
	assert.Equal(t, "ca.org2.org", org2.CommonName)
	assert.Equal(t, "org2.org", org2.OrgName)
	assert.Equal(t, "peer2.org2.org", org2.Peers[1].Name)

	// tls.ca 7161, ca.org1 7162, peers 7163-7164, ca.org2 7165, peers 7166-7167
	assert.Equal(t, 7165, org2.Port)
	assert.Equal(t, 7167, org2.Peers[1].Port)

	oo := topo.OrdererOrgs()[0]
	assert.Equal(t, "ca.orderer.org", oo.CommonName)
	assert.Equal(t, 7168, oo.Port)
	assert.Equal(t, OrdererNodeSpec{Name: "orderer1.orderer.org", Port: 7169, AdminPort: 7170}, oo.Orderers[0])
}

func TestNewTopologyDefinitionRejects(t *testing.T) {
	transport := TransportCASpec{CommonName: "tls.ca", Port: 7000}
	peerOrg := PeerOrgSpec{CommonName: "ca.org1.org", OrgName: "org1.org", Port: 7001,
		Peers: []NodeSpec{{Name: "peer1.org1.org", Port: 7002}}}
	ordererOrg := OrdererOrgSpec{CommonName: "ca.orderer.org", OrgName: "orderer.org", Port: 7003,
		Orderers: []OrdererNodeSpec{{Name: "orderer1.orderer.org", Port: 7004, AdminPort: 7005}}}

	tests := []struct {
		name    string
		entries []TopologyEntry
	}{
		{"no transport", []TopologyEntry{peerOrg, ordererOrg}},
		{"two transports", []TopologyEntry{transport, TransportCASpec{CommonName: "tls2.ca", Port: 7009}, peerOrg, ordererOrg}},
		{"no peer org", []TopologyEntry{transport, ordererOrg}},
		{"no orderer org", []TopologyEntry{transport, peerOrg}},
		{"duplicated port", []TopologyEntry{TransportCASpec{CommonName: "tls.ca", Port: 7001}, peerOrg, ordererOrg}},
		{"port out of range", []TopologyEntry{TransportCASpec{CommonName: "tls.ca", Port: 70000}, peerOrg, ordererOrg}},
		{"missing admin port", []TopologyEntry{transport, peerOrg, OrdererOrgSpec{CommonName: "ca.o.org", OrgName: "o.org", Port: 7010,
			Orderers: []OrdererNodeSpec{{Name: "orderer1.o.org", Port: 7011}}}}},
		{"empty org", []TopologyEntry{transport, PeerOrgSpec{CommonName: "ca.x.org", OrgName: "x.org", Port: 7012}, ordererOrg}},
		{"colliding msp id", []TopologyEntry{transport, peerOrg, PeerOrgSpec{CommonName: "ca.org1-org", OrgName: "org1-org", Port: 7013,
			Peers: []NodeSpec{{Name: "peer1.org1-org", Port: 7014}}}, ordererOrg}},
		{"nil entry", []TopologyEntry{transport, nil, peerOrg, ordererOrg}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewTopologyDefinition(tc.entries...)
			assert.Error(t, err)
		})
	}

	_, err := NewTopologyDefinition(transport, peerOrg, ordererOrg)
	assert.NoError(t, err)
}

func TestParseTopology(t *testing.T) {
	raw := []byte(`
- role: transport
  commonName: tls.ca
  port: 7161
- role: peerOrgCA
  commonName: ca.org1.org
  orgName: org1.org
  port: 7162
  children:
    - {name: peer1.org1.org, port: 7163}
    - {name: peer2.org1.org, port: 7164}
- role: ordererOrgCA
  commonName: ca.orderer.org
  orgName: orderer.org
  port: 7166
  children:
    - {name: orderer1.orderer.org, port: 7167, adminPort: 7168}
`)
	topo, err := ParseTopology(raw)
	require.NoError(t, err)
	assert.Len(t, topo.Entries(), 3)
	assert.Equal(t, "peer2.org1.org", topo.PeerOrgs()[0].Peers[1].Name)
	assert.Equal(t, 7168, topo.OrdererOrgs()[0].Orderers[0].AdminPort)

	out, err := topo.Marshal()
	require.NoError(t, err)
	again, err := ParseTopology(out)
	require.NoError(t, err)
	assert.Equal(t, topo.Entries(), again.Entries())

	_, err = ParseTopology([]byte(`[{"role": "bogus", "commonName": "x", "port": 1}]`))
	assert.Error(t, err)
}

func TestTopologyEntriesAreCopies(t *testing.T) {
	topo, err := GenerateTopology(TopologyParams{Orgs: 1, PeersPerOrg: 2, Orderers: 1, StartingPort: 7160})
	require.NoError(t, err)

	orgs := topo.PeerOrgs()
	orgs[0].Peers[0].Name = "changed"
	assert.Equal(t, "peer1.org1.org", topo.PeerOrgs()[0].Peers[0].Name)
}
