package service

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"hyperbench/model"
)

func TestGenerateProfile(t *testing.T) {
	h := newHarness(t)
	h.bootstrap(t)

	profile, err := NewProfileService(h.net).Generate()
	require.NoError(t, err)

	assert.Equal(t, "fabric-network", profile.Name)
	assert.Equal(t, "1.0.0", profile.Version)
	require.Len(t, profile.Organizations, 2)
	assert.Len(t, profile.Peers, 4)
	assert.Len(t, profile.CertificateAuthorities, 2)

	org := profile.Organizations["org1.org"]
	require.NotNil(t, org)
	assert.Equal(t, "Org1OrgMSP", org.MSPID)
	assert.Equal(t, []string{"peer1.org1.org", "peer2.org1.org"}, org.Peers)
	assert.Equal(t, []string{"ca.org1.org"}, org.CertificateAuthorities)

	peer := profile.Peers["peer1.org1.org"]
	assert.Equal(t, "grpcs://peer1.org1.org:7163", peer.URL)
	assert.Equal(t, "peer1.org1.org", peer.GRPCOptions.SSLTargetNameOverride)
	assert.Contains(t, peer.TLSCACerts.Pem, "BEGIN CERTIFICATE")

	ca := profile.CertificateAuthorities["ca.org1.org"]
	assert.Equal(t, "https://ca.org1.org:7162", ca.URL)
	assert.False(t, ca.HTTPOptions.Verify)

	for _, format := range []string{FormatJSON, FormatYAML} {
		data, err := Render(profile, format)
		require.NoError(t, err)
		assert.NotContains(t, string(data), "PRIVATE KEY", format)
	}
}

func TestRenderRoundTrip(t *testing.T) {
	h := newHarness(t)
	h.bootstrap(t)
	profile, err := NewProfileService(h.net).Generate()
	require.NoError(t, err)

	data, err := Render(profile, FormatJSON)
	require.NoError(t, err)
	var fromJSON model.ConnectionProfile
	require.NoError(t, json.Unmarshal(data, &fromJSON))
	assert.Equal(t, profile.Peers["peer2.org2.org"].URL, fromJSON.Peers["peer2.org2.org"].URL)

	data, err = Render(profile, FormatYAML)
	require.NoError(t, err)
	var fromYAML model.ConnectionProfile
	require.NoError(t, yaml.Unmarshal(data, &fromYAML))
	assert.Equal(t, "Org2OrgMSP", fromYAML.Organizations["org2.org"].MSPID)

	_, err = Render(profile, "toml")
	assert.Error(t, err)
}

func TestProfileRefusesKeyMaterial(t *testing.T) {
	h := newHarness(t)
	h.bootstrap(t)
	require.NoError(t, writeFile(h.net.TransportCA.MSP().CACert(), fakePEM("EC PRIVATE KEY", "oops"), 0644))

	_, err := NewProfileService(h.net).Generate()
	assert.Error(t, err)
}

func TestHosts(t *testing.T) {
	h := newHarness(t)
	hosts := string(NewProfileService(h.net).Hosts())

	assert.Contains(t, hosts, "127.0.0.1 tls.ca\n")
	assert.Contains(t, hosts, "127.0.0.1 ca.orderer.org\n")
	assert.Contains(t, hosts, "127.0.0.1 peer2.org2.org\n")
	assert.Contains(t, hosts, "127.0.0.1 orderer1.orderer.org\n")
}
