package sdk

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"hyperbench/model"
	"hyperbench/service/factory"
)

func newTestNetwork(t *testing.T) *model.Network {
	t.Helper()
	topo, err := model.GenerateTopology(model.TopologyParams{Orgs: 2, PeersPerOrg: 2, Orderers: 1, StartingPort: 7160})
	require.NoError(t, err)
	net, err := factory.NewNetworkFactory(t.TempDir()).NewNetwork("net1", topo)
	require.NoError(t, err)
	return net
}

func writeText(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, ioutil.WriteFile(path, []byte(content), 0644))
}

func TestNewCAConfig(t *testing.T) {
	net := newTestNetwork(t)
	org := net.PeerOrgs()[0]
	writeText(t, org.CA.SelfCertFile(), "ROOT")

	c, err := NewSDKConfigFactory("").NewCAConfig(org.CA)
	require.NoError(t, err)

	assert.Equal(t, "org1.org", c.Client.Organization)
	assert.Equal(t, "info", c.Client.Logging.Level)
	assert.Equal(t, filepath.Join(org.CA.HomeDir, "sdk", "msp"), c.Client.CredentialStore.CryptoStore.Path)
	require.Contains(t, c.CertificateAuthorities, org.CA.CommonName)
	ca := c.CertificateAuthorities[org.CA.CommonName]
	assert.Equal(t, org.CA.URL(), ca.URL)
	assert.Equal(t, org.CA.CommonName, ca.CAName)
	assert.Equal(t, []string{"ROOT"}, ca.TLSCACerts.Pem)
	assert.Equal(t, "admin.org1.org", ca.Registrar.EnrollID)
	assert.Equal(t, []string{org.CA.CommonName}, c.Organizations["org1.org"].CertificateAuthorities)
}

func TestNewCAConfigForTransport(t *testing.T) {
	net := newTestNetwork(t)
	writeText(t, net.TransportCA.SelfCertFile(), "TLS ROOT")

	c, err := NewSDKConfigFactory("debug").NewCAConfig(net.TransportCA)
	require.NoError(t, err)
	assert.Equal(t, net.TransportCA.CommonName, c.Client.Organization)
	assert.Equal(t, "debug", c.Client.Logging.Level)
}

func TestNewCAConfigWithoutCert(t *testing.T) {
	net := newTestNetwork(t)
	_, err := NewSDKConfigFactory("").NewCAConfig(net.TransportCA)
	assert.Error(t, err)
}

func TestNewOrgConfig(t *testing.T) {
	net := newTestNetwork(t)
	org := net.PeerOrgs()[1]
	writeText(t, net.TransportCA.SelfCertFile(), "TLS ROOT")
	writeText(t, org.Admin.CertPath(), "ADMIN CERT")
	writeText(t, org.Admin.KeyPath(), "ADMIN KEY")

	c, err := NewSDKConfigFactory("").NewOrgConfig(net, org)
	require.NoError(t, err)

	assert.Equal(t, org.Name, c.Client.Organization)
	assert.Len(t, c.Organizations, 3)
	assert.Len(t, c.Peers, 4)
	assert.Len(t, c.Orderers, 1)

	own := c.Organizations[org.Name]
	require.Contains(t, own.Users, org.Admin.Name)
	assert.Equal(t, "ADMIN KEY", own.Users[org.Admin.Name].Key.Pem)
	assert.Equal(t, "ADMIN CERT", own.Users[org.Admin.Name].Cert.Pem)
	assert.Empty(t, c.Organizations["org1.org"].Users)

	p := net.Peers()[0]
	node := c.Peers[p.Name]
	assert.Equal(t, p.URL(), node.URL)
	assert.Equal(t, "TLS ROOT", node.TLSCACerts.Pem)
	assert.Equal(t, p.Name, node.GRPCOptions["ssl-target-name-override"])

	ch := c.Channels[defaultChannel]
	assert.Len(t, ch.Peers, 4)
	assert.Equal(t, []string{net.Orderers()[0].Name}, ch.Orderers)
}

func TestMarshalStoresCopy(t *testing.T) {
	net := newTestNetwork(t)
	org := net.PeerOrgs()[0]
	writeText(t, net.TransportCA.SelfCertFile(), "TLS ROOT")
	writeText(t, org.Admin.CertPath(), "ADMIN CERT")
	writeText(t, org.Admin.KeyPath(), "ADMIN KEY")

	c, err := NewSDKConfigFactory("").NewOrgConfig(net, org)
	require.NoError(t, err)
	dir := OrgStoreDir(net, org)
	raw, err := Marshal(c, dir, org.Name)
	require.NoError(t, err)

	stored, err := ioutil.ReadFile(filepath.Join(dir, org.Name+".yaml"))
	require.NoError(t, err)
	assert.Equal(t, raw, stored)

	var doc map[string]interface{}
	require.NoError(t, yaml.Unmarshal(raw, &doc))
	assert.Contains(t, doc, "client")
	assert.Contains(t, doc, "channels")
	assert.NotContains(t, doc, "certificateAuthorities")
}
