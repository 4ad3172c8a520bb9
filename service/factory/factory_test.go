package factory

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"io/ioutil"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"hyperbench/model"
)

func newTestNetwork(t *testing.T, orgs, peers, orderers int) *model.Network {
	t.Helper()
	topo, err := model.GenerateTopology(model.TopologyParams{Orgs: orgs, PeersPerOrg: peers, Orderers: orderers, StartingPort: 7160})
	require.NoError(t, err)
	net, err := NewNetworkFactory(t.TempDir()).NewNetwork("net1", topo)
	require.NoError(t, err)
	return net
}

// writeCert stores a self-signed certificate for cn at path.
func writeCert(t *testing.T, path, cn string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(time.Now().UnixNano()),
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, ioutil.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0644))
}

// writeMaterial publishes what genesis rendering reads for every org.
func writeMaterial(t *testing.T, net *model.Network) {
	t.Helper()
	for _, org := range net.Organizations {
		writeCert(t, org.CA.MSP().CACert(), org.CA.CommonName)
		writeCert(t, org.CA.TransportCertInMSP(), net.TransportCA.CommonName)
		writeCert(t, org.Admin.CertPath(), org.Admin.Name)
		for _, o := range org.Orderers {
			writeCert(t, o.Identity.TLS().SignCert(), o.Name)
		}
	}
}
