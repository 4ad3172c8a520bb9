package model

import (
	"path/filepath"
)

// Layout maps network entities to their home directories below Base. The
// resulting tree is read by the node processes, so paths must not change.
type Layout struct {
	Base string
}

func NewLayout(base string) Layout {
	return Layout{Base: base}
}

func (l Layout) orgRoot(kind OrgKind, org string) string {
	dir := "peerOrganizations"
	if kind == OrdererOrg {
		dir = "ordererOrganizations"
	}
	return filepath.Join(l.Base, "organizations", dir, org)
}

// TransportCAHome is <base>/externalCAs/tlsCAs/<cn>.
func (l Layout) TransportCAHome(commonName string) string {
	return filepath.Join(l.Base, "externalCAs", "tlsCAs", commonName)
}

func (l Layout) OrgCAHome(kind OrgKind, org string) string {
	return filepath.Join(l.orgRoot(kind, org), "ca")
}

func (l Layout) PeerHome(org, peer string) string {
	return filepath.Join(l.orgRoot(PeerOrg, org), "peers", peer)
}

func (l Layout) OrdererHome(org, orderer string) string {
	return filepath.Join(l.orgRoot(OrdererOrg, org), "orderers", orderer)
}

func (l Layout) AdminHome(kind OrgKind, org string) string {
	return filepath.Join(l.orgRoot(kind, org), "admins", AdminName(org)+"@"+org)
}

func (l Layout) ChannelArtifact(channel string) string {
	return filepath.Join(l.Base, "channel-artifacts", channel+".block")
}

func (l Layout) ChaincodeArtifact(name string) string {
	return filepath.Join(l.Base, "chaincode-artifacts", name+".tar.gz")
}

func (l Layout) ComposeFile(container string) string {
	return filepath.Join(l.Base, "compose", container, "docker-compose.yml")
}

func (l Layout) ConnectionProfile(ext string) string {
	return filepath.Join(l.Base, "connection-profile."+ext)
}

func (l Layout) HostsFile() string {
	return filepath.Join(l.Base, "hosts")
}

// Generated lists every path below Base the orchestrator writes.
func (l Layout) Generated() []string {
	return []string{
		filepath.Join(l.Base, "externalCAs"),
		filepath.Join(l.Base, "organizations"),
		filepath.Join(l.Base, "channel-artifacts"),
		filepath.Join(l.Base, "chaincode-artifacts"),
		filepath.Join(l.Base, "compose"),
		l.ConnectionProfile("json"),
		l.ConnectionProfile("yaml"),
		l.HostsFile(),
	}
}

// Rel returns p relative to Base; runtimes mount the base tree and address
// homes by this sub path.
func (l Layout) Rel(p string) string {
	rel, err := filepath.Rel(l.Base, p)
	if err != nil {
		return p
	}
	return rel
}

// MSPDir holds the conventional file names of a membership tree.
type MSPDir string

func (d MSPDir) CACert() string       { return filepath.Join(string(d), "cacerts", "cacert.pem") }
func (d MSPDir) TLSCACert() string    { return filepath.Join(string(d), "tlscacerts", "tlscacert.pem") }
func (d MSPDir) SignCert() string     { return filepath.Join(string(d), "signcerts", "cert.pem") }
func (d MSPDir) Key() string          { return filepath.Join(string(d), "keystore", "key.pem") }
func (d MSPDir) AdminCertDir() string { return filepath.Join(string(d), "admincerts") }

// TLSDir holds the conventional file names of a transport tree.
type TLSDir string

func (d TLSDir) CACert() string   { return filepath.Join(string(d), "tlscacerts", "tlscacert.pem") }
func (d TLSDir) SignCert() string { return filepath.Join(string(d), "signcerts", "cert.pem") }
func (d TLSDir) Key() string      { return filepath.Join(string(d), "keystore", "key.pem") }

func MSPOf(home string) MSPDir { return MSPDir(filepath.Join(home, "msp")) }
func TLSOf(home string) TLSDir { return TLSDir(filepath.Join(home, "tls")) }
