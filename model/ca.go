package model

import (
	"fmt"
	"path/filepath"
)

// Credential is an enrollment id and secret pair.
type Credential struct {
	ID     string `json:"id"`
	Secret string `json:"-"`
}

// CertificateAuthority is either the network-wide transport CA or the CA of a
// single organization.
type CertificateAuthority struct {
	Role       CARole     `json:"role"`
	CommonName string     `json:"commonName"`
	OrgName    string     `json:"orgName,omitempty"`
	Port       int        `json:"port"`
	HomeDir    string     `json:"homeDir"`
	Admin      Credential `json:"admin"`
}

func (ca *CertificateAuthority) IsTransport() bool {
	return ca.Role == RoleTransport
}

// Host is the address other containers use to reach the CA.
func (ca *CertificateAuthority) Host() string {
	return ca.CommonName
}

func (ca *CertificateAuthority) Endpoint() string {
	return fmt.Sprintf("%s:%d", ca.Host(), ca.Port)
}

func (ca *CertificateAuthority) URL() string {
	return "https://" + ca.Endpoint()
}

// SelfCertFile is published by the CA process once it is up.
func (ca *CertificateAuthority) SelfCertFile() string {
	return filepath.Join(ca.HomeDir, "ca-cert.pem")
}

func (ca *CertificateAuthority) MSP() MSPDir {
	return MSPOf(ca.HomeDir)
}

// TransportCertFile is where an org CA keeps a copy of the transport root.
func (ca *CertificateAuthority) TransportCertFile() string {
	return filepath.Join(ca.HomeDir, "tls-ca-cert.pem")
}

func (ca *CertificateAuthority) TransportCertInMSP() string {
	return filepath.Join(string(ca.MSP()), "tlscacerts", "tls-ca-cert.pem")
}

func (ca *CertificateAuthority) BootstrapAdminHome() string {
	return filepath.Join(ca.HomeDir, "bootstrapAdmin")
}

// AdminName is the bootstrap administrator id of an organization or CA.
func AdminName(org string) string {
	return "admin." + org
}

// BootstrapCredential is the pre-shared credential a CA is started with.
func BootstrapCredential(owner string) Credential {
	return Credential{ID: AdminName(owner), Secret: AdminName(owner) + "pw"}
}
