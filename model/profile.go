package model

import (
	"encoding/pem"
	"strings"

	"github.com/pkg/errors"
)

// ConnectionProfile is the descriptor handed to external clients. None of its
// types has a field for key material.
type ConnectionProfile struct {
	Name                   string                  `json:"name" yaml:"name"`
	Version                string                  `json:"version" yaml:"version"`
	Organizations          map[string]*ProfileOrg  `json:"organizations" yaml:"organizations"`
	Peers                  map[string]*ProfilePeer `json:"peers" yaml:"peers"`
	CertificateAuthorities map[string]*ProfileCA   `json:"certificateAuthorities" yaml:"certificateAuthorities"`
}

type ProfileOrg struct {
	MSPID                  string   `json:"mspid" yaml:"mspid"`
	Peers                  []string `json:"peers" yaml:"peers"`
	CertificateAuthorities []string `json:"certificateAuthorities" yaml:"certificateAuthorities"`
}

type ProfilePem struct {
	Pem string `json:"pem" yaml:"pem"`
}

type ProfileGRPCOptions struct {
	SSLTargetNameOverride string `json:"ssl-target-name-override" yaml:"ssl-target-name-override"`
	HostnameOverride      string `json:"hostnameOverride" yaml:"hostnameOverride"`
}

type ProfilePeer struct {
	URL         string             `json:"url" yaml:"url"`
	TLSCACerts  ProfilePem         `json:"tlsCACerts" yaml:"tlsCACerts"`
	GRPCOptions ProfileGRPCOptions `json:"grpcOptions" yaml:"grpcOptions"`
}

type ProfileHTTPOptions struct {
	Verify bool `json:"verify" yaml:"verify"`
}

type ProfileCA struct {
	URL         string             `json:"url" yaml:"url"`
	CAName      string             `json:"caName" yaml:"caName"`
	TLSCACerts  ProfilePem         `json:"tlsCACerts" yaml:"tlsCACerts"`
	HTTPOptions ProfileHTTPOptions `json:"httpOptions" yaml:"httpOptions"`
}

func NewConnectionProfile(name string) *ConnectionProfile {
	return &ConnectionProfile{
		Name:                   name,
		Version:                "1.0.0",
		Organizations:          map[string]*ProfileOrg{},
		Peers:                  map[string]*ProfilePeer{},
		CertificateAuthorities: map[string]*ProfileCA{},
	}
}

// CheckPublicPEM fails when data carries a private key block.
func CheckPublicPEM(data string) error {
	rest := []byte(data)
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if strings.Contains(block.Type, "PRIVATE KEY") {
			return errors.Errorf("refusing to embed a %s block", block.Type)
		}
	}
	if strings.Contains(data, "PRIVATE KEY-----") {
		return errors.New("refusing to embed private key material")
	}
	return nil
}

// Validate checks every embedded certificate of the profile.
func (p *ConnectionProfile) Validate() error {
	for name, peer := range p.Peers {
		if err := CheckPublicPEM(peer.TLSCACerts.Pem); err != nil {
			return errors.WithMessagef(err, "peer %s", name)
		}
	}
	for name, ca := range p.CertificateAuthorities {
		if err := CheckPublicPEM(ca.TLSCACerts.Pem); err != nil {
			return errors.WithMessagef(err, "ca %s", name)
		}
	}
	return nil
}
