package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/ioutil"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"hyperbench/model"
)

const (
	ProfileName = "fabric-network"

	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ProfileService renders the descriptor clients use to reach the network.
type ProfileService struct {
	net *model.Network
}

func NewProfileService(net *model.Network) *ProfileService {
	return &ProfileService{net: net}
}

func readPEM(path string) (string, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return "", errors.WithMessagef(err, "fail to read %s", path)
	}
	if err := model.CheckPublicPEM(string(data)); err != nil {
		return "", errors.WithMessage(err, path)
	}
	return string(data), nil
}

// Generate builds the profile of the peer organizations from the imported CA
// certificates.
func (ps *ProfileService) Generate() (*model.ConnectionProfile, error) {
	transport, err := readPEM(ps.net.TransportCA.MSP().CACert())
	if err != nil {
		return nil, err
	}

	profile := model.NewConnectionProfile(ProfileName)
	for _, org := range ps.net.PeerOrgs() {
		po := &model.ProfileOrg{
			MSPID:                  org.MSPID,
			CertificateAuthorities: []string{org.CA.CommonName},
		}
		for _, p := range org.Peers {
			po.Peers = append(po.Peers, p.Name)
			profile.Peers[p.Name] = &model.ProfilePeer{
				URL:        p.URL(),
				TLSCACerts: model.ProfilePem{Pem: transport},
				GRPCOptions: model.ProfileGRPCOptions{
					SSLTargetNameOverride: p.Name,
					HostnameOverride:      p.Name,
				},
			}
		}
		profile.Organizations[org.Name] = po

		caCert, err := readPEM(org.CA.MSP().CACert())
		if err != nil {
			return nil, err
		}
		profile.CertificateAuthorities[org.CA.CommonName] = &model.ProfileCA{
			URL:         org.CA.URL(),
			CAName:      org.CA.CommonName,
			TLSCACerts:  model.ProfilePem{Pem: caCert},
			HTTPOptions: model.ProfileHTTPOptions{Verify: false},
		}
	}

	if err := profile.Validate(); err != nil {
		return nil, err
	}
	return profile, nil
}

// Render encodes profile as json (the default) or yaml.
func Render(profile *model.ConnectionProfile, format string) ([]byte, error) {
	switch format {
	case "", FormatJSON:
		return json.MarshalIndent(profile, "", "  ")
	case FormatYAML:
		return yaml.Marshal(profile)
	default:
		return nil, errors.Errorf("unknown profile format %q", format)
	}
}

// Write generates the profile and stores it under the network base.
func (ps *ProfileService) Write(format string) (string, error) {
	if format == "" {
		format = FormatJSON
	}
	profile, err := ps.Generate()
	if err != nil {
		return "", err
	}
	data, err := Render(profile, format)
	if err != nil {
		return "", err
	}
	path := ps.net.Layout.ConnectionProfile(format)
	if err := writeFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}

// Hosts maps every CA and node name to the loopback address.
func (ps *ProfileService) Hosts() []byte {
	var buf bytes.Buffer
	for _, host := range ps.net.Hosts() {
		fmt.Fprintf(&buf, "127.0.0.1 %s\n", host)
	}
	return buf.Bytes()
}

func (ps *ProfileService) WriteHosts() (string, error) {
	path := ps.net.Layout.HostsFile()
	return path, writeFile(path, ps.Hosts(), 0644)
}
