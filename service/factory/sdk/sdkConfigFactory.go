package sdk

import (
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"hyperbench/model"
)

const (
	sdkConfigVersion = "1.0.0"
	defaultChannel   = "_default"
)

// SDKConfigFactory renders fabsdk configs from the materialized network.
type SDKConfigFactory struct {
	LogLevel string
}

func NewSDKConfigFactory(logLevel string) *SDKConfigFactory {
	if logLevel == "" {
		logLevel = "info"
	}
	return &SDKConfigFactory{LogLevel: logLevel}
}

func (f *SDKConfigFactory) newClient(org, storeDir string) *SDKConfigClient {
	c := &SDKConfigClient{Organization: org}
	c.Logging.Level = f.LogLevel
	c.CredentialStore.Path = filepath.Join(storeDir, "state")
	c.CredentialStore.CryptoStore.Path = filepath.Join(storeDir, "msp")
	return c
}

// CAStoreDir holds the sdk state of the client talking to ca.
func CAStoreDir(ca *model.CertificateAuthority) string {
	return filepath.Join(ca.HomeDir, "sdk")
}

// OrgStoreDir holds the sdk state of the admin client of org.
func OrgStoreDir(net *model.Network, org *model.Organization) string {
	return filepath.Join(net.Layout.Base, "sdk", org.Name)
}

// caOrgName is the client organization an msp client for ca binds to.
func caOrgName(ca *model.CertificateAuthority) string {
	if ca.IsTransport() {
		return ca.CommonName
	}
	return ca.OrgName
}

// NewCAConfig describes a client whose only peer is ca, registering as the
// bootstrap administrator of ca.
func (f *SDKConfigFactory) NewCAConfig(ca *model.CertificateAuthority) (*SDKConfig, error) {
	root, err := readPem(ca.SelfCertFile())
	if err != nil {
		return nil, errors.WithMessage(err, "fail to read ca cert")
	}

	org := caOrgName(ca)
	sdkCA := &SDKConfigCA{URL: ca.URL(), CAName: ca.CommonName}
	sdkCA.TLSCACerts.Pem = []string{root}
	sdkCA.Registrar.EnrollID = ca.Admin.ID
	sdkCA.Registrar.EnrollSecret = ca.Admin.Secret

	return &SDKConfig{
		Version: sdkConfigVersion,
		Client:  f.newClient(org, CAStoreDir(ca)),
		Organizations: map[string]*SDKConfigOrganization{
			org: {
				Mspid:                  model.MSPID(org),
				CertificateAuthorities: []string{ca.CommonName},
			},
		},
		CertificateAuthorities: map[string]*SDKConfigCA{ca.CommonName: sdkCA},
	}, nil
}

// NewOrgConfig describes every peer and orderer of net with the admin of org
// as the only user.
func (f *SDKConfigFactory) NewOrgConfig(net *model.Network, org *model.Organization) (*SDKConfig, error) {
	tlsRoot, err := readPem(net.TransportCA.SelfCertFile())
	if err != nil {
		return nil, errors.WithMessage(err, "fail to read transport root")
	}
	if org.Admin == nil {
		return nil, errors.Errorf("organization %s has no admin", org.Name)
	}
	cert, err := readPem(org.Admin.CertPath())
	if err != nil {
		return nil, errors.WithMessage(err, "fail to read admin cert")
	}
	key, err := readPem(org.Admin.KeyPath())
	if err != nil {
		return nil, errors.WithMessage(err, "fail to read admin key")
	}

	sdkconfig := &SDKConfig{
		Version:       sdkConfigVersion,
		Client:        f.newClient(org.Name, OrgStoreDir(net, org)),
		Organizations: map[string]*SDKConfigOrganization{},
		Orderers:      map[string]*SDKConfigNode{},
		Peers:         map[string]*SDKConfigNode{},
		Channels: map[string]*SDKConfigChannel{
			defaultChannel: {Peers: map[string]*SDKConfigChannelPeer{}},
		},
	}

	for _, o := range net.Organizations {
		sdkOrg := &SDKConfigOrganization{Mspid: o.MSPID}
		for _, p := range o.Peers {
			sdkOrg.Peers = append(sdkOrg.Peers, p.Name)
		}
		sdkconfig.Organizations[o.Name] = sdkOrg
	}
	sdkconfig.Organizations[org.Name].Users = map[string]*SDKConfigOrganizationUser{
		org.Admin.Name: {
			Key:  SDKConfigPem{Pem: key},
			Cert: SDKConfigPem{Pem: cert},
		},
	}

	for _, o := range net.Orderers() {
		sdkconfig.Orderers[o.Name] = newNode(o.URL(), o.Name, tlsRoot)
		sdkconfig.Channels[defaultChannel].Orderers = append(sdkconfig.Channels[defaultChannel].Orderers, o.Name)
	}
	for _, p := range net.Peers() {
		sdkconfig.Peers[p.Name] = newNode(p.URL(), p.Name, tlsRoot)
		sdkconfig.Channels[defaultChannel].Peers[p.Name] = &SDKConfigChannelPeer{
			EndorsingPeer:  true,
			ChaincodeQuery: true,
			LedgerQuery:    true,
			EventSource:    true,
		}
	}
	return sdkconfig, nil
}

func newNode(url, host, tlsRoot string) *SDKConfigNode {
	return &SDKConfigNode{
		URL: url,
		GRPCOptions: map[string]interface{}{
			"ssl-target-name-override": host,
			"keep-alive-time":          "0s",
			"keep-alive-timeout":       "20s",
			"keep-alive-permit":        false,
			"fail-fast":                false,
			"allow-insecure":           false,
		},
		TLSCACerts: SDKConfigPem{Pem: tlsRoot},
	}
}

// Marshal renders c and keeps a copy in dir for inspection.
func Marshal(c *SDKConfig, dir, name string) ([]byte, error) {
	raw, err := yaml.Marshal(c)
	if err != nil {
		return nil, errors.WithMessage(err, "fail to marshal sdk config")
	}
	if dir != "" {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return nil, errors.WithMessage(err, "fail to create sdk dir")
		}
		if err := ioutil.WriteFile(filepath.Join(dir, name+".yaml"), raw, 0600); err != nil {
			return nil, errors.WithMessage(err, "fail to store sdk config")
		}
	}
	return raw, nil
}

func readPem(path string) (string, error) {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
