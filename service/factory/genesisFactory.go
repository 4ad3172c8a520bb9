package factory

import (
	"crypto/x509"
	"encoding/pem"
	"io/ioutil"
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/hyperledger/fabric-config/configtx"
	"github.com/hyperledger/fabric-config/configtx/orderer"
	"github.com/pkg/errors"

	"hyperbench/model"
)

const capabilityV2 = "V2_0"

// GenesisFactory renders application channel genesis blocks for raft
// networks that bootstrap through channel participation.
type GenesisFactory struct {
	BatchTimeout time.Duration
	BatchSize    orderer.BatchSize
	RaftOptions  orderer.EtcdRaftOptions
}

func NewGenesisFactory() *GenesisFactory {
	return &GenesisFactory{
		BatchTimeout: 2 * time.Second,
		BatchSize: orderer.BatchSize{
			MaxMessageCount:   100,
			AbsoluteMaxBytes:  1024 * 1024,
			PreferredMaxBytes: 512 * 1024,
		},
		RaftOptions: orderer.EtcdRaftOptions{
			TickInterval:         "500ms",
			ElectionTick:         10,
			HeartbeatTick:        1,
			MaxInflightBlocks:    5,
			SnapshotIntervalSize: 16 * 1024 * 1024,
		},
	}
}

func implicitMeta(rule string) configtx.Policy {
	return configtx.Policy{Type: "ImplicitMeta", Rule: rule}
}

func signature(rule string) configtx.Policy {
	return configtx.Policy{Type: "Signature", Rule: rule}
}

// Build serializes the genesis block of channel: every peer org joins the
// application group, every orderer is a consenter.
func (gf *GenesisFactory) Build(net *model.Network, channel string, quorum *model.Policy) ([]byte, error) {
	channelConfig, err := gf.NewChannel(net, quorum)
	if err != nil {
		return nil, err
	}
	block, err := configtx.NewApplicationChannelGenesisBlock(channelConfig, channel)
	if err != nil {
		return nil, errors.WithMessage(err, "fail to create genesis block")
	}
	raw, err := proto.Marshal(block)
	if err != nil {
		return nil, errors.WithMessage(err, "fail to marshal genesis block")
	}
	return raw, nil
}

// NewChannel renders quorum as the Endorsement and LifecycleEndorsement
// policies of the application group. A nil quorum is a majority of the peer
// organizations.
func (gf *GenesisFactory) NewChannel(net *model.Network, quorum *model.Policy) (configtx.Channel, error) {
	var (
		ordererOrgs []configtx.Organization
		peerOrgs    []configtx.Organization
		consenters  []orderer.Consenter
	)

	for _, org := range net.OrdererOrgs() {
		o, err := newOrganization(org)
		if err != nil {
			return configtx.Channel{}, err
		}
		for _, n := range org.Orderers {
			o.OrdererEndpoints = append(o.OrdererEndpoints, n.Address())
		}
		ordererOrgs = append(ordererOrgs, o)
	}
	for _, c := range net.Consenters() {
		consenter, err := newConsenter(c)
		if err != nil {
			return configtx.Channel{}, err
		}
		consenters = append(consenters, consenter)
	}
	for _, org := range net.PeerOrgs() {
		o, err := newOrganization(org)
		if err != nil {
			return configtx.Channel{}, err
		}
		if len(org.Peers) > 0 {
			anchor := org.Peers[0]
			o.AnchorPeers = []configtx.Address{{Host: anchor.Name, Port: anchor.Port}}
		}
		peerOrgs = append(peerOrgs, o)
	}
	if len(consenters) == 0 {
		return configtx.Channel{}, errors.New("network has no orderer")
	}
	if len(peerOrgs) == 0 {
		return configtx.Channel{}, errors.New("network has no peer organization")
	}
	if quorum == nil {
		var mspIDs []string
		for _, org := range net.PeerOrgs() {
			mspIDs = append(mspIDs, org.MSPID)
		}
		var err error
		if quorum, err = model.ResolvePolicy(model.QuorumMajority, mspIDs); err != nil {
			return configtx.Channel{}, err
		}
	}

	return configtx.Channel{
		Orderer: configtx.Orderer{
			OrdererType:   "etcdraft",
			Organizations: ordererOrgs,
			EtcdRaft: orderer.EtcdRaft{
				Consenters: consenters,
				Options:    gf.RaftOptions,
			},
			Policies: map[string]configtx.Policy{
				"Readers":         implicitMeta("ANY Readers"),
				"Writers":         implicitMeta("ANY Writers"),
				"Admins":          implicitMeta("MAJORITY Admins"),
				"BlockValidation": implicitMeta("ANY Writers"),
			},
			Capabilities: []string{capabilityV2},
			BatchSize:    gf.BatchSize,
			BatchTimeout: gf.BatchTimeout,
			State:        orderer.ConsensusStateNormal,
		},
		Application: configtx.Application{
			Organizations: peerOrgs,
			Capabilities:  []string{capabilityV2},
			Policies: map[string]configtx.Policy{
				"Readers":              implicitMeta("ANY Readers"),
				"Writers":              implicitMeta("ANY Writers"),
				"Admins":               implicitMeta("MAJORITY Admins"),
				"Endorsement":          signature(quorum.String()),
				"LifecycleEndorsement": signature(quorum.String()),
			},
		},
		Capabilities: []string{capabilityV2},
		Policies: map[string]configtx.Policy{
			"Readers": implicitMeta("ANY Readers"),
			"Writers": implicitMeta("ANY Writers"),
			"Admins":  implicitMeta("MAJORITY Admins"),
		},
	}, nil
}

// newOrganization reads the membership material the org CA published.
func newOrganization(org *model.Organization) (configtx.Organization, error) {
	root, err := parseCertificate(org.CA.MSP().CACert())
	if err != nil {
		return configtx.Organization{}, err
	}
	tlsRoot, err := parseCertificate(org.CA.TransportCertInMSP())
	if err != nil {
		return configtx.Organization{}, err
	}
	admin, err := parseCertificate(org.Admin.CertPath())
	if err != nil {
		return configtx.Organization{}, err
	}

	member := model.SignatureRule(org.MSPID, model.RoleMember)
	return configtx.Organization{
		Name: org.MSPID,
		Policies: map[string]configtx.Policy{
			"Readers":     signature(member),
			"Writers":     signature(member),
			"Admins":      signature(model.SignatureRule(org.MSPID, model.RoleAdmin)),
			"Endorsement": signature(member),
		},
		MSP: configtx.MSP{
			Name:         org.MSPID,
			RootCerts:    []*x509.Certificate{root},
			Admins:       []*x509.Certificate{admin},
			TLSRootCerts: []*x509.Certificate{tlsRoot},
		},
	}, nil
}

func newConsenter(c model.ConsenterDescriptor) (orderer.Consenter, error) {
	client, err := parseCertificate(c.ClientTLSCert)
	if err != nil {
		return orderer.Consenter{}, err
	}
	server, err := parseCertificate(c.ServerTLSCert)
	if err != nil {
		return orderer.Consenter{}, err
	}
	return orderer.Consenter{
		Address:       orderer.EtcdAddress{Host: c.Host, Port: c.Port},
		ClientTLSCert: client,
		ServerTLSCert: server,
	}, nil
}

// parseCertificate loads the first PEM certificate at path.
func parseCertificate(path string) (*x509.Certificate, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.WithMessage(err, "fail to read certificate")
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.Errorf("no pem block in %s", path)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, errors.WithMessagef(err, "fail to parse %s", path)
	}
	return cert, nil
}
