package service

import (
	"context"

	"hyperbench/model"
)

// Runtime runs node containers. Remove of a missing container is not an error.
type Runtime interface {
	Start(ctx context.Context, spec *model.ContainerSpec) error
	Remove(ctx context.Context, name string) error
	Exec(ctx context.Context, name string, cmd ...string) (string, error)
	Running(ctx context.Context, name string) (bool, error)
}

// CAClient talks to one CA as its bootstrap administrator. Register reports an
// identity the CA already knows with model.ErrDuplicateRegistration.
type CAClient interface {
	Register(ctx context.Context, req *model.RegistrationRequest) error
	Lookup(ctx context.Context, name string) (bool, error)
	Enroll(ctx context.Context, req *model.EnrollmentRequest) (*model.Enrollment, error)
}

type CAClientFactory interface {
	NewCAClient(ca *model.CertificateAuthority) (CAClient, error)
}

// PeerAdmin acts as an organization administrator against its peers.
type PeerAdmin interface {
	// JoinChannel fetches the genesis block from orderer and joins peer.
	JoinChannel(ctx context.Context, channel string, peer *model.Peer, orderer *model.Orderer) error
	InstallChaincode(ctx context.Context, peer *model.Peer, pkg *model.ChaincodePackage) (string, error)
	QueryInstalled(ctx context.Context, peer *model.Peer) ([]model.InstalledChaincode, error)
	ApproveChaincode(ctx context.Context, channel string, def *model.ChaincodeDefinition, peer *model.Peer, orderer *model.Orderer) error
	// CheckCommitReadiness returns the approval state of every organization.
	CheckCommitReadiness(ctx context.Context, channel string, def *model.ChaincodeDefinition, peer *model.Peer) (map[string]bool, error)
	CommitChaincode(ctx context.Context, channel string, def *model.ChaincodeDefinition, peers []*model.Peer, orderer *model.Orderer) error
	// QueryCommitted returns the committed sequence of name, 0 when none.
	QueryCommitted(ctx context.Context, channel, name string, peer *model.Peer) (int64, error)
	Close()
}

type PeerAdminFactory interface {
	NewPeerAdmin(net *model.Network, org *model.Organization) (PeerAdmin, error)
}

// OrdererAdmin drives the channel participation API of orderers with the
// TLS identity of the orderer organization admin.
type OrdererAdmin interface {
	// JoinChannel treats a channel that already exists on the orderer as joined.
	JoinChannel(ctx context.Context, org *model.Organization, orderer *model.Orderer, channel string, block []byte) error
	ListChannels(ctx context.Context, org *model.Organization, orderer *model.Orderer) ([]string, error)
}

// GenesisBuilder renders the serialized genesis block of an application
// channel whose lifecycle endorsement is quorum.
type GenesisBuilder interface {
	Build(net *model.Network, channel string, quorum *model.Policy) ([]byte, error)
}
