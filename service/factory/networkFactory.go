package factory

import (
	"github.com/pkg/errors"

	"hyperbench/model"
)

type NetworkFactory struct {
	layout model.Layout
}

func NewNetworkFactory(base string) *NetworkFactory {
	return &NetworkFactory{layout: model.NewLayout(base)}
}

// NewNetwork materializes topo: homes are allocated, gossip lists wired and the
// consenter set assembled. Nothing is started.
func (nf *NetworkFactory) NewNetwork(name string, topo *model.TopologyDefinition) (*model.Network, error) {
	if name == "" {
		return nil, errors.New("network needs a name")
	}
	if topo == nil {
		return nil, errors.New("network needs a topology")
	}

	transport := topo.Transport()
	net := &model.Network{
		Name:   name,
		Layout: nf.layout,
		TransportCA: &model.CertificateAuthority{
			Role:       model.RoleTransport,
			CommonName: transport.CommonName,
			Port:       transport.Port,
			HomeDir:    nf.layout.TransportCAHome(transport.CommonName),
			Admin:      model.BootstrapCredential(transport.CommonName),
		},
	}

	for _, spec := range topo.PeerOrgs() {
		org := nf.newOrganization(model.PeerOrg, spec.OrgName, spec.CommonName, spec.Port)
		for _, p := range spec.Peers {
			org.Peers = append(org.Peers, nf.NewPeer(org, p))
		}
		if err := model.WireGossip(org.Peers); err != nil {
			return nil, errors.WithMessagef(err, "fail to wire gossip of %s", org.Name)
		}
		net.Organizations = append(net.Organizations, org)
	}

	for _, spec := range topo.OrdererOrgs() {
		org := nf.newOrganization(model.OrdererOrg, spec.OrgName, spec.CommonName, spec.Port)
		for _, o := range spec.Orderers {
			org.Orderers = append(org.Orderers, nf.NewOrderer(org, o))
		}
		net.Organizations = append(net.Organizations, org)
	}

	return net, nil
}

func (nf *NetworkFactory) newOrganization(kind model.OrgKind, name, caName string, caPort int) *model.Organization {
	role := model.RolePeerOrgCA
	if kind == model.OrdererOrg {
		role = model.RoleOrdererOrgCA
	}
	return &model.Organization{
		Kind:  kind,
		Name:  name,
		MSPID: model.MSPID(name),
		CA: &model.CertificateAuthority{
			Role:       role,
			CommonName: caName,
			OrgName:    name,
			Port:       caPort,
			HomeDir:    nf.layout.OrgCAHome(kind, name),
			Admin:      model.BootstrapCredential(name),
		},
		// The bootstrap admin already owns "admin.<org>" on the CA.
		Admin: &model.Identity{
			Kind:    model.KindAdmin,
			Name:    "admin" + name,
			Secret:  "admin" + name + "pw",
			HomeDir: nf.layout.AdminHome(kind, name),
		},
	}
}

func (nf *NetworkFactory) NewPeer(org *model.Organization, spec model.NodeSpec) *model.Peer {
	return &model.Peer{
		Name:     spec.Name,
		Port:     spec.Port,
		OrgName:  org.Name,
		MSPID:    org.MSPID,
		Identity: nodeIdentity(model.KindPeer, spec.Name, nf.layout.PeerHome(org.Name, spec.Name)),
	}
}

func (nf *NetworkFactory) NewOrderer(org *model.Organization, spec model.OrdererNodeSpec) *model.Orderer {
	o := &model.Orderer{
		Name:      spec.Name,
		Port:      spec.Port,
		AdminPort: spec.AdminPort,
		OrgName:   org.Name,
		MSPID:     org.MSPID,
		Identity:  nodeIdentity(model.KindOrderer, spec.Name, nf.layout.OrdererHome(org.Name, spec.Name)),
	}
	o.Consenter = model.NewConsenter(o)
	return o
}

func nodeIdentity(kind model.IdentityKind, name, home string) model.Identity {
	return model.Identity{
		Kind:    kind,
		Name:    name,
		Secret:  name + "-pw",
		Host:    name,
		HomeDir: home,
	}
}
