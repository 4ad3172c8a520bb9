package model

// Network is the materialized form of a TopologyDefinition.
type Network struct {
	Name          string                `json:"name"`
	Layout        Layout                `json:"-"`
	TransportCA   *CertificateAuthority `json:"transportCA"`
	Organizations []*Organization       `json:"organizations"`
}

func (n *Network) PeerOrgs() []*Organization {
	return n.orgsOf(PeerOrg)
}

func (n *Network) OrdererOrgs() []*Organization {
	return n.orgsOf(OrdererOrg)
}

func (n *Network) orgsOf(kind OrgKind) []*Organization {
	var out []*Organization
	for _, o := range n.Organizations {
		if o.Kind == kind {
			out = append(out, o)
		}
	}
	return out
}

func (n *Network) Organization(name string) *Organization {
	for _, o := range n.Organizations {
		if o.Name == name {
			return o
		}
	}
	return nil
}

func (n *Network) Peers() []*Peer {
	var out []*Peer
	for _, o := range n.PeerOrgs() {
		out = append(out, o.Peers...)
	}
	return out
}

func (n *Network) Orderers() []*Orderer {
	var out []*Orderer
	for _, o := range n.OrdererOrgs() {
		out = append(out, o.Orderers...)
	}
	return out
}

// CAs returns the transport CA followed by the organization CAs.
func (n *Network) CAs() []*CertificateAuthority {
	out := []*CertificateAuthority{n.TransportCA}
	for _, o := range n.Organizations {
		out = append(out, o.CA)
	}
	return out
}

// Consenters is the full ordering service membership set.
func (n *Network) Consenters() []ConsenterDescriptor {
	var out []ConsenterDescriptor
	for _, o := range n.Orderers() {
		out = append(out, o.Consenter)
	}
	return out
}

// Hosts returns every container host name of the network.
func (n *Network) Hosts() []string {
	var out []string
	for _, ca := range n.CAs() {
		out = append(out, ca.Host())
	}
	for _, p := range n.Peers() {
		out = append(out, p.Name)
	}
	for _, o := range n.Orderers() {
		out = append(out, o.Name)
	}
	return out
}
