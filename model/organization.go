package model

type OrgKind string

const (
	PeerOrg    OrgKind = "peer"
	OrdererOrg OrgKind = "orderer"
)

// Organization owns one CA, one admin identity and its nodes.
type Organization struct {
	Kind     OrgKind               `json:"kind"`
	Name     string                `json:"name"`
	MSPID    string                `json:"mspId"`
	CA       *CertificateAuthority `json:"ca"`
	Admin    *Identity             `json:"admin"`
	Peers    []*Peer               `json:"peers,omitempty"`
	Orderers []*Orderer            `json:"orderers,omitempty"`
}

// Members returns every node identity of the organization.
func (o *Organization) Members() []*Identity {
	var ids []*Identity
	for _, p := range o.Peers {
		ids = append(ids, &p.Identity)
	}
	for _, n := range o.Orderers {
		ids = append(ids, &n.Identity)
	}
	return ids
}
