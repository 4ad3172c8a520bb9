package model

import (
	"fmt"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type CARole string

const (
	RoleTransport    CARole = "transport"
	RolePeerOrgCA    CARole = "peerOrgCA"
	RoleOrdererOrgCA CARole = "ordererOrgCA"
)

// TopologyEntry is one variant of the topology schema. The concrete types are
// TransportCASpec, PeerOrgSpec and OrdererOrgSpec.
type TopologyEntry interface {
	Role() CARole
	validate() error
}

type TransportCASpec struct {
	CommonName string
	Port       int
}

type NodeSpec struct {
	Name string
	Port int
}

type OrdererNodeSpec struct {
	Name      string
	Port      int
	AdminPort int
}

type PeerOrgSpec struct {
	CommonName string
	OrgName    string
	Port       int
	Peers      []NodeSpec
}

type OrdererOrgSpec struct {
	CommonName string
	OrgName    string
	Port       int
	Orderers   []OrdererNodeSpec
}

func (TransportCASpec) Role() CARole { return RoleTransport }
func (PeerOrgSpec) Role() CARole     { return RolePeerOrgCA }
func (OrdererOrgSpec) Role() CARole  { return RoleOrdererOrgCA }

func (s TransportCASpec) validate() error {
	if s.CommonName == "" {
		return errors.New("transport CA needs a common name")
	}
	return validatePort(s.CommonName, s.Port)
}

func (s PeerOrgSpec) validate() error {
	if s.CommonName == "" || s.OrgName == "" {
		return errors.New("peer organization CA needs a common name and an org name")
	}
	if len(s.Peers) == 0 {
		return errors.Errorf("peer organization %s has no peers", s.OrgName)
	}
	for _, p := range s.Peers {
		if p.Name == "" {
			return errors.Errorf("peer organization %s has an unnamed peer", s.OrgName)
		}
		if err := validatePort(p.Name, p.Port); err != nil {
			return err
		}
	}
	return validatePort(s.CommonName, s.Port)
}

func (s OrdererOrgSpec) validate() error {
	if s.CommonName == "" || s.OrgName == "" {
		return errors.New("orderer organization CA needs a common name and an org name")
	}
	if len(s.Orderers) == 0 {
		return errors.Errorf("orderer organization %s has no orderers", s.OrgName)
	}
	for _, o := range s.Orderers {
		if o.Name == "" {
			return errors.Errorf("orderer organization %s has an unnamed orderer", s.OrgName)
		}
		if err := validatePort(o.Name, o.Port); err != nil {
			return err
		}
		if o.AdminPort == 0 {
			return errors.Errorf("orderer %s has no admin port", o.Name)
		}
		if err := validatePort(o.Name, o.AdminPort); err != nil {
			return err
		}
	}
	return validatePort(s.CommonName, s.Port)
}

func validatePort(owner string, port int) error {
	if port < 1 || port > 65535 {
		return errors.Errorf("%s: port %d out of range", owner, port)
	}
	return nil
}

// TopologyDefinition is the validated, immutable description of a network.
type TopologyDefinition struct {
	entries []TopologyEntry
}

// NewTopologyDefinition validates entries and freezes them.
func NewTopologyDefinition(entries ...TopologyEntry) (*TopologyDefinition, error) {
	var (
		transports  int
		peerOrgs    int
		ordererOrgs int
		names       = map[string]bool{}
		ports       = map[int]string{}
		mspIDs      = map[string]string{}
	)

	claimName := func(name string) error {
		if names[name] {
			return errors.Errorf("duplicated name %s", name)
		}
		names[name] = true
		return nil
	}
	claimPort := func(owner string, port int) error {
		if other, ok := ports[port]; ok {
			return errors.Errorf("port %d used by both %s and %s", port, other, owner)
		}
		ports[port] = owner
		return nil
	}
	claimOrg := func(org string) error {
		if err := claimName(org); err != nil {
			return err
		}
		id := MSPID(org)
		if other, ok := mspIDs[id]; ok {
			return errors.Errorf("organizations %s and %s map to the same MSP id %s", other, org, id)
		}
		mspIDs[id] = org
		return nil
	}

	for _, e := range entries {
		if e == nil {
			return nil, errors.New("nil topology entry")
		}
		if err := e.validate(); err != nil {
			return nil, errors.WithMessage(err, "invalid topology")
		}

		var err error
		switch s := e.(type) {
		case TransportCASpec:
			transports++
			if err = claimName(s.CommonName); err == nil {
				err = claimPort(s.CommonName, s.Port)
			}
		case PeerOrgSpec:
			peerOrgs++
			err = claimOrg(s.OrgName)
			if err == nil {
				err = claimName(s.CommonName)
			}
			if err == nil {
				err = claimPort(s.CommonName, s.Port)
			}
			for _, p := range s.Peers {
				if err != nil {
					break
				}
				if err = claimName(p.Name); err == nil {
					err = claimPort(p.Name, p.Port)
				}
			}
		case OrdererOrgSpec:
			ordererOrgs++
			err = claimOrg(s.OrgName)
			if err == nil {
				err = claimName(s.CommonName)
			}
			if err == nil {
				err = claimPort(s.CommonName, s.Port)
			}
			for _, o := range s.Orderers {
				if err != nil {
					break
				}
				if err = claimName(o.Name); err == nil {
					err = claimPort(o.Name, o.Port)
				}
				if err == nil {
					err = claimPort(o.Name+" admin", o.AdminPort)
				}
			}
		default:
			err = errors.Errorf("unknown topology entry %T", e)
		}
		if err != nil {
			return nil, errors.WithMessage(err, "invalid topology")
		}
	}

	switch {
	case transports != 1:
		return nil, errors.Errorf("invalid topology: need exactly one transport CA, got %d", transports)
	case peerOrgs == 0:
		return nil, errors.New("invalid topology: need at least one peer organization")
	case ordererOrgs == 0:
		return nil, errors.New("invalid topology: need at least one orderer organization")
	}

	frozen := make([]TopologyEntry, len(entries))
	copy(frozen, entries)
	return &TopologyDefinition{entries: frozen}, nil
}

// Entries returns a copy of the entries in input order.
func (t *TopologyDefinition) Entries() []TopologyEntry {
	out := make([]TopologyEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

func (t *TopologyDefinition) Transport() TransportCASpec {
	for _, e := range t.entries {
		if s, ok := e.(TransportCASpec); ok {
			return s
		}
	}
	return TransportCASpec{}
}

func (t *TopologyDefinition) PeerOrgs() []PeerOrgSpec {
	var out []PeerOrgSpec
	for _, e := range t.entries {
		if s, ok := e.(PeerOrgSpec); ok {
			s.Peers = append([]NodeSpec(nil), s.Peers...)
			out = append(out, s)
		}
	}
	return out
}

func (t *TopologyDefinition) OrdererOrgs() []OrdererOrgSpec {
	var out []OrdererOrgSpec
	for _, e := range t.entries {
		if s, ok := e.(OrdererOrgSpec); ok {
			s.Orderers = append([]OrdererNodeSpec(nil), s.Orderers...)
			out = append(out, s)
		}
	}
	return out
}

// topologyDoc is the wire form of one entry.
type topologyDoc struct {
	Role       CARole        `yaml:"role" json:"role"`
	CommonName string        `yaml:"commonName" json:"commonName"`
	OrgName    string        `yaml:"orgName,omitempty" json:"orgName,omitempty"`
	Port       int           `yaml:"port" json:"port"`
	Children   []topologyKid `yaml:"children,omitempty" json:"children,omitempty"`
}

type topologyKid struct {
	Name      string `yaml:"name" json:"name"`
	Port      int    `yaml:"port" json:"port"`
	AdminPort int    `yaml:"adminPort,omitempty" json:"adminPort,omitempty"`
}

func (d topologyDoc) entry() (TopologyEntry, error) {
	switch d.Role {
	case RoleTransport:
		if len(d.Children) > 0 {
			return nil, errors.Errorf("transport CA %s cannot have children", d.CommonName)
		}
		return TransportCASpec{CommonName: d.CommonName, Port: d.Port}, nil
	case RolePeerOrgCA:
		s := PeerOrgSpec{CommonName: d.CommonName, OrgName: d.OrgName, Port: d.Port}
		for _, k := range d.Children {
			if k.AdminPort != 0 {
				return nil, errors.Errorf("peer %s cannot have an admin port", k.Name)
			}
			s.Peers = append(s.Peers, NodeSpec{Name: k.Name, Port: k.Port})
		}
		return s, nil
	case RoleOrdererOrgCA:
		s := OrdererOrgSpec{CommonName: d.CommonName, OrgName: d.OrgName, Port: d.Port}
		for _, k := range d.Children {
			s.Orderers = append(s.Orderers, OrdererNodeSpec{Name: k.Name, Port: k.Port, AdminPort: k.AdminPort})
		}
		return s, nil
	}
	return nil, errors.Errorf("unknown role %q", d.Role)
}

func docOf(e TopologyEntry) topologyDoc {
	switch s := e.(type) {
	case TransportCASpec:
		return topologyDoc{Role: RoleTransport, CommonName: s.CommonName, Port: s.Port}
	case PeerOrgSpec:
		d := topologyDoc{Role: RolePeerOrgCA, CommonName: s.CommonName, OrgName: s.OrgName, Port: s.Port}
		for _, p := range s.Peers {
			d.Children = append(d.Children, topologyKid{Name: p.Name, Port: p.Port})
		}
		return d
	case OrdererOrgSpec:
		d := topologyDoc{Role: RoleOrdererOrgCA, CommonName: s.CommonName, OrgName: s.OrgName, Port: s.Port}
		for _, o := range s.Orderers {
			d.Children = append(d.Children, topologyKid{Name: o.Name, Port: o.Port, AdminPort: o.AdminPort})
		}
		return d
	}
	panic(fmt.Sprintf("unknown topology entry %T", e))
}

// ParseTopology decodes the YAML (or JSON) wire form and validates it.
func ParseTopology(raw []byte) (*TopologyDefinition, error) {
	var docs []topologyDoc
	if err := yaml.Unmarshal(raw, &docs); err != nil {
		return nil, errors.WithMessage(err, "fail to decode topology")
	}
	entries := make([]TopologyEntry, 0, len(docs))
	for _, d := range docs {
		e, err := d.entry()
		if err != nil {
			return nil, errors.WithMessage(err, "invalid topology")
		}
		entries = append(entries, e)
	}
	return NewTopologyDefinition(entries...)
}

// Marshal encodes the topology in its YAML wire form.
func (t *TopologyDefinition) Marshal() ([]byte, error) {
	docs := make([]topologyDoc, 0, len(t.entries))
	for _, e := range t.entries {
		docs = append(docs, docOf(e))
	}
	return yaml.Marshal(docs)
}

// TopologyParams are the generator parameters exposed on the CLI.
type TopologyParams struct {
	Orgs         int `json:"orgs" yaml:"orgs" mapstructure:"orgs"`
	PeersPerOrg  int `json:"peersPerOrg" yaml:"peersPerOrg" mapstructure:"peersPerOrg"`
	Orderers     int `json:"orderers" yaml:"orderers" mapstructure:"orderers"`
	StartingPort int `json:"startingPort" yaml:"startingPort" mapstructure:"startingPort"`
}

// GenerateTopology builds the conventional topology: one transport CA, Orgs peer
// organizations with PeersPerOrg peers each and one orderer organization.
// Ports are handed out sequentially after StartingPort.
func GenerateTopology(p TopologyParams) (*TopologyDefinition, error) {
	if p.Orgs < 1 || p.PeersPerOrg < 1 || p.Orderers < 1 {
		return nil, errors.Errorf("need at least one org, one peer per org and one orderer, got %d/%d/%d",
			p.Orgs, p.PeersPerOrg, p.Orderers)
	}

	port := p.StartingPort
	next := func() int {
		port++
		return port
	}

	entries := []TopologyEntry{TransportCASpec{CommonName: "tls.ca", Port: next()}}

	for i := 1; i <= p.Orgs; i++ {
		org := fmt.Sprintf("org%d.org", i)
		s := PeerOrgSpec{CommonName: "ca." + org, OrgName: org, Port: next()}
		for j := 1; j <= p.PeersPerOrg; j++ {
			s.Peers = append(s.Peers, NodeSpec{Name: fmt.Sprintf("peer%d.%s", j, org), Port: next()})
		}
		entries = append(entries, s)
	}

	s := OrdererOrgSpec{CommonName: "ca.orderer.org", OrgName: "orderer.org", Port: next()}
	for k := 1; k <= p.Orderers; k++ {
		s.Orderers = append(s.Orderers, OrdererNodeSpec{
			Name:      fmt.Sprintf("orderer%d.orderer.org", k),
			Port:      next(),
			AdminPort: next(),
		})
	}
	entries = append(entries, s)

	return NewTopologyDefinition(entries...)
}
