package model

import (
	"fmt"
	"net"
	"strconv"

	"github.com/pkg/errors"
)

type Peer struct {
	Name     string   `json:"name"`
	Port     int      `json:"port"`
	OrgName  string   `json:"org"`
	MSPID    string   `json:"mspId"`
	Identity Identity `json:"identity"`

	// GossipBootstrap lists the other peers of the same organization.
	GossipBootstrap []string `json:"gossipBootstrap"`
	// GossipExternalEndpoint is advertised to peers of other organizations.
	GossipExternalEndpoint string `json:"gossipExternalEndpoint"`
}

func (p *Peer) Address() string {
	return net.JoinHostPort(p.Name, strconv.Itoa(p.Port))
}

func (p *Peer) URL() string {
	return "grpcs://" + p.Address()
}

// WireGossip fills the gossip fields of every peer from its siblings.
func WireGossip(peers []*Peer) error {
	for _, p := range peers {
		p.GossipExternalEndpoint = p.Address()
		p.GossipBootstrap = p.GossipBootstrap[:0]
		for _, other := range peers {
			if other == p {
				continue
			}
			p.GossipBootstrap = append(p.GossipBootstrap, other.Address())
		}
		if err := p.checkGossip(); err != nil {
			return err
		}
	}
	return nil
}

func (p *Peer) checkGossip() error {
	for _, addr := range p.GossipBootstrap {
		if addr == p.Address() {
			return errors.Errorf("peer %s lists itself in its gossip bootstrap", p.Name)
		}
	}
	return nil
}

func (p *Peer) String() string {
	return fmt.Sprintf("%s(%s)", p.Name, p.MSPID)
}
