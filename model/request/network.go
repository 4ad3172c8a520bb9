package request

import (
	"encoding/json"

	"hyperbench/model"
)

// DeployNetwork either carries an explicit topology or the generator
// parameters. Zero parameters fall back to the server defaults.
type DeployNetwork struct {
	Name     string          `json:"name" binding:"required"`
	Channel  string          `json:"channel"`
	Topology json.RawMessage `json:"topology"`

	Orgs         int `json:"orgs" binding:"gte=0"`
	PeersPerOrg  int `json:"peersPerOrg" binding:"gte=0"`
	Orderers     int `json:"orderers" binding:"gte=0"`
	StartingPort int `json:"startingPort" binding:"gte=0,lte=65535"`

	Chaincode *ChaincodeInfo `json:"chaincode"`
}

// Params merges the request parameters over defaults.
func (d *DeployNetwork) Params(defaults model.TopologyParams) model.TopologyParams {
	p := defaults
	if d.Orgs > 0 {
		p.Orgs = d.Orgs
	}
	if d.PeersPerOrg > 0 {
		p.PeersPerOrg = d.PeersPerOrg
	}
	if d.Orderers > 0 {
		p.Orderers = d.Orderers
	}
	if d.StartingPort > 0 {
		p.StartingPort = d.StartingPort
	}
	return p
}
