package request

import (
	"hyperbench/model"
)

type ChaincodeInfo struct {
	Name              string `json:"name" binding:"required"`
	Version           string `json:"version"`
	Kind              string `json:"kind"`
	Path              string `json:"path"`
	Address           string `json:"address"`
	EndorsementPolicy string `json:"endorsementPolicy"`
	QuorumPolicy      string `json:"quorumPolicy"`
	InitRequired      bool   `json:"initRequired"`
}

func (c *ChaincodeInfo) Source() *model.ChaincodeSource {
	src := &model.ChaincodeSource{
		Name:              c.Name,
		Version:           c.Version,
		Kind:              model.ChaincodeKind(c.Kind),
		Path:              c.Path,
		Address:           c.Address,
		EndorsementPolicy: c.EndorsementPolicy,
		QuorumPolicy:      c.QuorumPolicy,
		InitRequired:      c.InitRequired,
	}
	if src.Version == "" {
		src.Version = "1.0"
	}
	if src.Kind == "" {
		src.Kind = model.ChaincodeGolang
	}
	if src.QuorumPolicy == "" {
		src.QuorumPolicy = model.QuorumMajority
	}
	return src
}
