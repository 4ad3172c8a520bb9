package response

import (
	"hyperbench/dao"
	"hyperbench/model"
)

type Network struct {
	Name      string `json:"name"`
	Channel   string `json:"channel"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt"`
}

func NewNetwork(rec *dao.NetworkRecord) Network {
	return Network{
		Name:      rec.Name,
		Channel:   rec.Channel,
		Status:    rec.Status,
		CreatedAt: rec.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

type Node struct {
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Org    string `json:"org"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type NetworkDetail struct {
	Network
	Nodes []Node `json:"nodes"`
}

func NewNetworkDetail(rec *dao.NetworkRecord, nodes []dao.NodeRecord) NetworkDetail {
	d := NetworkDetail{Network: NewNetwork(rec), Nodes: make([]Node, 0, len(nodes))}
	for _, n := range nodes {
		d.Nodes = append(d.Nodes, Node{
			Name:   n.Name,
			Kind:   n.Kind,
			Org:    n.Org,
			Status: n.Status,
			Error:  n.Error,
		})
	}
	return d
}

type Chaincode struct {
	Name      string   `json:"name"`
	Version   string   `json:"version"`
	Sequence  int64    `json:"sequence"`
	PackageID string   `json:"packageId"`
	Phase     string   `json:"phase"`
	Approvals []string `json:"approvals"`
}

func NewChaincode(def *model.ChaincodeDefinition) Chaincode {
	return Chaincode{
		Name:      def.Name,
		Version:   def.Version,
		Sequence:  def.Sequence,
		PackageID: def.PackageID,
		Phase:     def.Phase.String(),
		Approvals: def.ApprovingOrgs(),
	}
}
