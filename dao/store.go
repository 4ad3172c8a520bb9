package dao

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"hyperbench/model"
)

var ErrNotFound = errors.New("record not found")

const (
	NodeCA      = "ca"
	NodePeer    = "peer"
	NodeOrderer = "orderer"
)

// NetworkRecord keeps the topology a network was deployed from so it can be
// rebuilt for later operations and teardown.
type NetworkRecord struct {
	Name      string    `gorm:"primaryKey;size:128" json:"name"`
	Base      string    `json:"base"`
	Channel   string    `json:"channel"`
	Topology  string    `gorm:"type:text" json:"topology"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NodeRecord is written before a container is started.
type NodeRecord struct {
	Network   string    `gorm:"primaryKey;size:128" json:"network"`
	Name      string    `gorm:"primaryKey;size:255" json:"name"`
	Kind      string    `json:"kind"`
	Org       string    `json:"org"`
	Status    string    `json:"status"`
	Error     string    `gorm:"type:text" json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type ChannelRecord struct {
	Network        string    `gorm:"primaryKey;size:128" json:"network"`
	Name           string    `gorm:"primaryKey;size:255" json:"name"`
	GenesisPath    string    `json:"genesisPath"`
	JoinedOrderers Strings   `gorm:"type:text" json:"joinedOrderers"`
	JoinedPeers    Strings   `gorm:"type:text" json:"joinedPeers"`
	Quorum         string    `gorm:"type:text" json:"quorum"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (r *ChannelRecord) Channel() *model.Channel {
	return &model.Channel{
		Name:           r.Name,
		GenesisPath:    r.GenesisPath,
		JoinedOrderers: r.JoinedOrderers,
		JoinedPeers:    r.JoinedPeers,
		Quorum:         r.Quorum,
	}
}

type ChaincodeRecord struct {
	Network   string               `gorm:"primaryKey;size:128" json:"network"`
	Name      string               `gorm:"primaryKey;size:255" json:"name"`
	Sequence  int64                `gorm:"primaryKey" json:"sequence"`
	Version   string               `json:"version"`
	PackageID string               `json:"packageId"`
	Phase     model.ChaincodePhase `json:"phase"`
	Committed bool                 `json:"committed"`
	Failure   string               `gorm:"type:text" json:"failure,omitempty"`
	Approvals Approvals            `gorm:"type:text" json:"approvals"`
	UpdatedAt time.Time            `json:"updatedAt"`
}

func NewChaincodeRecord(network string, def *model.ChaincodeDefinition) *ChaincodeRecord {
	return &ChaincodeRecord{
		Network:   network,
		Name:      def.Name,
		Sequence:  def.Sequence,
		Version:   def.Version,
		PackageID: def.PackageID,
		Phase:     def.Phase,
		Committed: def.Committed,
		Failure:   def.Failure,
		Approvals: def.Approvals,
	}
}

// Store persists what the orchestrator created. Implementations must treat
// saves as upserts.
type Store interface {
	SaveNetwork(r *NetworkRecord) error
	FindNetwork(name string) (*NetworkRecord, error)
	ListNetworks() ([]NetworkRecord, error)
	// DeleteNetwork removes the network and every record below it.
	DeleteNetwork(name string) error

	SaveNode(r *NodeRecord) error
	FindNodes(network string) ([]NodeRecord, error)
	DeleteNode(network, name string) error

	SaveChannel(r *ChannelRecord) error
	FindChannel(network, name string) (*ChannelRecord, error)

	SaveChaincode(r *ChaincodeRecord) error
	// FindChaincodes returns the definitions of name ordered by sequence.
	FindChaincodes(network, name string) ([]ChaincodeRecord, error)

	Close() error
}

// Strings is a string list stored as a JSON column.
type Strings []string

func (s Strings) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(s))
	return string(b), err
}

func (s *Strings) Scan(src interface{}) error {
	return scanJSON(src, s)
}

// Approvals maps an MSP id to its recorded approval, stored as JSON.
type Approvals map[string]model.Approval

func (a Approvals) Value() (driver.Value, error) {
	if a == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]model.Approval(a))
	return string(b), err
}

func (a *Approvals) Scan(src interface{}) error {
	return scanJSON(src, a)
}

func scanJSON(src interface{}, dst interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	}
	return errors.Errorf("cannot scan %T into %T", src, dst)
}
