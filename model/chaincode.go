package model

import (
	"sort"

	"github.com/pkg/errors"
)

type ChaincodeKind string

const (
	ChaincodeGolang   ChaincodeKind = "golang"
	ChaincodeExternal ChaincodeKind = "external"
)

// ChaincodePackage is the packaged artifact. PackageID is content addressed and
// recomputable from Label and Payload.
type ChaincodePackage struct {
	Name      string        `json:"name"`
	Version   string        `json:"version"`
	Kind      ChaincodeKind `json:"kind"`
	Label     string        `json:"label"`
	PackageID string        `json:"packageId"`
	Path      string        `json:"path"`
	Payload   []byte        `json:"-"`
}

// ChaincodeLabel is "<name>-<version>".
func ChaincodeLabel(name, version string) string {
	return name + "-" + version
}

type InstalledChaincode struct {
	PackageID string `json:"packageId"`
	Label     string `json:"label"`
}

type ChaincodePhase int

const (
	PhasePackaged ChaincodePhase = iota
	PhaseInstalled
	PhaseApproved
	PhaseCommitReady
	PhaseCommitted
)

var phaseNames = map[ChaincodePhase]string{
	PhasePackaged:    "packaged",
	PhaseInstalled:   "installed",
	PhaseApproved:    "approved",
	PhaseCommitReady: "commitReady",
	PhaseCommitted:   "committed",
}

func (p ChaincodePhase) String() string {
	if s, ok := phaseNames[p]; ok {
		return s
	}
	return "unknown"
}

// Approval is what one organization recorded on the channel.
type Approval struct {
	Version   string `json:"version"`
	Sequence  int64  `json:"sequence"`
	PackageID string `json:"packageId"`
	Peer      string `json:"peer"`
}

type ChaincodeDefinition struct {
	Name              string              `json:"name"`
	Version           string              `json:"version"`
	Sequence          int64               `json:"sequence"`
	PackageID         string              `json:"packageId"`
	EndorsementPolicy string              `json:"endorsementPolicy,omitempty"`
	InitRequired      bool                `json:"initRequired"`
	Approvals         map[string]Approval `json:"approvals"`
	Committed         bool                `json:"committed"`
	Phase             ChaincodePhase      `json:"phase"`
	Failure           string              `json:"failure,omitempty"`
}

func NewChaincodeDefinition(pkg *ChaincodePackage, sequence int64) *ChaincodeDefinition {
	return &ChaincodeDefinition{
		Name:      pkg.Name,
		Version:   pkg.Version,
		Sequence:  sequence,
		PackageID: pkg.PackageID,
		Approvals: map[string]Approval{},
		Phase:     PhasePackaged,
	}
}

// Advance moves the definition forward. Phases never go back.
func (d *ChaincodeDefinition) Advance(to ChaincodePhase) error {
	if to < d.Phase {
		return errors.Errorf("chaincode %s sequence %d cannot go from %s back to %s",
			d.Name, d.Sequence, d.Phase, to)
	}
	d.Phase = to
	if to == PhaseCommitted {
		d.Committed = true
	}
	return nil
}

func (d *ChaincodeDefinition) RecordApproval(mspID string, a Approval) {
	if d.Approvals == nil {
		d.Approvals = map[string]Approval{}
	}
	d.Approvals[mspID] = a
}

// ApprovingOrgs returns the sorted MSP ids whose approval matches the
// definition's name, version, sequence and package.
func (d *ChaincodeDefinition) ApprovingOrgs() []string {
	var out []string
	for msp, a := range d.Approvals {
		if a.Version == d.Version && a.Sequence == d.Sequence && a.PackageID == d.PackageID {
			out = append(out, msp)
		}
	}
	sort.Strings(out)
	return out
}

// ChaincodeSource describes what to package and how to govern it. Address is
// the chaincode server endpoint of an external package.
type ChaincodeSource struct {
	Name              string        `json:"name" yaml:"name" mapstructure:"name"`
	Version           string        `json:"version" yaml:"version" mapstructure:"version"`
	Kind              ChaincodeKind `json:"kind" yaml:"kind" mapstructure:"kind"`
	Path              string        `json:"path" yaml:"path" mapstructure:"path"`
	Address           string        `json:"address,omitempty" yaml:"address,omitempty" mapstructure:"address"`
	EndorsementPolicy string        `json:"endorsementPolicy,omitempty" yaml:"endorsementPolicy,omitempty" mapstructure:"endorsementPolicy"`
	QuorumPolicy      string        `json:"quorumPolicy,omitempty" yaml:"quorumPolicy,omitempty" mapstructure:"quorumPolicy"`
	InitRequired      bool          `json:"initRequired" yaml:"initRequired" mapstructure:"initRequired"`
}

func (s *ChaincodeSource) Label() string {
	return ChaincodeLabel(s.Name, s.Version)
}

func (s *ChaincodeSource) Validate() error {
	if s.Name == "" || s.Version == "" {
		return errors.New("chaincode needs a name and a version")
	}
	switch s.Kind {
	case ChaincodeGolang:
		if s.Path == "" {
			return errors.Errorf("golang chaincode %s needs a source path", s.Name)
		}
	case ChaincodeExternal:
		if s.Address == "" {
			return errors.Errorf("external chaincode %s needs a server address", s.Name)
		}
	default:
		return errors.Errorf("unknown chaincode kind %q", s.Kind)
	}
	return nil
}
