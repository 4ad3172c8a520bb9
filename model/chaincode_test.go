package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChaincodeDefinition(t *testing.T) {
	pkg := &ChaincodePackage{Name: "basic", Version: "1.0", Label: ChaincodeLabel("basic", "1.0"), PackageID: "basic-1.0:abc"}
	assert.Equal(t, "basic-1.0", pkg.Label)

	def := NewChaincodeDefinition(pkg, 1)
	assert.Equal(t, PhasePackaged, def.Phase)

	assert.NoError(t, def.Advance(PhaseInstalled))
	assert.NoError(t, def.Advance(PhaseApproved))
	assert.Error(t, def.Advance(PhaseInstalled))
	assert.Equal(t, PhaseApproved, def.Phase)

	def.RecordApproval("Org1OrgMSP", Approval{Version: "1.0", Sequence: 1, PackageID: "basic-1.0:abc"})
	def.RecordApproval("Org2OrgMSP", Approval{Version: "1.0", Sequence: 2, PackageID: "basic-1.0:abc"})
	def.RecordApproval("Org3OrgMSP", Approval{Version: "1.0", Sequence: 1, PackageID: "basic-1.0:abc"})
	assert.Equal(t, []string{"Org1OrgMSP", "Org3OrgMSP"}, def.ApprovingOrgs())

	assert.NoError(t, def.Advance(PhaseCommitted))
	assert.True(t, def.Committed)
	assert.Equal(t, "committed", def.Phase.String())
}
