package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMSPID(t *testing.T) {
	tests := []struct {
		org  string
		want string
	}{
		{"org1.org", "Org1OrgMSP"},
		{"orderer.org", "OrdererOrgMSP"},
		{"ORG2.example.com", "Org2ExampleComMSP"},
		{"my-org", "MyOrgMSP"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, MSPID(tc.org))
		assert.Equal(t, MSPID(tc.org), MSPID(tc.org))
	}
}
