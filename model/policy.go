package model

import (
	"fmt"
	"sort"
	"strings"

	"github.com/golang/protobuf/proto"
	"github.com/hyperledger/fabric-protos-go/common"
	mspproto "github.com/hyperledger/fabric-protos-go/msp"
	"github.com/hyperledger/fabric-sdk-go/third_party/github.com/hyperledger/fabric/common/policydsl"
	"github.com/pkg/errors"
)

const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// Quorum policy shorthands accepted by ResolvePolicy.
const (
	QuorumMajority = "majority"
	QuorumAll      = "all"
	QuorumAny      = "any"
)

// Policy is an immutable signature policy. It is only obtained from a
// PolicyBuilder or ParsePolicy.
type Policy struct {
	expr     string
	envelope *common.SignaturePolicyEnvelope
}

func (p *Policy) String() string {
	return p.expr
}

// Envelope returns a copy of the compiled policy.
func (p *Policy) Envelope() *common.SignaturePolicyEnvelope {
	return proto.Clone(p.envelope).(*common.SignaturePolicyEnvelope)
}

// Satisfied reports whether the MSP ids marked true in approved fulfil the
// policy. Every approving organization is used at most once.
func (p *Policy) Satisfied(approved map[string]bool) bool {
	principals := make([]string, len(p.envelope.Identities))
	for i, id := range p.envelope.Identities {
		principals[i] = principalMSP(id)
	}
	used := map[string]bool{}
	return evaluate(p.envelope.Rule, principals, approved, used)
}

func evaluate(rule *common.SignaturePolicy, principals []string, approved, used map[string]bool) bool {
	switch t := rule.Type.(type) {
	case *common.SignaturePolicy_SignedBy:
		if int(t.SignedBy) >= len(principals) {
			return false
		}
		msp := principals[t.SignedBy]
		if msp == "" || !approved[msp] || used[msp] {
			return false
		}
		used[msp] = true
		return true
	case *common.SignaturePolicy_NOutOf_:
		n := 0
		for _, sub := range t.NOutOf.Rules {
			attempt := copyUsed(used)
			if evaluate(sub, principals, approved, attempt) {
				for k := range attempt {
					used[k] = true
				}
				n++
			}
		}
		return n >= int(t.NOutOf.N)
	default:
		return false
	}
}

func copyUsed(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func principalMSP(p *mspproto.MSPPrincipal) string {
	if p.PrincipalClassification != mspproto.MSPPrincipal_ROLE {
		return ""
	}
	role := &mspproto.MSPRole{}
	if err := proto.Unmarshal(p.Principal, role); err != nil {
		return ""
	}
	return role.MspIdentifier
}

// ParsePolicy compiles a policy expression such as
// "OutOf(2, 'Org1OrgMSP.member', 'Org2OrgMSP.member')".
func ParsePolicy(expr string) (*Policy, error) {
	env, err := policydsl.FromString(expr)
	if err != nil {
		return nil, errors.WithMessagef(err, "fail to parse policy %q", expr)
	}
	return &Policy{expr: expr, envelope: env}, nil
}

// PolicyBuilder collects organization member terms. A builder finalizes once.
type PolicyBuilder struct {
	msps  []string
	built bool
}

func NewPolicyBuilder() *PolicyBuilder {
	return &PolicyBuilder{}
}

func (b *PolicyBuilder) Add(mspIDs ...string) *PolicyBuilder {
	for _, id := range mspIDs {
		if !contains(b.msps, id) {
			b.msps = append(b.msps, id)
		}
	}
	return b
}

// Majority requires strictly more than half of the collected organizations.
func (b *PolicyBuilder) Majority() (*Policy, error) {
	return b.OutOf(len(b.msps)/2 + 1)
}

func (b *PolicyBuilder) All() (*Policy, error) {
	return b.OutOf(len(b.msps))
}

func (b *PolicyBuilder) Any() (*Policy, error) {
	return b.OutOf(1)
}

func (b *PolicyBuilder) OutOf(k int) (*Policy, error) {
	if b.built {
		return nil, errors.New("policy builder already finalized")
	}
	if len(b.msps) == 0 {
		return nil, errors.New("policy needs at least one organization")
	}
	if k < 1 || k > len(b.msps) {
		return nil, errors.Errorf("policy threshold %d out of range 1..%d", k, len(b.msps))
	}
	b.built = true
	msps := append([]string(nil), b.msps...)
	sort.Strings(msps)
	terms := make([]string, len(msps))
	for i, id := range msps {
		terms[i] = fmt.Sprintf("'%s.%s'", id, RoleMember)
	}
	return ParsePolicy(fmt.Sprintf("OutOf(%d, %s)", k, strings.Join(terms, ", ")))
}

// ResolvePolicy turns a quorum shorthand or an explicit expression into a
// policy over mspIDs. An empty spec means majority.
func ResolvePolicy(spec string, mspIDs []string) (*Policy, error) {
	b := NewPolicyBuilder().Add(mspIDs...)
	switch strings.ToLower(strings.TrimSpace(spec)) {
	case "", QuorumMajority:
		return b.Majority()
	case QuorumAll:
		return b.All()
	case QuorumAny:
		return b.Any()
	default:
		return ParsePolicy(spec)
	}
}

// SignatureRule is the single-org rule used for organization policies, e.g.
// "OR('Org1OrgMSP.member')".
func SignatureRule(mspID, role string) string {
	return fmt.Sprintf("OR('%s.%s')", mspID, role)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
