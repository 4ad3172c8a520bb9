package service

import (
	"context"
	"encoding/pem"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"hyperbench/dao"
	"hyperbench/model"
	"hyperbench/service/factory"
)

func fakePEM(typ, body string) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: typ, Bytes: []byte(body)})
}

type fakeRuntime struct {
	base string
	// silent CAs never publish their certificate.
	silent bool

	mu      sync.Mutex
	running map[string]*model.ContainerSpec
	started []string
	removed []string
	execs   map[string][][]string
}

func newFakeRuntime(base string) *fakeRuntime {
	return &fakeRuntime{
		base:    base,
		running: map[string]*model.ContainerSpec{},
		execs:   map[string][][]string{},
	}
}

func (r *fakeRuntime) Start(_ context.Context, spec *model.ContainerSpec) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running[spec.Name] = spec
	r.started = append(r.started, spec.Name)
	if spec.Labels["tier"] == "ca" && !r.silent {
		home := filepath.Join(r.base, spec.Mounts[0].Source)
		if err := os.MkdirAll(home, 0755); err != nil {
			return err
		}
		return ioutil.WriteFile(filepath.Join(home, "ca-cert.pem"), fakePEM("CERTIFICATE", "root of "+spec.Name), 0644)
	}
	return nil
}

func (r *fakeRuntime) Remove(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.running, name)
	r.removed = append(r.removed, name)
	return nil
}

func (r *fakeRuntime) Exec(_ context.Context, name string, cmd ...string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.running[name]; !ok {
		return "", fmt.Errorf("no container %s", name)
	}
	r.execs[name] = append(r.execs[name], cmd)
	return "", nil
}

func (r *fakeRuntime) Running(_ context.Context, name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.running[name]
	return ok, nil
}

// fakeCAs keeps the registrations of every CA.
type fakeCAs struct {
	mu         sync.Mutex
	registered map[string]bool
	registers  int
	enrolls    map[string]int
}

func newFakeCAs() *fakeCAs {
	return &fakeCAs{registered: map[string]bool{}, enrolls: map[string]int{}}
}

func (f *fakeCAs) NewCAClient(ca *model.CertificateAuthority) (CAClient, error) {
	return &fakeCAClient{cas: f, ca: ca}, nil
}

type fakeCAClient struct {
	cas *fakeCAs
	ca  *model.CertificateAuthority
}

func (c *fakeCAClient) Register(_ context.Context, req *model.RegistrationRequest) error {
	c.cas.mu.Lock()
	defer c.cas.mu.Unlock()
	key := c.ca.CommonName + "/" + req.Name
	c.cas.registers++
	if c.cas.registered[key] {
		return model.NewError(model.ErrDuplicateRegistration, nil, "%s is already registered", req.Name)
	}
	c.cas.registered[key] = true
	return nil
}

func (c *fakeCAClient) Lookup(_ context.Context, name string) (bool, error) {
	c.cas.mu.Lock()
	defer c.cas.mu.Unlock()
	return c.cas.registered[c.ca.CommonName+"/"+name], nil
}

func (c *fakeCAClient) Enroll(_ context.Context, req *model.EnrollmentRequest) (*model.Enrollment, error) {
	c.cas.mu.Lock()
	defer c.cas.mu.Unlock()
	key := c.ca.CommonName + "/" + req.Name
	if req.Name != c.ca.Admin.ID && !c.cas.registered[key] {
		return nil, fmt.Errorf("%s is not registered with %s", req.Name, c.ca.CommonName)
	}
	c.cas.enrolls[key]++
	return &model.Enrollment{
		Cert:    fakePEM("CERTIFICATE", req.Name+"@"+c.ca.CommonName+"/"+req.Profile),
		Key:     fakePEM("PRIVATE KEY", "key of "+req.Name),
		CAChain: fakePEM("CERTIFICATE", "root of "+c.ca.CommonName),
	}, nil
}

// fakeFabric plays the peers and the lifecycle of one channel.
type fakeFabric struct {
	msps []string

	mu          sync.Mutex
	joined      map[string]bool
	installed   map[string][]model.InstalledChaincode
	installIDs  map[string]string
	approvals   map[string]map[string]bool
	failApprove map[string]bool
	committed   map[string]int64
	commits     [][]string
	installs    int
}

func newFakeFabric(net *model.Network) *fakeFabric {
	f := &fakeFabric{
		joined:      map[string]bool{},
		installed:   map[string][]model.InstalledChaincode{},
		installIDs:  map[string]string{},
		approvals:   map[string]map[string]bool{},
		failApprove: map[string]bool{},
		committed:   map[string]int64{},
	}
	for _, org := range net.PeerOrgs() {
		f.msps = append(f.msps, org.MSPID)
	}
	return f
}

func defKey(name string, seq int64) string {
	return fmt.Sprintf("%s/%d", name, seq)
}

func (f *fakeFabric) NewPeerAdmin(_ *model.Network, org *model.Organization) (PeerAdmin, error) {
	return &fakePeerAdmin{f: f, msp: org.MSPID}, nil
}

type fakePeerAdmin struct {
	f   *fakeFabric
	msp string
}

func (a *fakePeerAdmin) JoinChannel(_ context.Context, channel string, p *model.Peer, o *model.Orderer) error {
	a.f.mu.Lock()
	defer a.f.mu.Unlock()
	a.f.joined[channel+"/"+p.Name] = true
	return nil
}

func (a *fakePeerAdmin) InstallChaincode(_ context.Context, p *model.Peer, pkg *model.ChaincodePackage) (string, error) {
	a.f.mu.Lock()
	defer a.f.mu.Unlock()
	a.f.installs++
	id := pkg.PackageID
	if override, ok := a.f.installIDs[p.Name]; ok {
		id = override
	}
	a.f.installed[p.Name] = append(a.f.installed[p.Name], model.InstalledChaincode{PackageID: id, Label: pkg.Label})
	return id, nil
}

func (a *fakePeerAdmin) QueryInstalled(_ context.Context, p *model.Peer) ([]model.InstalledChaincode, error) {
	a.f.mu.Lock()
	defer a.f.mu.Unlock()
	return append([]model.InstalledChaincode(nil), a.f.installed[p.Name]...), nil
}

func (a *fakePeerAdmin) ApproveChaincode(_ context.Context, _ string, def *model.ChaincodeDefinition, p *model.Peer, _ *model.Orderer) error {
	a.f.mu.Lock()
	defer a.f.mu.Unlock()
	if a.f.failApprove[a.msp] {
		return fmt.Errorf("%s refuses to approve", p.Name)
	}
	key := defKey(def.Name, def.Sequence)
	if a.f.approvals[key] == nil {
		a.f.approvals[key] = map[string]bool{}
	}
	a.f.approvals[key][a.msp] = true
	return nil
}

func (a *fakePeerAdmin) CheckCommitReadiness(_ context.Context, _ string, def *model.ChaincodeDefinition, _ *model.Peer) (map[string]bool, error) {
	a.f.mu.Lock()
	defer a.f.mu.Unlock()
	out := map[string]bool{}
	for _, msp := range a.f.msps {
		out[msp] = a.f.approvals[defKey(def.Name, def.Sequence)][msp]
	}
	return out, nil
}

func (a *fakePeerAdmin) CommitChaincode(_ context.Context, _ string, def *model.ChaincodeDefinition, peers []*model.Peer, _ *model.Orderer) error {
	a.f.mu.Lock()
	defer a.f.mu.Unlock()
	var names []string
	for _, p := range peers {
		names = append(names, p.Name)
	}
	a.f.commits = append(a.f.commits, names)
	a.f.committed[def.Name] = def.Sequence
	return nil
}

func (a *fakePeerAdmin) QueryCommitted(_ context.Context, _, name string, _ *model.Peer) (int64, error) {
	a.f.mu.Lock()
	defer a.f.mu.Unlock()
	return a.f.committed[name], nil
}

func (a *fakePeerAdmin) Close() {}

type fakeOrderers struct {
	mu     sync.Mutex
	joined map[string][]string
}

func newFakeOrderers() *fakeOrderers {
	return &fakeOrderers{joined: map[string][]string{}}
}

func (f *fakeOrderers) JoinChannel(_ context.Context, _ *model.Organization, o *model.Orderer, channel string, block []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(block) == 0 {
		return fmt.Errorf("empty block for %s", channel)
	}
	for _, ch := range f.joined[o.Name] {
		if ch == channel {
			return nil
		}
	}
	f.joined[o.Name] = append(f.joined[o.Name], channel)
	return nil
}

func (f *fakeOrderers) ListChannels(_ context.Context, _ *model.Organization, o *model.Orderer) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.joined[o.Name]...), nil
}

type fakeGenesis struct{}

func (fakeGenesis) Build(net *model.Network, channel string, quorum *model.Policy) ([]byte, error) {
	return []byte("genesis of " + channel + " with " + fmt.Sprint(len(net.Consenters())) + " consenters, lifecycle " + quorum.String()), nil
}

type harness struct {
	base   string
	topo   *model.TopologyDefinition
	net    *model.Network
	deps   *Deps
	rt     *fakeRuntime
	cas    *fakeCAs
	fabric *fakeFabric
	osn    *fakeOrderers
	store  dao.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	base := t.TempDir()

	topo, err := model.GenerateTopology(model.TopologyParams{Orgs: 2, PeersPerOrg: 2, Orderers: 1, StartingPort: 7160})
	require.NoError(t, err)
	net, err := factory.NewNetworkFactory(base).NewNetwork("net1", topo)
	require.NoError(t, err)

	store, err := dao.OpenBadger("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	h := &harness{
		base:   base,
		topo:   topo,
		net:    net,
		rt:     newFakeRuntime(base),
		cas:    newFakeCAs(),
		fabric: newFakeFabric(net),
		osn:    newFakeOrderers(),
		store:  store,
	}
	h.deps = &Deps{
		Runtime:    h.rt,
		CAs:        h.cas,
		Peers:      h.fabric,
		Orderers:   h.osn,
		Genesis:    fakeGenesis{},
		Store:      store,
		Containers: factory.NewContainerFactory(factory.Images{CA: "ca", Peer: "peer", Orderer: "orderer"}, "fabric_network"),
		Waiter:     Waiter{Timeout: 2 * time.Second, Interval: time.Millisecond, MaxInterval: 10 * time.Millisecond},
		Scheduler:  NewScheduler(4),
		OnExisting: OnExistingSkip,
	}
	return h
}

// bootstrap starts the whole CA hierarchy of the harness network.
func (h *harness) bootstrap(t *testing.T) (*PKIService, *EnrollService, *OrganizationService) {
	t.Helper()
	pki := NewPKIService(h.net, h.deps)
	enroll := NewEnrollService(h.net, h.deps, pki)
	orgs := NewOrganizationService(h.net, pki, enroll)
	ctx := context.Background()
	require.NoError(t, orgs.BootstrapTransport(ctx))
	for _, org := range h.net.Organizations {
		require.NoError(t, orgs.Bootstrap(ctx, org))
	}
	return pki, enroll, orgs
}

func (h *harness) request() *DeployRequest {
	return &DeployRequest{
		Name:     "net1",
		Base:     h.base,
		Channel:  "hyperbench-channel",
		Topology: h.topo,
	}
}
