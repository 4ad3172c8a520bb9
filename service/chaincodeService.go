package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"hyperbench/dao"
	"hyperbench/global"
	"hyperbench/model"
	"hyperbench/service/factory"
)

// ChaincodeService drives the package, install, approve and commit phases of
// chaincode definitions on one channel.
type ChaincodeService struct {
	net      *model.Network
	deps     *Deps
	channel  string
	packager *factory.ChaincodeFactory

	mu       sync.Mutex
	packages map[string]*model.ChaincodePackage
	admins   map[string]PeerAdmin
}

func NewChaincodeService(net *model.Network, deps *Deps, channel string) *ChaincodeService {
	return &ChaincodeService{
		net:      net,
		deps:     deps,
		channel:  channel,
		packager: factory.NewChaincodeFactory(),
		packages: map[string]*model.ChaincodePackage{},
		admins:   map[string]PeerAdmin{},
	}
}

func (ccSvc *ChaincodeService) admin(org *model.Organization) (PeerAdmin, error) {
	ccSvc.mu.Lock()
	defer ccSvc.mu.Unlock()

	if a, ok := ccSvc.admins[org.Name]; ok {
		return a, nil
	}
	a, err := ccSvc.deps.Peers.NewPeerAdmin(ccSvc.net, org)
	if err != nil {
		return nil, errors.WithMessagef(err, "fail to act as admin of %s", org.Name)
	}
	ccSvc.admins[org.Name] = a
	return a, nil
}

// Close releases every admin context opened by the service.
func (ccSvc *ChaincodeService) Close() {
	ccSvc.mu.Lock()
	defer ccSvc.mu.Unlock()
	for name, a := range ccSvc.admins {
		a.Close()
		delete(ccSvc.admins, name)
	}
}

// Package builds the package of src once for the whole network and writes
// the artifact.
func (ccSvc *ChaincodeService) Package(src *model.ChaincodeSource) (*model.ChaincodePackage, error) {
	label := src.Label()
	ccSvc.mu.Lock()
	pkg, ok := ccSvc.packages[label]
	ccSvc.mu.Unlock()
	if ok {
		return pkg, nil
	}

	pkg, err := ccSvc.packager.NewPackage(src)
	if err != nil {
		return nil, err
	}
	pkg.Path = ccSvc.net.Layout.ChaincodeArtifact(src.Name)
	if err := writeFile(pkg.Path, pkg.Payload, 0644); err != nil {
		return nil, err
	}
	global.Logger.Info("chaincode packaged", zap.String("label", label), zap.String("packageId", pkg.PackageID))

	ccSvc.mu.Lock()
	ccSvc.packages[label] = pkg
	ccSvc.mu.Unlock()
	return pkg, nil
}

// Install puts pkg on every peer. Peers that already hold it are skipped and a
// final query confirms all peers report the same package id.
func (ccSvc *ChaincodeService) Install(ctx context.Context, pkg *model.ChaincodePackage) error {
	global.Logger.Info(fmt.Sprintf("[Install %s]", pkg.Label))
	defer global.Logger.Info(fmt.Sprintf("[Install %s] done!", pkg.Label))

	var tasks []Task
	for _, org := range ccSvc.net.PeerOrgs() {
		admin, err := ccSvc.admin(org)
		if err != nil {
			return err
		}
		for _, p := range org.Peers {
			p := p
			tasks = append(tasks, Task{Name: p.Name, Run: func(ctx context.Context) error {
				return ccSvc.installOn(ctx, admin, p, pkg)
			}})
		}
	}
	if err := ccSvc.deps.scheduler().Run(ctx, tasks...); err != nil {
		return err
	}

	// verification pass
	var errs error
	for _, org := range ccSvc.net.PeerOrgs() {
		admin, err := ccSvc.admin(org)
		if err != nil {
			return err
		}
		for _, p := range org.Peers {
			installed, err := admin.QueryInstalled(ctx, p)
			if err != nil {
				errs = multierr.Append(errs, errors.WithMessagef(err, "fail to query %s", p.Name))
				continue
			}
			if _, ok := findInstalled(installed, pkg); !ok {
				errs = multierr.Append(errs, model.NewError(model.ErrInconsistentPackageID, nil,
					"%s does not report %s", p.Name, pkg.PackageID))
			}
		}
	}
	return errs
}

func (ccSvc *ChaincodeService) installOn(ctx context.Context, admin PeerAdmin, p *model.Peer, pkg *model.ChaincodePackage) error {
	installed, err := admin.QueryInstalled(ctx, p)
	if err != nil {
		return errors.WithMessagef(err, "fail to query %s", p.Name)
	}
	if ic, ok := findInstalled(installed, pkg); ok {
		if ic.PackageID != pkg.PackageID {
			return model.NewError(model.ErrInconsistentPackageID, nil,
				"%s holds %s as %s, expected %s", p.Name, pkg.Label, ic.PackageID, pkg.PackageID)
		}
		global.Logger.Info("├── already installed", zap.String("node", p.Name))
		return nil
	}

	id, err := admin.InstallChaincode(ctx, p, pkg)
	if err != nil {
		return errors.WithMessagef(err, "fail to install on %s", p.Name)
	}
	if id != pkg.PackageID {
		return model.NewError(model.ErrInconsistentPackageID, nil,
			"%s computed %s, expected %s", p.Name, id, pkg.PackageID)
	}
	global.Logger.Info("├── installed", zap.String("node", p.Name), zap.String("packageId", id))
	return nil
}

// findInstalled looks pkg up by id first, then by label.
func findInstalled(installed []model.InstalledChaincode, pkg *model.ChaincodePackage) (model.InstalledChaincode, bool) {
	for _, ic := range installed {
		if ic.PackageID == pkg.PackageID {
			return ic, true
		}
	}
	for _, ic := range installed {
		if ic.Label == pkg.Label {
			return ic, true
		}
	}
	return model.InstalledChaincode{}, false
}

// NextSequence is the last committed sequence of name plus one.
func (ccSvc *ChaincodeService) NextSequence(ctx context.Context, name string) (int64, error) {
	var last int64
	recs, err := ccSvc.deps.Store.FindChaincodes(ccSvc.net.Name, name)
	if err != nil {
		return 0, errors.WithMessage(err, "fail to load chaincode records")
	}
	for _, r := range recs {
		if r.Committed && r.Sequence > last {
			last = r.Sequence
		}
	}

	for _, org := range ccSvc.net.PeerOrgs() {
		if len(org.Peers) == 0 {
			continue
		}
		admin, err := ccSvc.admin(org)
		if err != nil {
			return 0, err
		}
		seq, err := admin.QueryCommitted(ctx, ccSvc.channel, name, org.Peers[0])
		if err != nil {
			global.Logger.Warn("fail to query committed sequence", zap.String("chaincode", name), zap.Error(err))
		} else if seq > last {
			last = seq
		}
		break
	}
	return last + 1, nil
}

// Approve submits def for every organization in orgs, or for all peer
// organizations when none are given. The first peer that approves counts for
// its organization.
func (ccSvc *ChaincodeService) Approve(ctx context.Context, def *model.ChaincodeDefinition, orgs ...*model.Organization) error {
	global.Logger.Info(fmt.Sprintf("[Approve %s sequence %d]", def.Name, def.Sequence))
	defer global.Logger.Info(fmt.Sprintf("[Approve %s sequence %d] done!", def.Name, def.Sequence))

	if len(orgs) == 0 {
		orgs = ccSvc.net.PeerOrgs()
	}
	orderer, err := ccSvc.orderer()
	if err != nil {
		return err
	}

	var errs error
	for _, org := range orgs {
		admin, err := ccSvc.admin(org)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		var orgErr error
		approved := false
		for _, p := range org.Peers {
			if err := admin.ApproveChaincode(ctx, ccSvc.channel, def, p, orderer); err != nil {
				orgErr = multierr.Append(orgErr, errors.WithMessagef(err, "fail to approve through %s", p.Name))
				continue
			}
			def.RecordApproval(org.MSPID, model.Approval{
				Version:   def.Version,
				Sequence:  def.Sequence,
				PackageID: def.PackageID,
				Peer:      p.Name,
			})
			global.Logger.Info("├── approved", zap.String("org", org.MSPID), zap.String("node", p.Name))
			approved = true
			break
		}
		if !approved {
			errs = multierr.Append(errs, errors.WithMessagef(orgErr, "%s did not approve", org.Name))
		}
	}

	if len(def.ApprovingOrgs()) > 0 {
		if err := def.Advance(model.PhaseApproved); err != nil {
			return err
		}
	}
	if err := ccSvc.save(def); err != nil {
		return err
	}
	return errs
}

// Commit commits def once the quorum policy holds over the organizations
// whose approval was recorded and confirmed by commit readiness.
func (ccSvc *ChaincodeService) Commit(ctx context.Context, def *model.ChaincodeDefinition, quorum string) error {
	global.Logger.Info(fmt.Sprintf("[Commit %s sequence %d]", def.Name, def.Sequence))
	defer global.Logger.Info(fmt.Sprintf("[Commit %s sequence %d] done!", def.Name, def.Sequence))

	if len(def.Approvals) > 0 {
		atSequence := false
		for _, a := range def.Approvals {
			if a.Sequence == def.Sequence {
				atSequence = true
			}
		}
		if !atSequence {
			return model.NewError(model.ErrSequenceMismatch, nil,
				"%s has no approval at sequence %d", def.Name, def.Sequence)
		}
	}

	var mspIDs []string
	for _, org := range ccSvc.net.PeerOrgs() {
		mspIDs = append(mspIDs, org.MSPID)
	}
	policy, err := model.ResolvePolicy(quorum, mspIDs)
	if err != nil {
		return errors.WithMessage(err, "fail to resolve quorum policy")
	}

	approving := def.ApprovingOrgs()
	counted := map[string]bool{}
	if len(approving) > 0 {
		org, p := ccSvc.approvingPeer(def, approving[0])
		admin, err := ccSvc.admin(org)
		if err != nil {
			return err
		}
		ready, err := admin.CheckCommitReadiness(ctx, ccSvc.channel, def, p)
		if err != nil {
			return errors.WithMessage(err, "fail to check commit readiness")
		}
		for _, msp := range approving {
			if ready[msp] {
				counted[msp] = true
			}
		}
	}

	// a policy the empty set satisfies still needs one approving committer
	if len(counted) == 0 || !policy.Satisfied(counted) {
		return model.NewError(model.ErrQuorumNotReached, nil,
			"%s sequence %d approved by %d of %d organizations, policy %s",
			def.Name, def.Sequence, len(counted), len(mspIDs), policy)
	}
	if err := def.Advance(model.PhaseCommitReady); err != nil {
		return err
	}

	var (
		peers     []*model.Peer
		committer *model.Organization
	)
	for _, msp := range approving {
		if !counted[msp] {
			continue
		}
		org, p := ccSvc.approvingPeer(def, msp)
		if committer == nil {
			committer = org
		}
		peers = append(peers, p)
	}
	admin, err := ccSvc.admin(committer)
	if err != nil {
		return err
	}
	orderer, err := ccSvc.orderer()
	if err != nil {
		return err
	}
	if err := admin.CommitChaincode(ctx, ccSvc.channel, def, peers, orderer); err != nil {
		return errors.WithMessage(err, "fail to commit chaincode")
	}

	if err := def.Advance(model.PhaseCommitted); err != nil {
		return err
	}
	return ccSvc.save(def)
}

func (ccSvc *ChaincodeService) approvingPeer(def *model.ChaincodeDefinition, mspID string) (*model.Organization, *model.Peer) {
	name := def.Approvals[mspID].Peer
	for _, org := range ccSvc.net.PeerOrgs() {
		if org.MSPID != mspID {
			continue
		}
		for _, p := range org.Peers {
			if p.Name == name {
				return org, p
			}
		}
		return org, org.Peers[0]
	}
	return nil, nil
}

// quorum is the lifecycle endorsement recorded for the channel. The quorum
// policy of src only applies to channels without one.
func (ccSvc *ChaincodeService) quorum(src *model.ChaincodeSource) string {
	rec, err := ccSvc.deps.Store.FindChannel(ccSvc.net.Name, ccSvc.channel)
	if err != nil || rec.Quorum == "" {
		return src.QuorumPolicy
	}
	if src.QuorumPolicy != "" {
		var mspIDs []string
		for _, org := range ccSvc.net.PeerOrgs() {
			mspIDs = append(mspIDs, org.MSPID)
		}
		if p, err := model.ResolvePolicy(src.QuorumPolicy, mspIDs); err != nil || p.String() != rec.Quorum {
			global.Logger.Warn("chaincode quorum differs from the channel, using the channel",
				zap.String("chaincode", src.Name),
				zap.String("quorum", src.QuorumPolicy),
				zap.String("channel", rec.Quorum),
			)
		}
	}
	return rec.Quorum
}

func (ccSvc *ChaincodeService) orderer() (*model.Orderer, error) {
	orderers := ccSvc.net.Orderers()
	if len(orderers) == 0 {
		return nil, errors.New("network has no orderer")
	}
	return orderers[0], nil
}

func (ccSvc *ChaincodeService) save(def *model.ChaincodeDefinition) error {
	if err := ccSvc.deps.Store.SaveChaincode(dao.NewChaincodeRecord(ccSvc.net.Name, def)); err != nil {
		return errors.WithMessagef(err, "fail to record %s sequence %d", def.Name, def.Sequence)
	}
	return nil
}

// Deploy runs the whole lifecycle of src. A failure marks its definition as
// failed and leaves earlier definitions alone.
func (ccSvc *ChaincodeService) Deploy(ctx context.Context, src *model.ChaincodeSource) (def *model.ChaincodeDefinition, err error) {
	global.Logger.Info(fmt.Sprintf("[Deploy chaincode %s]", src.Label()))
	defer global.Logger.Info(fmt.Sprintf("[Deploy chaincode %s] done!", src.Label()))

	// 1. package
	global.Logger.Info("1. Package")
	pkg, err := ccSvc.Package(src)
	if err != nil {
		return nil, err
	}

	seq, err := ccSvc.NextSequence(ctx, src.Name)
	if err != nil {
		return nil, err
	}
	def = model.NewChaincodeDefinition(pkg, seq)
	def.EndorsementPolicy = src.EndorsementPolicy
	def.InitRequired = src.InitRequired

	defer func() {
		if err != nil {
			def.Failure = err.Error()
			if saveErr := ccSvc.save(def); saveErr != nil {
				global.Logger.Error("fail to record chaincode failure", zap.Error(saveErr))
			}
		}
	}()

	// 2. install
	global.Logger.Info("2. Install")
	if err = ccSvc.Install(ctx, pkg); err != nil {
		return def, err
	}
	if err = def.Advance(model.PhaseInstalled); err != nil {
		return def, err
	}
	if err = ccSvc.save(def); err != nil {
		return def, err
	}

	// 3. approve
	global.Logger.Info("3. Approve")
	if approveErr := ccSvc.Approve(ctx, def); approveErr != nil {
		if len(def.ApprovingOrgs()) == 0 {
			return def, approveErr
		}
		global.Logger.Warn("some organizations did not approve", zap.String("chaincode", def.Name), zap.Error(approveErr))
	}

	// 4. commit
	global.Logger.Info("4. Commit")
	if err = ccSvc.Commit(ctx, def, ccSvc.quorum(src)); err != nil {
		return def, err
	}
	return def, nil
}
