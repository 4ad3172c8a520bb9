package sdk

import (
	"context"
	"strings"

	cb "github.com/hyperledger/fabric-protos-go/common"
	"github.com/hyperledger/fabric-sdk-go/pkg/client/resmgmt"
	"github.com/hyperledger/fabric-sdk-go/pkg/common/errors/retry"
	"github.com/hyperledger/fabric-sdk-go/pkg/core/config"
	"github.com/hyperledger/fabric-sdk-go/pkg/fabsdk"
	"github.com/hyperledger/fabric-sdk-go/third_party/github.com/hyperledger/fabric/common/policydsl"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"hyperbench/global"
	"hyperbench/model"
	"hyperbench/service"
)

const (
	endorsementPlugin = "escc"
	validationPlugin  = "vscc"
)

// PeerAdminFactory opens resmgmt clients acting as an organization admin.
type PeerAdminFactory struct {
	configs *SDKConfigFactory
}

func NewPeerAdminFactory(configs *SDKConfigFactory) *PeerAdminFactory {
	return &PeerAdminFactory{configs: configs}
}

func (f *PeerAdminFactory) NewPeerAdmin(net *model.Network, org *model.Organization) (service.PeerAdmin, error) {
	sdkconfig, err := f.configs.NewOrgConfig(net, org)
	if err != nil {
		return nil, err
	}
	raw, err := Marshal(sdkconfig, OrgStoreDir(net, org), org.Name)
	if err != nil {
		return nil, err
	}
	sdk, err := fabsdk.New(config.FromRaw(raw, "yaml"))
	if err != nil {
		return nil, errors.WithMessage(err, "fail to get sdk")
	}
	rc, err := resmgmt.New(sdk.Context(fabsdk.WithUser(org.Admin.Name), fabsdk.WithOrg(org.Name)))
	if err != nil {
		sdk.Close()
		return nil, errors.WithMessage(err, "fail to get rc")
	}
	return &PeerAdmin{sdk: sdk, rc: rc}, nil
}

type PeerAdmin struct {
	sdk *fabsdk.FabricSDK
	rc  *resmgmt.Client
}

func opts(ctx context.Context, more ...resmgmt.RequestOption) []resmgmt.RequestOption {
	return append([]resmgmt.RequestOption{
		resmgmt.WithParentContext(ctx),
		resmgmt.WithRetry(retry.DefaultResMgmtOpts),
	}, more...)
}

func (a *PeerAdmin) JoinChannel(ctx context.Context, channel string, peer *model.Peer, orderer *model.Orderer) error {
	err := a.rc.JoinChannel(channel, opts(ctx,
		resmgmt.WithOrdererEndpoint(orderer.Name),
		resmgmt.WithTargetEndpoints(peer.Name))...)
	if err != nil {
		return errors.WithMessagef(err, "fail to join %s to %s", peer.Name, channel)
	}
	return nil
}

func (a *PeerAdmin) InstallChaincode(ctx context.Context, peer *model.Peer, pkg *model.ChaincodePackage) (string, error) {
	resps, err := a.rc.LifecycleInstallCC(resmgmt.LifecycleInstallCCRequest{
		Label:   pkg.Label,
		Package: pkg.Payload,
	}, opts(ctx, resmgmt.WithTargetEndpoints(peer.Name))...)
	if err != nil {
		return "", errors.WithMessagef(err, "fail to install %s on %s", pkg.Label, peer.Name)
	}
	if len(resps) == 0 {
		return "", errors.Errorf("no install response from %s", peer.Name)
	}
	for _, resp := range resps {
		global.Logger.Debug("chaincode installed",
			zap.String("target", resp.Target),
			zap.Int32("status", resp.Status),
			zap.String("packageID", resp.PackageID))
	}
	return resps[0].PackageID, nil
}

func (a *PeerAdmin) QueryInstalled(ctx context.Context, peer *model.Peer) ([]model.InstalledChaincode, error) {
	resps, err := a.rc.LifecycleQueryInstalledCC(opts(ctx, resmgmt.WithTargetEndpoints(peer.Name))...)
	if err != nil {
		return nil, errors.WithMessagef(err, "fail to query installed chaincode on %s", peer.Name)
	}
	out := make([]model.InstalledChaincode, 0, len(resps))
	for _, r := range resps {
		out = append(out, model.InstalledChaincode{PackageID: r.PackageID, Label: r.Label})
	}
	return out, nil
}

func signaturePolicy(def *model.ChaincodeDefinition) (*cb.SignaturePolicyEnvelope, error) {
	if def.EndorsementPolicy == "" {
		return nil, nil
	}
	p, err := policydsl.FromString(def.EndorsementPolicy)
	if err != nil {
		return nil, errors.WithMessagef(err, "bad endorsement policy %q", def.EndorsementPolicy)
	}
	return p, nil
}

func (a *PeerAdmin) ApproveChaincode(ctx context.Context, channel string, def *model.ChaincodeDefinition, peer *model.Peer, orderer *model.Orderer) error {
	policy, err := signaturePolicy(def)
	if err != nil {
		return err
	}
	txnID, err := a.rc.LifecycleApproveCC(channel, resmgmt.LifecycleApproveCCRequest{
		Name:              def.Name,
		Version:           def.Version,
		PackageID:         def.PackageID,
		Sequence:          def.Sequence,
		EndorsementPlugin: endorsementPlugin,
		ValidationPlugin:  validationPlugin,
		SignaturePolicy:   policy,
		InitRequired:      def.InitRequired,
	}, opts(ctx,
		resmgmt.WithOrdererEndpoint(orderer.Name),
		resmgmt.WithTargetEndpoints(peer.Name))...)
	if err != nil {
		return errors.WithMessage(err, "fail to approve chaincode")
	}
	if txnID == "" {
		return errors.New("fail to approve chaincode: empty transaction id")
	}
	return nil
}

func (a *PeerAdmin) CheckCommitReadiness(ctx context.Context, channel string, def *model.ChaincodeDefinition, peer *model.Peer) (map[string]bool, error) {
	policy, err := signaturePolicy(def)
	if err != nil {
		return nil, err
	}
	resp, err := a.rc.LifecycleCheckCCCommitReadiness(channel, resmgmt.LifecycleCheckCCCommitReadinessRequest{
		Name:              def.Name,
		Version:           def.Version,
		Sequence:          def.Sequence,
		EndorsementPlugin: endorsementPlugin,
		ValidationPlugin:  validationPlugin,
		SignaturePolicy:   policy,
		InitRequired:      def.InitRequired,
	}, opts(ctx, resmgmt.WithTargetEndpoints(peer.Name))...)
	if err != nil {
		return nil, errors.WithMessage(err, "fail to check commit readiness")
	}
	return resp.Approvals, nil
}

func (a *PeerAdmin) CommitChaincode(ctx context.Context, channel string, def *model.ChaincodeDefinition, peers []*model.Peer, orderer *model.Orderer) error {
	policy, err := signaturePolicy(def)
	if err != nil {
		return err
	}
	targets := make([]string, 0, len(peers))
	for _, p := range peers {
		targets = append(targets, p.Name)
	}
	txID, err := a.rc.LifecycleCommitCC(channel, resmgmt.LifecycleCommitCCRequest{
		Name:              def.Name,
		Version:           def.Version,
		Sequence:          def.Sequence,
		EndorsementPlugin: endorsementPlugin,
		ValidationPlugin:  validationPlugin,
		SignaturePolicy:   policy,
		InitRequired:      def.InitRequired,
	}, opts(ctx,
		resmgmt.WithOrdererEndpoint(orderer.Name),
		resmgmt.WithTargetEndpoints(targets...))...)
	if err != nil {
		return errors.WithMessage(err, "fail to commit chaincode")
	}
	global.Logger.Info("txID: " + string(txID))
	return nil
}

func (a *PeerAdmin) QueryCommitted(ctx context.Context, channel, name string, peer *model.Peer) (int64, error) {
	resps, err := a.rc.LifecycleQueryCommittedCC(channel, resmgmt.LifecycleQueryCommittedCCRequest{Name: name},
		opts(ctx, resmgmt.WithTargetEndpoints(peer.Name))...)
	if err != nil {
		if strings.Contains(err.Error(), "not defined") || isNotFound(err) {
			return 0, nil
		}
		return 0, errors.WithMessage(err, "fail to query committed chaincode")
	}
	for _, r := range resps {
		if r.Name == name {
			return r.Sequence, nil
		}
	}
	return 0, nil
}

func (a *PeerAdmin) Close() {
	a.sdk.Close()
}
