package service

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"hyperbench/dao"
	"hyperbench/enum"
	"hyperbench/global"
	"hyperbench/model"
	"hyperbench/service/factory"
)

// DeployRequest names a network and what to deploy on it.
type DeployRequest struct {
	Name      string
	Base      string
	Channel   string
	Topology  *model.TopologyDefinition
	Chaincode *model.ChaincodeSource
	// Quorum is the lifecycle endorsement of the channel. It falls back to
	// the quorum policy of Chaincode, then to majority.
	Quorum string
	// ProfileFormat is json or yaml.
	ProfileFormat string
}

func (req *DeployRequest) quorum() string {
	if req.Quorum == "" && req.Chaincode != nil {
		return req.Chaincode.QuorumPolicy
	}
	return req.Quorum
}

type NetworkService struct {
	deps *Deps
}

func NewNetworkService(deps *Deps) *NetworkService {
	return &NetworkService{deps: deps}
}

// Deploy brings a network up phase by phase and aborts on the first phase that
// fails. Chaincode failures are reported without failing the network.
//
// netSvc := NewNetworkService(deps)
// net, err := netSvc.Deploy(ctx, &DeployRequest{Name: "net1", ...})
func (ns *NetworkService) Deploy(ctx context.Context, req *DeployRequest) (net *model.Network, err error) {
	global.Logger.Info(fmt.Sprintf("[Deploy %s]", req.Name))
	defer global.Logger.Info(fmt.Sprintf("[Deploy %s] done!", req.Name))

	net, err = factory.NewNetworkFactory(req.Base).NewNetwork(req.Name, req.Topology)
	if err != nil {
		return nil, err
	}
	raw, err := req.Topology.Marshal()
	if err != nil {
		return nil, errors.WithMessage(err, "fail to marshal topology")
	}
	rec := &dao.NetworkRecord{
		Name:     req.Name,
		Base:     req.Base,
		Channel:  req.Channel,
		Topology: string(raw),
		Status:   enum.StatusStarting,
	}
	if err := ns.deps.Store.SaveNetwork(rec); err != nil {
		return nil, errors.WithMessage(err, "fail to record network")
	}
	defer func() {
		if err == nil {
			return
		}
		if rec.Status == enum.StatusRunning {
			return
		}
		global.Logger.Error("deploy failed", zap.String("network", req.Name), zap.Error(err))
		rec.Status = enum.StatusError
		if saveErr := ns.deps.Store.SaveNetwork(rec); saveErr != nil {
			global.Logger.Error("fail to record network status", zap.Error(saveErr))
		}
	}()

	pki := NewPKIService(net, ns.deps)
	enroll := NewEnrollService(net, ns.deps, pki)
	orgSvc := NewOrganizationService(net, pki, enroll)
	nodeSvc := NewNodeService(net, ns.deps, orgSvc, enroll)
	chSvc := NewChannelService(net, ns.deps)
	chSvc.Quorum = req.quorum()

	// 1. transport CA
	global.Logger.Info("1. Bootstrap transport CA")
	if err := orgSvc.BootstrapTransport(ctx); err != nil {
		return net, err
	}

	// 2. organization CAs and admins
	global.Logger.Info("2. Bootstrap organizations")
	for _, org := range net.Organizations {
		if err := orgSvc.Bootstrap(ctx, org); err != nil {
			return net, err
		}
	}

	// 3. peers
	global.Logger.Info("3. Provision peers")
	if err := nodeSvc.ProvisionPeers(ctx); err != nil {
		return net, err
	}

	// 4. orderers
	global.Logger.Info("4. Provision orderers")
	if err := nodeSvc.ProvisionOrderers(ctx); err != nil {
		return net, err
	}

	// 5. genesis
	global.Logger.Info("5. Create genesis block")
	if _, err := chSvc.CreateGenesis(ctx, req.Channel); err != nil {
		return net, err
	}

	// 6. orderer joins
	global.Logger.Info("6. Join orderers")
	if err := chSvc.JoinOrderers(ctx, req.Channel); err != nil {
		return net, err
	}

	// 7. peer joins
	global.Logger.Info("7. Join peers")
	if err := chSvc.JoinPeers(ctx, req.Channel); err != nil {
		return net, err
	}

	// 8. connection profile
	global.Logger.Info("8. Write connection profile")
	profileSvc := NewProfileService(net)
	if _, err := profileSvc.Write(req.ProfileFormat); err != nil {
		return net, err
	}
	if _, err := profileSvc.WriteHosts(); err != nil {
		return net, err
	}

	rec.Status = enum.StatusRunning
	if err := ns.deps.Store.SaveNetwork(rec); err != nil {
		return net, errors.WithMessage(err, "fail to record network")
	}

	// 9. chaincode
	if req.Chaincode != nil {
		global.Logger.Info("9. Deploy chaincode")
		ccSvc := NewChaincodeService(net, ns.deps, req.Channel)
		defer ccSvc.Close()
		if _, err := ccSvc.Deploy(ctx, req.Chaincode); err != nil {
			return net, errors.WithMessagef(err, "fail to deploy chaincode %s", req.Chaincode.Label())
		}
	}
	return net, nil
}

// Load rebuilds a recorded network.
func (ns *NetworkService) Load(name string) (*model.Network, *dao.NetworkRecord, error) {
	rec, err := ns.deps.Store.FindNetwork(name)
	if err != nil {
		return nil, nil, errors.WithMessagef(err, "fail to find network %s", name)
	}
	topo, err := model.ParseTopology([]byte(rec.Topology))
	if err != nil {
		return nil, nil, errors.WithMessagef(err, "fail to parse topology of %s", name)
	}
	net, err := factory.NewNetworkFactory(rec.Base).NewNetwork(rec.Name, topo)
	if err != nil {
		return nil, nil, err
	}
	return net, rec, nil
}

func (ns *NetworkService) List() ([]dao.NetworkRecord, error) {
	return ns.deps.Store.ListNetworks()
}

func (ns *NetworkService) Nodes(name string) ([]dao.NodeRecord, error) {
	if _, err := ns.deps.Store.FindNetwork(name); err != nil {
		return nil, errors.WithMessagef(err, "fail to find network %s", name)
	}
	return ns.deps.Store.FindNodes(name)
}

// Profile renders the connection profile of a recorded network.
func (ns *NetworkService) Profile(name, format string) ([]byte, error) {
	net, _, err := ns.Load(name)
	if err != nil {
		return nil, err
	}
	profile, err := NewProfileService(net).Generate()
	if err != nil {
		return nil, err
	}
	return Render(profile, format)
}

// DeployChaincode runs the chaincode lifecycle on the channel of a recorded
// network.
func (ns *NetworkService) DeployChaincode(ctx context.Context, name string, src *model.ChaincodeSource) (*model.ChaincodeDefinition, error) {
	net, rec, err := ns.Load(name)
	if err != nil {
		return nil, err
	}
	ccSvc := NewChaincodeService(net, ns.deps, rec.Channel)
	defer ccSvc.Close()
	return ccSvc.Deploy(ctx, src)
}

// Teardown removes every recorded node of the network concurrently. Nodes
// whose container is already gone are fine, so a partial network is torn
// down as well.
func (ns *NetworkService) Teardown(ctx context.Context, name string) error {
	global.Logger.Info(fmt.Sprintf("[Teardown %s]", name))
	defer global.Logger.Info(fmt.Sprintf("[Teardown %s] done!", name))

	nodes, err := ns.deps.Store.FindNodes(name)
	if err != nil {
		return errors.WithMessagef(err, "fail to find nodes of %s", name)
	}

	var tasks []Task
	for _, n := range nodes {
		n := n
		tasks = append(tasks, Task{Name: n.Name, Run: func(ctx context.Context) error {
			if err := ns.deps.Runtime.Remove(ctx, n.Name); err != nil {
				return errors.WithMessagef(err, "fail to remove %s", n.Name)
			}
			global.Logger.Info("├── removed", zap.String("node", n.Name))
			return ns.deps.Store.DeleteNode(name, n.Name)
		}})
	}
	if err := ns.deps.scheduler().Run(ctx, tasks...); err != nil {
		return err
	}

	rec, err := ns.deps.Store.FindNetwork(name)
	switch {
	case err == nil:
		for _, p := range model.NewLayout(rec.Base).Generated() {
			if err := os.RemoveAll(p); err != nil {
				return errors.WithMessagef(err, "fail to remove %s", p)
			}
		}
	case !errors.Is(err, dao.ErrNotFound):
		return errors.WithMessagef(err, "fail to find network %s", name)
	}

	if err := ns.deps.Store.DeleteNetwork(name); err != nil && !errors.Is(err, dao.ErrNotFound) {
		return errors.WithMessagef(err, "fail to delete network %s", name)
	}
	return nil
}
