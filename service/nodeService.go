package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"hyperbench/dao"
	"hyperbench/enum"
	"hyperbench/global"
	"hyperbench/model"
)

// NodeService provisions peers and orderers once their organization is
// bootstrapped.
type NodeService struct {
	net     *model.Network
	deps    *Deps
	orgs    *OrganizationService
	enroll  *EnrollService
	traffic *TrafficService
}

func NewNodeService(net *model.Network, deps *Deps, orgs *OrganizationService, enroll *EnrollService) *NodeService {
	return &NodeService{
		net:     net,
		deps:    deps,
		orgs:    orgs,
		enroll:  enroll,
		traffic: NewTrafficService(deps.Runtime, deps.Traffic),
	}
}

// node is the part peers and orderers share during provisioning.
type node struct {
	kind     string
	identity *model.Identity
	port     int
	spec     func() *model.ContainerSpec
}

func (ns *NodeService) ProvisionPeer(ctx context.Context, org *model.Organization, p *model.Peer) error {
	return ns.provision(ctx, org, node{
		kind:     dao.NodePeer,
		identity: &p.Identity,
		port:     p.Port,
		spec:     func() *model.ContainerSpec { return ns.deps.Containers.NewPeer(ns.net, p) },
	})
}

func (ns *NodeService) ProvisionOrderer(ctx context.Context, org *model.Organization, o *model.Orderer) error {
	return ns.provision(ctx, org, node{
		kind:     dao.NodeOrderer,
		identity: &o.Identity,
		port:     o.Port,
		spec:     func() *model.ContainerSpec { return ns.deps.Containers.NewOrderer(ns.net, o) },
	})
}

func (ns *NodeService) provision(ctx context.Context, org *model.Organization, n node) error {
	name := n.identity.Name
	global.Logger.Info(fmt.Sprintf("[Provision %s %s]", n.kind, name))
	defer global.Logger.Info(fmt.Sprintf("[Provision %s %s] done!", n.kind, name))

	// 1. preconditions
	if !ns.orgs.Ready(org) {
		return model.NewError(model.ErrProvisioning, nil, "organization %s is not bootstrapped", org.Name)
	}

	// 2-3. register and enroll membership and tls
	if err := ns.enroll.EnrollIdentity(ctx, org, n.identity); err != nil {
		return err
	}

	// 4. admincerts
	if err := ns.enroll.PlaceAdminCert(org, n.identity.HomeDir); err != nil {
		return err
	}

	// 5. container spec
	spec := n.spec()

	// 6. record
	if err := ns.deps.recordNode(ns.net.Name, name, n.kind, org.Name, enum.StatusProvisioned, nil); err != nil {
		return err
	}

	// 7. start
	if err := ns.deps.recordNode(ns.net.Name, name, n.kind, org.Name, enum.StatusStarting, nil); err != nil {
		return err
	}
	if err := ns.deps.Runtime.Start(ctx, spec); err != nil {
		_ = ns.deps.recordNode(ns.net.Name, name, n.kind, org.Name, enum.StatusError, err)
		return model.NewError(model.ErrProvisioning, err, "fail to start %s", name)
	}

	// 8. readiness
	preds := append([]Predicate{ContainerRunning(ns.deps.Runtime, name)}, ns.deps.Waiter.Port(name, n.port)...)
	if err := ns.deps.Waiter.WaitFor(ctx, n.kind+" "+name, preds...); err != nil {
		_ = ns.deps.recordNode(ns.net.Name, name, n.kind, org.Name, enum.StatusError, err)
		return err
	}

	// 9. traffic shaping
	if err := ns.traffic.Apply(ctx, name); err != nil {
		_ = ns.deps.recordNode(ns.net.Name, name, n.kind, org.Name, enum.StatusError, err)
		return err
	}

	global.Logger.Info("node running", zap.String("node", name), zap.String("org", org.Name))
	return ns.deps.recordNode(ns.net.Name, name, n.kind, org.Name, enum.StatusRunning, nil)
}

// ProvisionPeers provisions every peer of the network in parallel.
func (ns *NodeService) ProvisionPeers(ctx context.Context) error {
	var tasks []Task
	for _, org := range ns.net.PeerOrgs() {
		for _, p := range org.Peers {
			org, p := org, p
			tasks = append(tasks, Task{Name: p.Name, Run: func(ctx context.Context) error {
				return ns.ProvisionPeer(ctx, org, p)
			}})
		}
	}
	return ns.deps.scheduler().Run(ctx, tasks...)
}

// ProvisionOrderers provisions every orderer of the network in parallel.
func (ns *NodeService) ProvisionOrderers(ctx context.Context) error {
	var tasks []Task
	for _, org := range ns.net.OrdererOrgs() {
		for _, o := range org.Orderers {
			org, o := org, o
			tasks = append(tasks, Task{Name: o.Name, Run: func(ctx context.Context) error {
				return ns.ProvisionOrderer(ctx, org, o)
			}})
		}
	}
	return ns.deps.scheduler().Run(ctx, tasks...)
}
