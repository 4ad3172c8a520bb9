package service

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"hyperbench/dao"
	"hyperbench/global"
	"hyperbench/model"
	"hyperbench/service/factory"
)

const (
	OnExistingSkip  = "skip"
	OnExistingError = "error"
)

// Deps are the collaborators shared by the services of one orchestrator.
type Deps struct {
	Runtime    Runtime
	CAs        CAClientFactory
	Peers      PeerAdminFactory
	Orderers   OrdererAdmin
	Genesis    GenesisBuilder
	Store      dao.Store
	Containers *factory.ContainerFactory
	Waiter     Waiter
	Scheduler  *Scheduler
	// OnExisting decides what registering a known identity does.
	OnExisting string
	Traffic    *model.TrafficShaping
}

func (d *Deps) scheduler() *Scheduler {
	if d.Scheduler == nil {
		d.Scheduler = NewScheduler(DefaultWorkers)
	}
	return d.Scheduler
}

// recordNode upserts the node status. A node must be recorded before its
// container is started, so store failures are returned.
func (d *Deps) recordNode(network, name, kind, org, status string, cause error) error {
	rec := &dao.NodeRecord{
		Network: network,
		Name:    name,
		Kind:    kind,
		Org:     org,
		Status:  status,
	}
	if cause != nil {
		rec.Error = cause.Error()
	}
	if err := d.Store.SaveNode(rec); err != nil {
		global.Logger.Error("fail to record node", zap.String("node", name), zap.String("status", status), zap.Error(err))
		return errors.WithMessagef(err, "fail to record node %s", name)
	}
	return nil
}
