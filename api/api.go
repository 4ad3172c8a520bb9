package api

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"k8s.io/utils/keymutex"

	"hyperbench/dao"
	"hyperbench/enum"
	"hyperbench/global"
	"hyperbench/model"
	"hyperbench/model/response"
	"hyperbench/service"
)

// NetworkManager is what the handlers need from *service.NetworkService.
type NetworkManager interface {
	Deploy(ctx context.Context, req *service.DeployRequest) (*model.Network, error)
	List() ([]dao.NetworkRecord, error)
	Load(name string) (*model.Network, *dao.NetworkRecord, error)
	Nodes(name string) ([]dao.NodeRecord, error)
	Profile(name, format string) ([]byte, error)
	DeployChaincode(ctx context.Context, name string, src *model.ChaincodeSource) (*model.ChaincodeDefinition, error)
	Teardown(ctx context.Context, name string) error
}

// Defaults fill the parts of a deploy request the client left out.
type Defaults struct {
	Base          string
	Channel       string
	Params        model.TopologyParams
	ProfileFormat string
}

const networkLockBuckets = 16

type Handler struct {
	Networks NetworkManager
	Defaults Defaults
	// locks serializes requests that create or remove the same network.
	locks    keymutex.KeyMutex
}

func NewHandler(networks NetworkManager, defaults Defaults) *Handler {
	if defaults.ProfileFormat == "" {
		defaults.ProfileFormat = "json"
	}
	return &Handler{
		Networks: networks,
		Defaults: defaults,
		locks:    keymutex.NewHashed(networkLockBuckets),
	}
}

// failure maps err to an http status and an enum code.
func failure(err error) *response.ResponseWithStatus {
	var (
		status = http.StatusInternalServerError
		code   = enum.CodeErrBlockchainNetworkError
	)
	switch {
	case errors.Is(err, dao.ErrNotFound):
		status, code = http.StatusNotFound, enum.CodeErrNotFound
	case model.HasKind(err, model.ErrQuorumNotReached):
		status, code = http.StatusConflict, enum.CodeErrQuorumNotReached
	case model.HasKind(err, model.ErrChannelAlreadyExists), model.HasKind(err, model.ErrDuplicateRegistration):
		status, code = http.StatusConflict, enum.CodeErrConflict
	}
	if status == http.StatusInternalServerError {
		global.Logger.Error("request failed", zap.Error(err))
	}
	return response.Err(status, code).SetMessage(err.Error())
}
