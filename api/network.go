package api

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"hyperbench/dao"
	"hyperbench/enum"
	"hyperbench/model"
	"hyperbench/model/request"
	"hyperbench/model/response"
	"hyperbench/service"
)

// Deploy a new network.
// Note that the network name can not be duplicated.
//
// POST	/network/
// param: DeployNetwork
func (h *Handler) CreateNetwork(c *gin.Context) {
	var info request.DeployNetwork

	// check if request model contains some required fields.
	if err := c.ShouldBindJSON(&info); err != nil {
		response.Err(http.StatusBadRequest, enum.CodeErrMissingArgument).
			SetMessage(err.Error()).
			Result(c.JSON)
		return
	}

	var (
		topo *model.TopologyDefinition
		err  error
	)
	if len(info.Topology) > 0 {
		topo, err = model.ParseTopology(info.Topology)
	} else {
		topo, err = model.GenerateTopology(info.Params(h.Defaults.Params))
	}
	if err != nil {
		response.Err(http.StatusBadRequest, enum.CodeErrBadArgument).
			SetMessage(err.Error()).
			Result(c.JSON)
		return
	}

	req := &service.DeployRequest{
		Name:          info.Name,
		Base:          h.Defaults.Base,
		Channel:       info.Channel,
		Topology:      topo,
		ProfileFormat: h.Defaults.ProfileFormat,
	}
	if req.Channel == "" {
		req.Channel = h.Defaults.Channel
	}
	if info.Chaincode != nil {
		req.Chaincode = info.Chaincode.Source()
		if err := req.Chaincode.Validate(); err != nil {
			response.Err(http.StatusBadRequest, enum.CodeErrBadArgument).
				SetMessage(err.Error()).
				Result(c.JSON)
			return
		}
	}

	h.locks.LockKey(info.Name)
	defer func() { _ = h.locks.UnlockKey(info.Name) }()

	// check if the network name has existed.
	if _, _, err := h.Networks.Load(info.Name); err == nil {
		response.Err(http.StatusConflict, enum.CodeErrConflict).
			SetMessage("network " + info.Name + " already exists").
			Result(c.JSON)
		return
	} else if !errors.Is(err, dao.ErrNotFound) {
		failure(err).Result(c.JSON)
		return
	}

	if _, err := h.Networks.Deploy(c.Request.Context(), req); err != nil {
		failure(err).Result(c.JSON)
		return
	}
	h.showNetwork(c, info.Name)
}

// GET	/network/
func (h *Handler) ListNetworks(c *gin.Context) {
	recs, err := h.Networks.List()
	if err != nil {
		response.Err(http.StatusInternalServerError, enum.CodeErrDB).
			SetMessage(err.Error()).
			Result(c.JSON)
		return
	}
	nets := make([]response.Network, 0, len(recs))
	for i := range recs {
		nets = append(nets, response.NewNetwork(&recs[i]))
	}
	response.Ok().
		SetPayload(nets).
		Result(c.JSON)
}

// GET	/network/:name
func (h *Handler) GetNetwork(c *gin.Context) {
	h.showNetwork(c, c.Param("name"))
}

func (h *Handler) showNetwork(c *gin.Context, name string) {
	_, rec, err := h.Networks.Load(name)
	if err != nil {
		failure(err).Result(c.JSON)
		return
	}
	nodes, err := h.Networks.Nodes(name)
	if err != nil {
		failure(err).Result(c.JSON)
		return
	}
	response.Ok().
		SetPayload(response.NewNetworkDetail(rec, nodes)).
		Result(c.JSON)
}

// GET	/network/:name/profile?format=json|yaml
func (h *Handler) GetProfile(c *gin.Context) {
	format := c.DefaultQuery("format", "json")
	if format != "json" && format != "yaml" {
		response.Err(http.StatusBadRequest, enum.CodeErrBadArgument).
			SetMessage("format must be json or yaml").
			Result(c.JSON)
		return
	}

	raw, err := h.Networks.Profile(c.Param("name"), format)
	if err != nil {
		failure(err).Result(c.JSON)
		return
	}
	var payload interface{} = string(raw)
	if format == "json" {
		payload = json.RawMessage(raw)
	}
	response.Ok().
		SetPayload(payload).
		Result(c.JSON)
}

// DELETE	/network/:name
func (h *Handler) DeleteNetwork(c *gin.Context) {
	name := c.Param("name")
	h.locks.LockKey(name)
	defer func() { _ = h.locks.UnlockKey(name) }()

	if _, _, err := h.Networks.Load(name); err != nil {
		failure(err).Result(c.JSON)
		return
	}
	if err := h.Networks.Teardown(c.Request.Context(), name); err != nil {
		failure(err).Result(c.JSON)
		return
	}
	response.Ok().Result(c.JSON)
}
