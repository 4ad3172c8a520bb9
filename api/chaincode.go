package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"hyperbench/enum"
	"hyperbench/model/request"
	"hyperbench/model/response"
)

// Run the chaincode lifecycle on the channel of a network. A definition that
// already exists is upgraded to the next sequence.
//
// POST	/network/:name/chaincode
// param: ChaincodeInfo
func (h *Handler) DeployChaincode(c *gin.Context) {
	var info request.ChaincodeInfo
	if err := c.ShouldBindJSON(&info); err != nil {
		response.Err(http.StatusBadRequest, enum.CodeErrMissingArgument).
			SetMessage(err.Error()).
			Result(c.JSON)
		return
	}
	src := info.Source()
	if err := src.Validate(); err != nil {
		response.Err(http.StatusBadRequest, enum.CodeErrBadArgument).
			SetMessage(err.Error()).
			Result(c.JSON)
		return
	}

	def, err := h.Networks.DeployChaincode(c.Request.Context(), c.Param("name"), src)
	if err != nil {
		failure(err).Result(c.JSON)
		return
	}
	response.Ok().
		SetPayload(response.NewChaincode(def)).
		Result(c.JSON)
}
