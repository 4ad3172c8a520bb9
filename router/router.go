package router

import (
	"github.com/gin-gonic/gin"

	"hyperbench/api"
)

func GetRouter(h *api.Handler) (router *gin.Engine) {
	router = gin.Default()

	NetworkRouter := router.Group("network")
	{
		NetworkRouter.POST("/", h.CreateNetwork)
		NetworkRouter.GET("/", h.ListNetworks)
		NetworkRouter.GET("/:name", h.GetNetwork)
		NetworkRouter.DELETE("/:name", h.DeleteNetwork)

		NetworkRouter.GET("/:name/profile", h.GetProfile)
		NetworkRouter.POST("/:name/chaincode", h.DeployChaincode)
	}

	return
}
