package routes

import (
	"finco/settlement/common"
	"finco/settlement/models"
	"finco/settlement/operations"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func RouteHandler(routeEngine *gin.Engine, handlers *operations.Handlers) {

	routeEngine.GET("/health", HandlerWrap(handlers.Health))

	routeEngine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router := routeEngine.Group("/api/swap")

	//simulate quotes a swap from the custody vault; nothing is built or stored
	router.POST("/simulate",
		common.ValidateInput[models.SwapRequest](),
		HandlerWrap(handlers.SimulateSwap))

	//routes reports which venue a pair settles through and the fallback order
	router.GET("/routes/:from/:to",
		common.ValidateInput[models.RoutePair](),
		HandlerWrap(handlers.GetRoute))

	owned := router.Group("", RequireOrganization())

	//prepare re-validates the quote and returns the unsigned propose+approve
	// transaction with the sponsor as fee payer
	owned.POST("/prepare",
		common.ValidateInput[models.PrepareRequest](),
		HandlerWrap(handlers.PrepareSwap))

	//proposal co-signs and broadcasts the member-signed proposal and returns
	// the unsigned execution transaction
	owned.POST("/proposal",
		common.ValidateInput[models.SubmitProposalRequest](),
		HandlerWrap(handlers.SubmitProposal))

	//finalize co-signs and broadcasts the member-signed execution transaction
	owned.POST("/finalize",
		common.ValidateInput[models.FinalizeRequest](),
		HandlerWrap(handlers.FinalizeExecution))

	//execution/refresh rebuilds the execution transaction with a fresh blockhash
	owned.POST("/execution/refresh",
		common.ValidateInput[models.RefreshExecutionRequest](),
		HandlerWrap(handlers.RefreshExecution))
}
