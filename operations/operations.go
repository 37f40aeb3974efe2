package operations

import (
	"context"
	"net/http"

	"finco/settlement/common"
	"finco/settlement/models"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// SettlementService is the swap pipeline the handlers drive.
type SettlementService interface {
	Simulate(ctx context.Context, req models.SwapRequest) (*models.SwapQuote, error)
	Prepare(ctx context.Context, orgID string, req models.PrepareRequest) (*models.PrepareResponse, error)
	SubmitProposal(ctx context.Context, orgID string, req models.SubmitProposalRequest) (*models.SubmitProposalResponse, error)
	FinalizeExecution(ctx context.Context, orgID string, req models.FinalizeRequest) (*models.FinalizeResponse, error)
	RefreshExecution(ctx context.Context, orgID string, req models.RefreshExecutionRequest) (*models.SubmitProposalResponse, error)
	Routes(from, to string) (*models.RouteResponse, error)
}

type Handlers struct {
	service SettlementService
}

func NewHandlers(service SettlementService) *Handlers {
	return &Handlers{service: service}
}

// SimulateSwap quotes a swap without building anything the member signs.
func (h *Handlers) SimulateSwap(c *gin.Context) {
	input := common.GetInput[models.SwapRequest](c)
	quote, err := h.service.Simulate(c.Request.Context(), input)
	if err != nil {
		common.SendSettlementError(c, err)
		return
	}
	common.SendResponse(c, quote)
}

// PrepareSwap returns the unsigned proposal transaction for the member.
func (h *Handlers) PrepareSwap(c *gin.Context) {
	input := common.GetInput[models.PrepareRequest](c)
	orgID := c.GetString(common.OrganizationIDKey)
	prepared, err := h.service.Prepare(c.Request.Context(), orgID, input)
	if err != nil {
		common.SendSettlementError(c, err)
		return
	}
	log.WithFields(log.Fields{
		"organizationId": orgID,
		"transactionId":  prepared.TransactionID,
	}).Info("swap prepared")
	common.SendResponse(c, prepared)
}

func (h *Handlers) SubmitProposal(c *gin.Context) {
	input := common.GetInput[models.SubmitProposalRequest](c)
	orgID := c.GetString(common.OrganizationIDKey)
	submitted, err := h.service.SubmitProposal(c.Request.Context(), orgID, input)
	if err != nil {
		common.SendSettlementError(c, err)
		return
	}
	common.SendResponse(c, submitted)
}

func (h *Handlers) FinalizeExecution(c *gin.Context) {
	input := common.GetInput[models.FinalizeRequest](c)
	orgID := c.GetString(common.OrganizationIDKey)
	finalized, err := h.service.FinalizeExecution(c.Request.Context(), orgID, input)
	if err != nil {
		common.SendSettlementError(c, err)
		return
	}
	common.SendResponse(c, finalized)
}

// RefreshExecution rebuilds an expired or not yet built execution transaction.
func (h *Handlers) RefreshExecution(c *gin.Context) {
	input := common.GetInput[models.RefreshExecutionRequest](c)
	orgID := c.GetString(common.OrganizationIDKey)
	refreshed, err := h.service.RefreshExecution(c.Request.Context(), orgID, input)
	if err != nil {
		common.SendSettlementError(c, err)
		return
	}
	common.SendResponse(c, refreshed)
}

func (h *Handlers) GetRoute(c *gin.Context) {
	input := common.GetInput[models.RoutePair](c)
	route, err := h.service.Routes(input.From, input.To)
	if err != nil {
		common.SendSettlementError(c, err)
		return
	}
	common.SendResponse(c, route)
}

func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
