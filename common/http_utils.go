package common

import (
	"net/http"

	settlementErrors "finco/settlement/errors"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

/*
Usage Example

	route.POST("/swap/simulate",
		common.ValidateInput[models.SwapRequest](),
		handler.SimulateSwap,
	)

	input := common.GetInput[models.SwapRequest](c)

The list of built-in validators can found at
https://github.com/go-playground/validator
*/
func ValidateInput[InputEntityType any]() func(*gin.Context) {
	return func(c *gin.Context) {
		var input InputEntityType

		err := c.ShouldBindJSON(&input)
		if err != nil {
			err = c.ShouldBindUri(&input)
			if err != nil {
				err = c.ShouldBindQuery(&input)
				if err != nil {
					SendErrorResponse(c, Exception{
						Code:      http.StatusBadRequest,
						ErrorType: string(settlementErrors.CodeInvalidParameter),
						Message:   err.Error()})
					return
				}
			}
		}

		c.Set(InputEntityKey, input)

		c.Next()
	}
}

func SendErrorResponse(c *gin.Context, err Exception) {
	log.Errorf("Sending error response %v", err)
	c.AbortWithStatusJSON(err.Code, ApiError{
		Status: false,
		Err: ErrorDetails{
			Type:    err.ErrorType,
			Message: err.Message,
			Details: err.Details,
		},
	})
}

// SendSettlementError renders err with its taxonomy code and HTTP status.
// Errors outside the taxonomy are reported as internal without their text.
func SendSettlementError(c *gin.Context, err error) {
	var typed *settlementErrors.Error
	if !settlementErrors.As(err, &typed) {
		log.WithError(err).Error("unclassified settlement failure")
		typed = settlementErrors.Internal("internal error", err)
	}
	SendErrorResponse(c, Exception{
		Code:      settlementErrors.HTTPStatus(typed.Code),
		ErrorType: string(typed.Code),
		Message:   typed.Message,
		Details:   typed.Details,
	})
}

func SendResponse[OutputObjectType any](c *gin.Context, obj OutputObjectType) {
	c.Writer.Header().Set("Content-Type", "application/json")
	c.JSON(http.StatusOK, ApiSuccess{
		Status: true,
		Result: obj,
	})
}

func GetInput[BodyType any](c *gin.Context) BodyType {
	return c.MustGet(InputEntityKey).(BodyType)
}

// CORSMiddleware to apply server middleware for CORS
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, "+OrganizationHeader)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
