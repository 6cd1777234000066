package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/studypay/duebell/internal/engine"
	apperrors "github.com/studypay/duebell/pkg/errors"
	"github.com/studypay/duebell/pkg/logger"
	"github.com/studypay/duebell/pkg/response"
)

// EngineHandler exposes the machine-to-machine trigger surface.
type EngineHandler struct {
	engine *engine.Engine
}

// NewEngineHandler constructs an EngineHandler.
func NewEngineHandler(eng *engine.Engine) (*EngineHandler, error) {
	if eng == nil {
		return nil, errors.New("engine handler: engine is required")
	}
	return &EngineHandler{engine: eng}, nil
}

// RunPass executes one status-and-notification pass and returns its summary.
// Repeating the call is safe; conditional writes and the dispatch ledger make
// the pass idempotent.
func (h *EngineHandler) RunPass(c *gin.Context) {
	summary, err := h.engine.Run(requestContext(c))
	if err != nil {
		// The pass itself completed; surface item failures in the log and
		// the summary's error count, not as a request failure.
		logger.WithModule("engine").Warn("pass finished with item errors", zap.Error(err))
	}
	response.Success(c, http.StatusOK, summary)
}

type paymentReceivedRequest struct {
	InstallmentID string `json:"installment_id" validate:"required"`
}

// PaymentReceived ingests a payment-recorded event from the payments
// collaborator and fans out notifications for it.
func (h *EngineHandler) PaymentReceived(c *gin.Context) {
	var req paymentReceivedRequest
	if !bindAndValidate(c, &req) {
		return
	}

	summary, err := h.engine.HandlePaymentReceived(requestContext(c), req.InstallmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.Error(c, apperrors.ErrNotFound)
			return
		}
		response.Error(c, apperrors.Wrap(err, "failed to process payment event"))
		return
	}
	response.Success(c, http.StatusOK, summary)
}
