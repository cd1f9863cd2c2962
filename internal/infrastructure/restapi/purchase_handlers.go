package restapi

import (
	"context"
	"net/http"

	"sift_client/internal/app/port"
	"sift_client/internal/domain/entity"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

// purchaseRequest carries both the purchase and the answer to its confirmation prompt.
type purchaseRequest struct {
	Address       string `json:"address" binding:"required"`
	Quantity      uint64 `json:"quantity"`
	Password      string `json:"password"`
	GasMultiplier uint8  `json:"gasMultiplier"`
	Cancel        bool   `json:"cancel"`
}

// confirmer answers the confirmation prompt from the request body.
func (r purchaseRequest) confirmer() port.Confirmer {
	return port.ConfirmerFunc(func(context.Context, entity.ConfirmationRequest) (entity.Confirmation, error) {
		return entity.Confirmation{
			Cancelled:     r.Cancel,
			Password:      r.Password,
			GasMultiplier: r.GasMultiplier,
		}, nil
	})
}

var failureStatus = map[entity.PurchaseFailureType]int{
	entity.FailureUnknownAccount:     http.StatusNotFound,
	entity.FailureInsufficientFunds:  http.StatusUnprocessableEntity,
	entity.FailureInsufficientGas:    http.StatusUnprocessableEntity,
	entity.FailureUserCancelled:      http.StatusOK,
	entity.FailurePasswordInvalid:    http.StatusForbidden,
	entity.FailureUnlockError:        http.StatusForbidden,
	entity.FailureMissingRPCPersonal: http.StatusNotImplemented,
	entity.FailureRPCError:           http.StatusBadGateway,
}

// PurchaseHandler buys tokens from one of the node's accounts.
func (h *Handler) PurchaseHandler(c *gin.Context) {
	var req purchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIResponse{StatusMessage: "Request body must contain address and quantity."})
		return
	}
	if !common.IsHexAddress(req.Address) {
		c.JSON(http.StatusBadRequest, APIResponse{StatusMessage: "Invalid address."})
		return
	}
	if req.Quantity == 0 {
		c.JSON(http.StatusBadRequest, APIResponse{StatusMessage: "Quantity must be at least one token."})
		return
	}

	result := h.purchases.Purchase(c.Request.Context(), entity.PurchaseRequest{
		Address:  req.Address,
		Quantity: req.Quantity,
	}, req.confirmer())

	data := gin.H{"result": result}
	if result.WasSuccessful {
		if result.Transaction != nil {
			data["transaction"] = result.Transaction.Snapshot()
		}
		c.JSON(http.StatusAccepted, APIResponse{Data: data, StatusMessage: "Purchase submitted."})
		return
	}

	status, ok := failureStatus[result.FailureType]
	if !ok {
		status = http.StatusBadGateway
	}
	msg := result.FailureReason
	if msg == "" {
		msg = result.FailureType.String()
	}
	c.JSON(status, APIResponse{Data: data, StatusMessage: msg})
}
