package restapi

import (
	"errors"
	"net/http"

	"sift_client/internal/app/port"
	"sift_client/internal/app/service"
	"sift_client/internal/domain/entity"
	"sift_client/internal/pkg/notify"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
)

// APIResponse is the envelope shared by every JSON endpoint.
type APIResponse struct {
	Data          any    `json:"data,omitempty"`
	StatusMessage string `json:"status_message"`
}

// Handler serves the chain state, purchases and transaction tracking.
type Handler struct {
	chain     port.ChainState
	queue     port.TransactionQueue
	purchases port.PurchaseService
	notifier  *notify.Notifier
	logger    port.Logger
}

// NewHandler creates a new Handler.
func NewHandler(
	chain port.ChainState,
	queue port.TransactionQueue,
	purchases port.PurchaseService,
	notifier *notify.Notifier,
	l port.Logger,
) *Handler {
	return &Handler{
		chain:     chain,
		queue:     queue,
		purchases: purchases,
		notifier:  notifier,
		logger:    l,
	}
}

// GetStatusHandler returns the chain status snapshot.
func (h *Handler) GetStatusHandler(c *gin.Context) {
	status := h.chain.Status()
	msg := "Node checks are passing."
	switch {
	case status.ContractError != "":
		msg = "Contract mismatch, the client may be out of date."
	case !status.LastChecksSuccessful:
		msg = "The last node checks failed."
	}
	c.JSON(http.StatusOK, APIResponse{Data: status, StatusMessage: msg})
}

// GetAccountsHandler returns every tracked account.
func (h *Handler) GetAccountsHandler(c *gin.Context) {
	accounts := h.chain.Accounts()
	msg := "Accounts retrieved successfully."
	if len(accounts) == 0 {
		msg = "No accounts found. Check the node's account list."
	}
	c.JSON(http.StatusOK, APIResponse{
		Data:          gin.H{"accounts": accounts},
		StatusMessage: msg,
	})
}

// GetMaximumPurchaseHandler returns the funds-adjusted token maximum for one account.
func (h *Handler) GetMaximumPurchaseHandler(c *gin.Context) {
	address := c.Param("address")
	if !common.IsHexAddress(address) {
		c.JSON(http.StatusBadRequest, APIResponse{StatusMessage: "Invalid address."})
		return
	}
	maximum, ok := h.purchases.MaximumPurchase(address)
	if !ok {
		c.JSON(http.StatusNotFound, APIResponse{StatusMessage: "Unknown account."})
		return
	}
	c.JSON(http.StatusOK, APIResponse{
		Data:          gin.H{"address": address, "maximumPurchase": maximum},
		StatusMessage: "Maximum purchase calculated.",
	})
}

type enqueueRequest struct {
	TransactionHash string `json:"transactionHash" binding:"required"`
}

// EnqueueTransactionHandler starts tracking an externally submitted transaction.
func (h *Handler) EnqueueTransactionHandler(c *gin.Context) {
	var req enqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIResponse{StatusMessage: "Request body must contain transactionHash."})
		return
	}
	if !validHash(req.TransactionHash) {
		c.JSON(http.StatusBadRequest, APIResponse{StatusMessage: "Invalid transaction hash."})
		return
	}
	tx := h.queue.Enqueue(req.TransactionHash)
	c.JSON(http.StatusAccepted, APIResponse{Data: tx.Snapshot(), StatusMessage: "Transaction enqueued."})
}

// GetTransactionHandler returns one tracked transaction.
func (h *Handler) GetTransactionHandler(c *gin.Context) {
	tx, ok := h.queue.Get(c.Param("hash"))
	if !ok {
		c.JSON(http.StatusNotFound, APIResponse{StatusMessage: "Unknown transaction."})
		return
	}
	c.JSON(http.StatusOK, APIResponse{Data: tx.Snapshot(), StatusMessage: string(tx.State())})
}

// ListTransactionsHandler returns every tracked transaction, oldest first.
func (h *Handler) ListTransactionsHandler(c *gin.Context) {
	txs := h.queue.Transactions()
	snaps := make([]entity.EnqueuedTransactionSnapshot, len(txs))
	for i, tx := range txs {
		snaps[i] = tx.Snapshot()
	}
	c.JSON(http.StatusOK, APIResponse{
		Data:          gin.H{"transactions": snaps},
		StatusMessage: "Transactions retrieved successfully.",
	})
}

// DeleteTransactionHandler disposes of a completed transaction.
func (h *Handler) DeleteTransactionHandler(c *gin.Context) {
	err := h.queue.Forget(c.Param("hash"))
	switch {
	case err == nil:
		c.Status(http.StatusNoContent)
	case errors.Is(err, service.ErrTransactionPending):
		c.JSON(http.StatusConflict, APIResponse{StatusMessage: err.Error()})
	case errors.Is(err, service.ErrUnknownTransaction):
		c.JSON(http.StatusNotFound, APIResponse{StatusMessage: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, APIResponse{StatusMessage: err.Error()})
	}
}

func validHash(hash string) bool {
	b, err := hexutil.Decode(hash)
	return err == nil && len(b) == common.HashLength
}
