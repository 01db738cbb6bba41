package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"twister-backend/internal/dto"
	"twister-backend/internal/repository"
	"twister-backend/internal/services"
	"twister-backend/internal/types"
)

// Coordinator runs deposits and withdrawals.
type Coordinator interface {
	Deposit(ctx context.Context, req types.DepositRequest) (*services.Result, error)
	Withdraw(ctx context.Context, req types.WithdrawRequest) (*services.Result, error)
}

// OperationHandler deposit / withdraw endpoints and the operation audit log
type OperationHandler struct {
	coordinator Coordinator
	operations  repository.OperationRepository
	logger      *logrus.Logger
}

func NewOperationHandler(coordinator Coordinator, operations repository.OperationRepository, logger *logrus.Logger) *OperationHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &OperationHandler{coordinator: coordinator, operations: operations, logger: logger}
}

// Deposit POST /api/deposit
func (h *OperationHandler) Deposit(c *gin.Context) {
	var req types.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	result, err := h.coordinator.Deposit(c.Request.Context(), req)
	h.respond(c, "deposit", result, err)
}

// Withdraw POST /api/withdraw
func (h *OperationHandler) Withdraw(c *gin.Context) {
	var req types.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	result, err := h.coordinator.Withdraw(c.Request.Context(), req)
	h.respond(c, "withdraw", result, err)
}

func (h *OperationHandler) respond(c *gin.Context, kind string, result *services.Result, err error) {
	if err != nil {
		fields := logrus.Fields{"kind": kind, "error_code": types.ErrorCode(err)}
		if result != nil && result.Operation != nil {
			fields["operation_id"] = result.Operation.ID
		}
		h.logger.WithFields(fields).Warn("[API] operation failed")
		respondWithError(c, err)
		return
	}
	if result.Skipped {
		c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error:   "Conflict",
			Code:    "OPERATION_IN_FLIGHT",
			Message: "another operation is in flight, request ignored",
		})
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetOperation GET /api/operations/:id
func (h *OperationHandler) GetOperation(c *gin.Context) {
	op, err := h.operations.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, op)
}

// ListOperations GET /api/operations?limit=
func (h *OperationHandler) ListOperations(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		respondBadRequest(c, types.ErrInputInvalid)
		return
	}
	ops, err := h.operations.ListRecent(c.Request.Context(), limit)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"operations": ops})
}
