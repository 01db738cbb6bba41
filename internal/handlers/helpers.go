package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"twister-backend/internal/dto"
	"twister-backend/internal/repository"
	"twister-backend/internal/types"
)

// statusForError maps the error taxonomy to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, types.ErrInputInvalid):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrNoSuchCommitment), errors.Is(err, repository.ErrOperationNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrAlreadySpent):
		return http.StatusConflict
	case errors.Is(err, types.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity
	case errors.Is(err, types.ErrProverFailure), errors.Is(err, types.ErrSubmissionFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondWithError unified error response
func respondWithError(c *gin.Context, err error) {
	code := types.ErrorCode(err)
	if errors.Is(err, repository.ErrOperationNotFound) {
		code = "NOT_FOUND"
	}
	c.JSON(statusForError(err), dto.ErrorResponse{
		Error:   http.StatusText(statusForError(err)),
		Code:    code,
		Message: err.Error(),
	})
}

func respondBadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, dto.ErrorResponse{
		Error:   "Bad Request",
		Code:    "INPUT_INVALID",
		Message: err.Error(),
	})
}
