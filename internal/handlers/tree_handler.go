package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"twister-backend/internal/services"
	"twister-backend/internal/types"
)

// TreeHandler read-only accumulator endpoints
type TreeHandler struct {
	tree *services.TreeService
}

func NewTreeHandler(tree *services.TreeService) *TreeHandler {
	return &TreeHandler{tree: tree}
}

// GetRoot GET /api/tree/root
func (h *TreeHandler) GetRoot(c *gin.Context) {
	resp, err := h.tree.Root(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetWitness GET /api/tree/witness/:commitment
func (h *TreeHandler) GetWitness(c *gin.Context) {
	resp, err := h.tree.Witness(c.Request.Context(), c.Param("commitment"))
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListLeaves GET /api/leaves?offset=&limit=
func (h *TreeHandler) ListLeaves(c *gin.Context) {
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		respondBadRequest(c, types.ErrInputInvalid)
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit < 0 {
		respondBadRequest(c, types.ErrInputInvalid)
		return
	}

	records, total, err := h.tree.Leaves(c.Request.Context(), offset, limit)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"leaves": records,
		"total":  total,
		"offset": offset,
		"limit":  limit,
	})
}

// GetNote POST /api/notes
// The secret travels in the body, never in the URL.
func (h *TreeHandler) GetNote(c *gin.Context) {
	var req types.NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	resp, err := h.tree.Note(c.Request.Context(), req)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
