package router

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"twister-backend/internal/config"
	"twister-backend/internal/middleware"
)

// SetupTwisterRoutes mounts /api. Reads are public; deposit, withdraw and the
// operation log sit behind operator tokens when auth.requireAuth is set.
func SetupTwisterRoutes(r *gin.Engine, cfg *config.Config, h Handlers, logger *logrus.Logger) {
	authMiddleware := middleware.NewAuthMiddleware(logger)

	api := r.Group("/api")
	{
		tree := api.Group("/tree")
		{
			tree.GET("/root", h.Tree.GetRoot)
			tree.GET("/witness/:commitment", h.Tree.GetWitness)
		}
		api.GET("/leaves", h.Tree.ListLeaves)
		api.POST("/notes", h.Tree.GetNote)

		if h.WebSocket != nil {
			api.GET("/ws", h.WebSocket.HandleWebSocket)
		}

		if h.Operation == nil {
			return
		}
		secure := api.Group("")
		if cfg.Auth.RequireAuth {
			secure.Use(authMiddleware.RequireAuth())
		}
		{
			secure.POST("/deposit", h.Operation.Deposit)
			secure.POST("/withdraw", h.Operation.Withdraw)
			secure.GET("/operations", h.Operation.ListOperations)
			secure.GET("/operations/:id", h.Operation.GetOperation)
		}
	}
}
