package api

import "takealot_sync/auth"

func (s *Server) setupRoutes() {
	router := s.router

	router.GET("/health", s.healthCheck)

	v1 := router.Group("/api/v1")

	// Signed by the marketplace, not by a user.
	v1.POST("/takealot/webhook", s.takealotWebhook)

	protected := v1.Group("")
	protected.Use(auth.BearerAuth(s.deps.Auth))
	{
		protected.POST("/takealot/sync", s.syncProducts)
		protected.GET("/takealot/sync/runs", s.listSyncRuns)
		protected.POST("/takealot/prices", s.updatePrices)

		protected.GET("/products", s.listProducts)
		protected.GET("/products/:id/price-history", s.priceHistory)
	}

	admin := v1.Group("/admin")
	admin.Use(auth.APIKeyAuth(s.opts.AdminAPIKey))
	{
		admin.POST("/webhooks/replay", s.replayWebhooks)
	}
}
