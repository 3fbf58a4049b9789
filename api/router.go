package api

import (
	"github.com/gin-gonic/gin"

	"github.com/kyoden/chatrelay/api/handlers"
	"github.com/kyoden/chatrelay/services/auth"
)

func (s *server) setupRoutes(router *gin.Engine) {
	bypass := auth.Bypass(s.cfg.SkipVerification(), s.cfg.IsDebug())

	handlers.SetupWebhook(router, s.logger, s.verifier, s.pool, s.validator, s.cfg.GetOutgoingToken(), bypass)
	handlers.SetupHealth(router, s.logger,
		s.modelClient.VersionURL(),
		s.modelClient.Model(),
		s.cfg.GetWorkflowURL() != "",
		s.searcher != nil,
		bypass,
	)
}

func newRouter() *gin.Engine {
	router := gin.Default()
	router.UseRawPath = true
	router.Use(_CORSMiddleware())
	router.Use(gin.Recovery())

	return router
}
