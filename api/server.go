// Package api exposes the underwriting pipeline over HTTP.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"property-underwriter/config"
	"property-underwriter/services"
	"property-underwriter/storage"
	"property-underwriter/utils"
)

// Deps are the collaborators the handlers use. Insights, PDF and Archive may
// be nil; the matching features then report themselves unavailable.
type Deps struct {
	Logger   *utils.Logger
	Analyzer *services.Analyzer
	Charts   *services.ChartRenderer
	Insights *services.InsightGenerator
	PDF      *storage.PDFRenderer
	Archive  storage.ReportWriter
}

// Server is the HTTP server.
type Server struct {
	router *gin.Engine
}

// NewServer builds the router.
func NewServer(cfg *config.Config, deps Deps) *Server {
	if !cfg.Server.DevMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.LoggerWithWriter(deps.Logger.Writer()), gin.Recovery())
	router.MaxMultipartMemory = cfg.Server.MaxUpload

	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	h := NewHandler(deps, cfg.Server.KeepLast, cfg.Server.MaxUpload)
	h.RegisterRoutes(router.Group("/api"))

	return &Server{router: router}
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler { return s.router }
