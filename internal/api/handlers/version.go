package handlers

import (
	"net/http"
	"runtime"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// VersionInfo contains server build and runtime information.
type VersionInfo struct {
	Version      string `json:"version"`
	Commit       string `json:"commit,omitempty"`
	BuildDate    string `json:"build_date,omitempty"`
	GoVersion    string `json:"go_version"`
	StoreBackend string `json:"store_backend,omitempty"`
}

// VersionHandler serves the /version endpoint.
type VersionHandler struct {
	info   VersionInfo
	logger zerolog.Logger
}

// NewVersionHandler creates a new VersionHandler. An empty version is reported as "dev".
func NewVersionHandler(info VersionInfo, logger zerolog.Logger) *VersionHandler {
	if info.Version == "" {
		info.Version = "dev"
	}
	info.GoVersion = runtime.Version()
	return &VersionHandler{
		info:   info,
		logger: logger.With().Str("component", "version_handler").Logger(),
	}
}

// RegisterPublicRoutes registers the version route.
func (h *VersionHandler) RegisterPublicRoutes(r gin.IRouter) {
	r.GET("/version", h.Get)
}

// Get returns the server version information.
//
//	@Summary		Server version
//	@Tags			Monitoring
//	@Produce		json
//	@Success		200	{object}	VersionInfo
//	@Router			/version [get]
func (h *VersionHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, h.info)
}
