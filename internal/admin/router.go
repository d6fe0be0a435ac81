package admin

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds the gin engine for h.
func NewRouter(h *Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), h.requestContext())

	router.GET("/healthz", h.HandleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	{
		tenants := v1.Group("/tenants/:tenant")
		tenants.GET("/status", h.HandleStatus)
		tenants.GET("/taxonomies/:taxonomy/terms", h.HandleTerms)

		writes := tenants.Group("", h.requireToken())
		writes.POST("/provision", h.HandleProvision)
		writes.POST("/update", h.HandleUpdate)
		writes.POST("/taxonomies/:taxonomy/terms", h.HandleInsert)
	}
	return router
}

// requestContext attaches a request id and a request-scoped logger, and
// records the request once it completes.
func (h *Handlers) requestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := getOrCreateRequestID(c)
		logger := h.logger.With("request_id", requestID)
		if tenant := c.Param("tenant"); tenant != "" {
			logger = logger.With("tenant", tenant)
		}
		c.Set(loggerKey, logger)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		httpRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(status)).Inc()
		logger.Debug("request served",
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"duration", time.Since(start),
		)
	}
}

// requireToken rejects requests without the configured bearer token.
func (h *Handlers) requireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.token == "" {
			c.Next()
			return
		}
		token := extractBearerToken(c)
		if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(h.token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Error: "unauthorized",
				Code:  CodeUnauthorized,
			})
			return
		}
		c.Next()
	}
}

// extractBearerToken returns the token from "Authorization: Bearer <token>",
// or "" when the header is missing or malformed. The scheme is
// case-insensitive.
func extractBearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
