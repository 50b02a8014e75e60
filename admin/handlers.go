package admin

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kyraven-io/marketguard/guard"
	"github.com/kyraven-io/marketguard/observability"
)

// API bundles the registries the administrative surface reads from.
type API struct {
	service string
	runtime *guard.Runtime
	health  *observability.HealthRegistry
	metrics *observability.Collector
}

// NewAPI creates the administrative API. metrics may be nil when OTLP export
// is disabled; the metrics endpoints then serve runtime stats only.
func NewAPI(service string, rt *guard.Runtime, health *observability.HealthRegistry, metrics *observability.Collector) *API {
	return &API{
		service: service,
		runtime: rt,
		health:  health,
		metrics: metrics,
	}
}

// RegisterRoutes mounts all administrative routes on the engine.
func (a *API) RegisterRoutes(engine *gin.Engine) {
	engine.GET("/health", a.getHealth)
	engine.GET("/metrics", a.getMetrics)
	engine.POST("/metrics/reset", a.resetMetrics)

	adminGroup := engine.Group("/admin")
	{
		adminGroup.GET("/circuit-breakers", a.getCircuitBreakers)
		adminGroup.POST("/circuit-breakers/:name/reset", a.resetCircuitBreaker)
		adminGroup.GET("/caches", a.getCaches)
		adminGroup.DELETE("/caches", a.clearAllCaches)
		adminGroup.POST("/caches/:name/clear", a.clearCache)
		adminGroup.GET("/rate-limits", a.getRateLimits)
	}
}

// getHealth runs all registered health probes and aggregates the result.
func (a *API) getHealth(c *gin.Context) {
	sh := a.health.Check(c.Request.Context())

	httpStatus := http.StatusOK
	if sh.Status == observability.HealthStatusDown {
		httpStatus = http.StatusServiceUnavailable
	}
	c.JSON(httpStatus, sh)
}

// getMetrics reports runtime stats and the per-operation guard counters.
func (a *API) getMetrics(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	body := gin.H{
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"goroutines": runtime.NumGoroutine(),
		"memory": gin.H{
			"alloc_mb":       m.Alloc / 1024 / 1024,
			"total_alloc_mb": m.TotalAlloc / 1024 / 1024,
			"sys_mb":         m.Sys / 1024 / 1024,
			"num_gc":         m.NumGC,
		},
	}
	if a.metrics != nil {
		body["operations"] = a.metrics.Snapshot()
	}
	c.JSON(http.StatusOK, body)
}

// resetMetrics zeroes the locally aggregated guard counters.
func (a *API) resetMetrics(c *gin.Context) {
	if a.metrics != nil {
		a.metrics.Reset()
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// getCircuitBreakers reports every breaker's state, failure count and last
// failure time.
func (a *API) getCircuitBreakers(c *gin.Context) {
	c.JSON(http.StatusOK, a.runtime.Breakers().All())
}

// resetCircuitBreaker forces the named breaker back to closed.
func (a *API) resetCircuitBreaker(c *gin.Context) {
	name := c.Param("name")
	if !a.runtime.Breakers().Reset(name) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// getCaches reports per-cache entry statistics.
func (a *API) getCaches(c *gin.Context) {
	c.JSON(http.StatusOK, a.runtime.Caches().Stats())
}

// clearCache clears one named cache.
func (a *API) clearCache(c *gin.Context) {
	name := c.Param("name")
	if !a.runtime.Caches().Clear(name) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// clearAllCaches clears every cache.
func (a *API) clearAllCaches(c *gin.Context) {
	a.runtime.Caches().ClearAll()
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// getRateLimits reports the admission state of every endpoint.
func (a *API) getRateLimits(c *gin.Context) {
	c.JSON(http.StatusOK, a.runtime.Limiter().Status())
}
