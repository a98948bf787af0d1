package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"carrental/internal/infra/config"
	"carrental/internal/infra/obs"
)

type QuoteHTTP interface {
	Create(c *gin.Context)
}

type ReservationHTTP interface {
	Confirm(c *gin.Context)
	Submit(c *gin.Context)
	Cancel(c *gin.Context)
	ByRenter(c *gin.Context)
}

type CatalogHTTP interface {
	Companies(c *gin.Context)
	CarTypes(c *gin.Context)
	AvailableCarTypes(c *gin.Context)
	Fleet(c *gin.Context)
}

type NotificationHTTP interface {
	ByRenter(c *gin.Context)
}

type Handlers struct {
	Quotes        QuoteHTTP
	Reservations  ReservationHTTP
	Catalog       CatalogHTTP
	Notifications NotificationHTTP
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(obsMW, health, h),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// NewRouter builds the gin engine without binding it to an address.
func NewRouter(obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Idempotency-Key"},
		ExposeHeaders: []string{"Content-Length", "Content-Type", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}))

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	api := router.Group("/api/v1")
	if h.Quotes != nil {
		api.POST("/quotes", h.Quotes.Create)
	}
	if h.Reservations != nil {
		api.POST("/reservations", h.Reservations.Confirm)
		api.POST("/confirmations", h.Reservations.Submit)
		api.DELETE("/companies/:company/reservations/:id", h.Reservations.Cancel)
		api.GET("/renters/:renter/reservations", h.Reservations.ByRenter)
	}
	if h.Catalog != nil {
		api.GET("/companies", h.Catalog.Companies)
		api.GET("/companies/:company/car-types", h.Catalog.CarTypes)
		api.GET("/companies/:company/available-car-types", h.Catalog.AvailableCarTypes)
		api.GET("/companies/:company/fleet", h.Catalog.Fleet)
	}
	if h.Notifications != nil {
		api.GET("/renters/:renter/notifications", h.Notifications.ByRenter)
	}
	return router
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
