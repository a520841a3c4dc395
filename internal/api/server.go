// Package api exposes the marketplace over HTTP: one route per operation,
// the read queries, and the whitelist surface.
package api

import (
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	limiter "github.com/ulule/limiter/v3"
	ginlimiter "github.com/ulule/limiter/v3/drivers/middleware/gin"
	memory "github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"

	"github.com/Aidin1998/nftmarket/internal/events"
	"github.com/Aidin1998/nftmarket/internal/market"
	"github.com/Aidin1998/nftmarket/internal/whitelist"
)

func init() {
	// Coin amounts arrive as arbitrary-precision decimals; "posdec" rejects
	// zero and negative values at the binding layer.
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("posdec", func(fl validator.FieldLevel) bool {
			d, ok := fl.Field().Interface().(decimal.Decimal)
			return ok && d.IsPositive()
		})
	}
}

// Server is the HTTP surface over the engine and the whitelist service.
type Server struct {
	router    *gin.Engine
	engine    *market.Engine
	whitelist *whitelist.Service
	publisher events.Publisher
	logger    *zap.Logger
	// now is swappable in tests.
	now func() time.Time
}

// NewServer wires the routes and middleware.
func NewServer(engine *market.Engine, wl *whitelist.Service, publisher events.Publisher, logger *zap.Logger) *Server {
	s := &Server{
		engine:    engine,
		whitelist: wl,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}

	router := gin.New()
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	store := memory.NewStore()
	rate, _ := limiter.NewRateFromFormatted("100-M")
	router.Use(ginlimiter.NewMiddleware(limiter.New(store, rate)))

	s.router = router
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.GET("/healthz", s.handleHealth)

	v1 := s.router.Group("/v1")
	{
		v1.GET("/params", s.handleGetParams)
		v1.POST("/params", s.handleUpdateParams)

		v1.GET("/tokens/:token/ask", s.handleGetAsk)
		v1.POST("/tokens/:token/ask", s.handleSetAsk)
		v1.DELETE("/tokens/:token/ask", s.handleRemoveAsk)

		v1.GET("/tokens/:token/bids", s.handleListBids)
		v1.POST("/tokens/:token/bids", s.handleSetBid)
		v1.DELETE("/tokens/:token/bids", s.handleRemoveBid)
		v1.POST("/tokens/:token/bids/accept", s.handleAcceptBid)

		v1.GET("/collection-bids/:bidder", s.handleGetCollectionBid)
		v1.POST("/collection-bids", s.handleSetCollectionBid)
		v1.DELETE("/collection-bids", s.handleRemoveCollectionBid)
		v1.POST("/collection-bids/:bidder/accept", s.handleAcceptCollectionBid)

		v1.GET("/tokens/:token/auction", s.handleGetAuction)
		v1.POST("/tokens/:token/auction", s.handleSetAuction)
		v1.POST("/tokens/:token/auction/close", s.handleCloseAuction)

		wl := v1.Group("/whitelist")
		{
			wl.GET("/config", s.handleWhitelistConfig)
			wl.GET("/members", s.handleWhitelistMembers)
			wl.GET("/members/:addr", s.handleWhitelistHasMember)
			wl.POST("/members", s.handleWhitelistAddMembers)
			wl.DELETE("/members", s.handleWhitelistRemoveMembers)
			wl.POST("/start-time", s.handleWhitelistStartTime)
			wl.POST("/end-time", s.handleWhitelistEndTime)
			wl.POST("/per-address-limit", s.handleWhitelistPerAddressLimit)
			wl.POST("/member-limit", s.handleWhitelistMemberLimit)
		}
	}
}

// Router exposes the handler for tests and custom servers.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start runs the server on addr, blocking until it stops.
func (s *Server) Start(addr string) error {
	s.logger.Info("starting API server", zap.String("addr", addr))
	return s.router.Run(addr)
}
