// Package api exposes the read-only HTTP surface: TradingView chart
// endpoints plus a recent-trades lookup by market address. Handlers are
// side-effect free and translate every failure into the response contract;
// nothing here can crash the server.
package api

import (
	"fmt"
	"net/http"
	"time"

	"tradehistory/internal/history"
	"tradehistory/internal/market"
	"tradehistory/internal/notify"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	exchangeName = "Serum"

	// recentTradeLimit caps /trades responses at the most recent trades of
	// the open bucket(s).
	recentTradeLimit = 1000

	requestTimeout = 10 * time.Second
)

// Server wires the registry, trade store and notifier into gin handlers.
type Server struct {
	registry *market.Registry
	store    *history.TradeStore
	notifier *notify.Notifier
	log      *zap.Logger
}

func NewServer(registry *market.Registry, store *history.TradeStore, notifier *notify.Notifier, log *zap.Logger) *Server {
	return &Server{
		registry: registry,
		store:    store,
		notifier: notifier,
		log:      log,
	}
}

// Router builds the gin engine with all routes and middleware attached.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestIDMiddleware(), corsMiddleware())

	r.GET("/tv/config", s.tvConfig)
	r.GET("/tv/symbols", s.tvSymbols)
	r.GET("/tv/history", s.tvHistory)
	r.GET("/trades/address/:marketPk", s.tradesByAddress)

	return r
}

// HTTPServer wraps the router into a server bound to the given port.
func (s *Server) HTTPServer(port int) *http.Server {
	return &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.Router(),
	}
}
