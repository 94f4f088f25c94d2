package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"tradehistory/internal/market"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type tvConfigResponse struct {
	SupportedResolutions   []string `json:"supported_resolutions"`
	SupportsGroupRequest   bool     `json:"supports_group_request"`
	SupportsMarks          bool     `json:"supports_marks"`
	SupportsSearch         bool     `json:"supports_search"`
	SupportsTimescaleMarks bool     `json:"supports_timescale_marks"`
}

type tvSymbolResponse struct {
	Name                 string   `json:"name"`
	Ticker               string   `json:"ticker"`
	Description          string   `json:"description"`
	Type                 string   `json:"type"`
	Session              string   `json:"session"`
	Exchange             string   `json:"exchange"`
	ListedExchange       string   `json:"listed_exchange"`
	Timezone             string   `json:"timezone"`
	HasIntraday          bool     `json:"has_intraday"`
	SupportedResolutions []string `json:"supported_resolutions"`
	MinMov               int      `json:"minmov"`
	PriceScale           int64    `json:"pricescale"`
}

type tvHistoryResponse struct {
	S string    `json:"s"`
	T []int64   `json:"t"`
	O []float64 `json:"o"`
	H []float64 `json:"h"`
	L []float64 `json:"l"`
	C []float64 `json:"c"`
	V []float64 `json:"v"`
}

type tvHistoryError struct {
	S               string `json:"s"`
	ValidSymbol     bool   `json:"validSymbol"`
	ValidResolution bool   `json:"validResolution"`
	ValidFrom       bool   `json:"validFrom"`
}

type addressError struct {
	S       string `json:"s"`
	ValidPk bool   `json:"validPk"`
}

type genericError struct {
	S string `json:"s"`
}

type tradeItem struct {
	Market        string  `json:"market"`
	MarketAddress string  `json:"marketAddress"`
	Price         float64 `json:"price"`
	Size          float64 `json:"size"`
	Side          string  `json:"side"`
	Time          int64   `json:"time"`
	OrderID       string  `json:"orderId"`
	FeeCost       float64 `json:"feeCost"`
}

type tradesResponse struct {
	Success bool        `json:"success"`
	Data    []tradeItem `json:"data"`
}

func (s *Server) tvConfig(c *gin.Context) {
	c.Header("Cache-Control", "public, max-age=360")
	c.JSON(http.StatusOK, tvConfigResponse{
		SupportedResolutions:   market.SupportedResolutions(),
		SupportsGroupRequest:   false,
		SupportsMarks:          false,
		SupportsSearch:         true,
		SupportsTimescaleMarks: false,
	})
}

func (s *Server) tvSymbols(c *gin.Context) {
	symbol := c.Query("symbol")

	priceScale := int64(market.DefaultPriceScale)
	if d, ok := s.registry.BySymbol(symbol); ok {
		priceScale = d.PriceScale
	} else {
		// Documented fallback, never a silent one.
		s.log.Info("unknown symbol, using default pricescale",
			zap.String("symbol", symbol),
			zap.Int64("pricescale", priceScale))
	}

	c.Header("Cache-Control", "public, max-age=360")
	c.JSON(http.StatusOK, tvSymbolResponse{
		Name:                 symbol,
		Ticker:               symbol,
		Description:          symbol,
		Type:                 "Spot",
		Session:              "24x7",
		Exchange:             exchangeName,
		ListedExchange:       exchangeName,
		Timezone:             "Etc/UTC",
		HasIntraday:          true,
		SupportedResolutions: market.SupportedResolutions(),
		MinMov:               1,
		PriceScale:           priceScale,
	})
}

func (s *Server) tvHistory(c *gin.Context) {
	symbol := c.Query("symbol")
	_, validSymbol := s.registry.BySymbol(symbol)

	resolutionSec, validResolution := market.ResolutionSeconds(c.Query("resolution"))

	from, fromErr := strconv.ParseInt(c.Query("from"), 10, 64)
	to, toErr := strconv.ParseInt(c.Query("to"), 10, 64)
	validFrom := fromErr == nil && toErr == nil

	if !(validSymbol && validResolution && validFrom) {
		s.log.Warn("invalid history request",
			zap.String("symbol", symbol),
			zap.Bool("validSymbol", validSymbol),
			zap.Bool("validResolution", validResolution),
			zap.Bool("validFrom", validFrom))
		c.JSON(http.StatusNotFound, tvHistoryError{
			S:               "error",
			ValidSymbol:     validSymbol,
			ValidResolution: validResolution,
			ValidFrom:       validFrom,
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	candles, err := s.store.LoadCandles(ctx, symbol, resolutionSec, from*1000, to*1000)
	if err != nil {
		s.fail(c, fmt.Sprintf("tv/history %s: %v", symbol, err))
		return
	}

	resp := tvHistoryResponse{
		S: "ok",
		T: make([]int64, 0, len(candles)),
		O: make([]float64, 0, len(candles)),
		H: make([]float64, 0, len(candles)),
		L: make([]float64, 0, len(candles)),
		C: make([]float64, 0, len(candles)),
		V: make([]float64, 0, len(candles)),
	}
	for _, candle := range candles {
		resp.T = append(resp.T, candle.Start/1000)
		resp.O = append(resp.O, candle.Open)
		resp.H = append(resp.H, candle.High)
		resp.L = append(resp.L, candle.Low)
		resp.C = append(resp.C, candle.Close)
		resp.V = append(resp.V, candle.Volume)
	}

	c.Header("Cache-Control", "public, max-age=1")
	c.JSON(http.StatusOK, resp)
}

func (s *Server) tradesByAddress(c *gin.Context) {
	marketPk := c.Param("marketPk")

	d, ok := s.registry.ByAddress(marketPk)
	if !ok {
		c.JSON(http.StatusNotFound, addressError{S: "error", ValidPk: false})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	trades, err := s.store.LoadRecentTrades(ctx, d.Symbol, recentTradeLimit)
	if err != nil {
		s.fail(c, fmt.Sprintf("trades %s: %v", d.Symbol, err))
		return
	}

	data := make([]tradeItem, 0, len(trades))
	for _, t := range trades {
		data = append(data, tradeItem{
			Market:        d.Symbol,
			MarketAddress: marketPk,
			Price:         t.Price,
			Size:          t.Size,
			Side:          t.Side,
			Time:          t.Ts,
			OrderID:       "",
			FeeCost:       0,
		})
	}

	c.Header("Cache-Control", "public, max-age=5")
	c.JSON(http.StatusOK, tradesResponse{Success: true, Data: data})
}

// fail reports a downstream failure and answers with the generic 500 body.
func (s *Server) fail(c *gin.Context, message string) {
	s.notifier.Notify(message)
	c.JSON(http.StatusInternalServerError, genericError{S: "error"})
}
