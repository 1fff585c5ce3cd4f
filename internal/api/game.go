package api

import (
	"betmaster/internal/domain"     // Domain models
	"betmaster/internal/game"       // Game service
	"betmaster/internal/middleware" // Caller identity
	"net/http"                      // HTTP status codes
	"strconv"                       // String conversion

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/shopspring/decimal" // Fixed-point money
)

// PlaceBetRequest is a wager. Any client computed potential win is ignored.
type PlaceBetRequest struct {
	RoundID  uint            `json:"round_id" binding:"required"`
	BetType  domain.BetType  `json:"bet_type" binding:"required,oneof=number color size"`
	BetValue string          `json:"bet_value" binding:"required"`
	Amount   decimal.Decimal `json:"amount" binding:"required,gt=0"`
}

// PlaceBetResponse returns the bet and the balance after the debit
type PlaceBetResponse struct {
	Bet     *domain.Bet     `json:"bet"`
	Balance decimal.Decimal `json:"balance"`
}

// LatestRoundsHandler lists recent rounds, newest first
func LatestRoundsHandler(games *game.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 0 // Service default
		if l := c.Query("limit"); l != "" {
			v, err := strconv.Atoi(l)
			if err != nil || v <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
				return
			}
			limit = v
		}
		rounds, err := games.LatestRounds(c.Request.Context(), limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"rounds": rounds})
	}
}

// RoundHandler returns one round by its public number
func RoundHandler(games *game.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		number, ok := roundNumberParam(c)
		if !ok {
			return
		}
		round, err := games.RoundByNumber(c.Request.Context(), number)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, round)
	}
}

// PlaceBetHandler stakes the caller's balance on an open round
func PlaceBetHandler(games *game.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.UserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var req PlaceBetRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		bet, balance, err := games.PlaceBet(c.Request.Context(), userID, req.RoundID, req.BetType, req.BetValue, req.Amount)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, PlaceBetResponse{Bet: bet, Balance: balance})
	}
}

// MyBetsHandler returns the caller's bets, most recent first
func MyBetsHandler(games *game.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.UserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		bets, err := games.BetsForUser(c.Request.Context(), userID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"bets": bets})
	}
}

func roundNumberParam(c *gin.Context) (int64, bool) {
	number, err := strconv.ParseInt(c.Param("number"), 10, 64)
	if err != nil || number <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "round number must be a positive integer"})
		return 0, false
	}
	return number, true
}
