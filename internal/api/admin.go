package api

import (
	"betmaster/internal/account"    // Account service
	"betmaster/internal/domain"     // Domain models
	"betmaster/internal/game"       // Game service
	"betmaster/internal/middleware" // Caller identity
	"net/http"                      // HTTP status codes
	"strconv"                       // String conversion
	"strings"                       // String manipulation

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/shopspring/decimal" // Fixed-point money
)

// SetBalanceRequest overrides a user's balance
type SetBalanceRequest struct {
	Balance *decimal.Decimal `json:"balance" binding:"required"`
}

// SetStatusRequest changes whether a user may play
type SetStatusRequest struct {
	Status domain.UserStatus `json:"status" binding:"required,oneof=active banned pending"`
}

// SettleRoundRequest carries the drawn number. Color and size are optional and must agree with it.
type SettleRoundRequest struct {
	Result      *int         `json:"result" binding:"required,min=0,max=9"`
	ResultColor domain.Color `json:"result_color"`
	ResultSize  domain.Size  `json:"result_size"`
}

// ListUsersHandler returns every user with balance and status
func ListUsersHandler(accounts *account.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := accounts.ListUsers(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"users": users, "total": len(users)})
	}
}

// ListTransactionsHandler pages through the global ledger, optionally filtered by user and type
func ListTransactionsHandler(accounts *account.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		page := 1      // Default page number
		pageSize := 20 // Default page size
		if p := c.Query("page"); p != "" {
			if v, err := strconv.Atoi(p); err == nil && v > 0 {
				page = v
			}
		}
		if ps := c.Query("page_size"); ps != "" {
			if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
				pageSize = v
			}
		}
		filter := domain.TransactionFilter{Limit: pageSize, Offset: (page - 1) * pageSize}
		if uid := c.Query("user_id"); uid != "" {
			v, err := strconv.ParseUint(uid, 10, 64)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "user_id must be a positive integer"})
				return
			}
			id := uint(v)
			filter.UserID = &id
		}
		if t := c.Query("type"); t != "" {
			txType := domain.TransactionType(strings.ToLower(t))
			filter.Type = &txType
		}

		txs, total, err := accounts.ListTransactions(c.Request.Context(), filter)
		if err != nil {
			respondError(c, err)
			return
		}
		totalPages := (int(total) + pageSize - 1) / pageSize
		c.JSON(http.StatusOK, gin.H{
			"transactions": txs,
			"page":         page,
			"page_size":    pageSize,
			"total":        total,
			"total_pages":  totalPages,
		})
	}
}

// UserTransactionsHandler returns one user's full ledger
func UserTransactionsHandler(accounts *account.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := userIDParam(c)
		if !ok {
			return
		}
		txs, err := accounts.TransactionsForUser(c.Request.Context(), userID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"transactions": txs})
	}
}

// SetBalanceHandler overrides a balance and records the difference in the ledger
func SetBalanceHandler(accounts *account.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		adminID, _ := middleware.UserID(c)
		userID, ok := userIDParam(c)
		if !ok {
			return
		}
		var req SetBalanceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		user, err := accounts.AdminSetBalance(c.Request.Context(), adminID, userID, *req.Balance)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

// SetStatusHandler bans, suspends or reactivates a user
func SetStatusHandler(accounts *account.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		adminID, _ := middleware.UserID(c)
		userID, ok := userIDParam(c)
		if !ok {
			return
		}
		var req SetStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		user, err := accounts.AdminSetStatus(c.Request.Context(), adminID, userID, req.Status)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

// OpenRoundHandler opens the next round if none is open
func OpenRoundHandler(games *game.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		round, created, err := games.EnsureOpenRound(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		c.JSON(status, gin.H{"round": round, "created": created})
	}
}

// SettleRoundHandler records a result and pays out the round's bets
func SettleRoundHandler(games *game.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		number, ok := roundNumberParam(c)
		if !ok {
			return
		}
		var req SettleRoundRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		if _, err := domain.VerifyOutcome(*req.Result, req.ResultColor, req.ResultSize); err != nil {
			respondError(c, err)
			return
		}
		st, err := games.SettleRound(c.Request.Context(), number, *req.Result)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, st)
	}
}

// ResumeRoundHandler finishes paying out a settled round whose sweep was interrupted
func ResumeRoundHandler(games *game.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		number, ok := roundNumberParam(c)
		if !ok {
			return
		}
		st, err := games.ResumeRound(c.Request.Context(), number)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, st)
	}
}

// ReconcileHandler settles bets left pending on already settled rounds
func ReconcileHandler(games *game.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := games.Reconcile(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"bets_settled": n})
	}
}

func userIDParam(c *gin.Context) (uint, bool) {
	v, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || v == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user id must be a positive integer"})
		return 0, false
	}
	return uint(v), true
}
