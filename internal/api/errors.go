package api

import (
	"betmaster/internal/svcerr" // Error taxonomy
	"net/http"                  // HTTP status codes

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Structured logging
)

// respondError maps service errors to HTTP responses in one place
func respondError(c *gin.Context, err error) {
	switch {
	case svcerr.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case svcerr.IsInsufficientFunds(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Insufficient funds"})
	case svcerr.IsUnauthorized(err):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
	case svcerr.IsForbidden(err):
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
	case svcerr.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case svcerr.IsAlreadySettled(err):
		c.JSON(http.StatusConflict, gin.H{"error": "Round already settled"})
	case svcerr.IsRoundNotOpen(err):
		c.JSON(http.StatusConflict, gin.H{"error": "Round is not open for bets"})
	case svcerr.IsConflict(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		logrus.WithFields(logrus.Fields{
			"path":  c.FullPath(),
			"error": err.Error(),
		}).Error("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// badRequest answers a binding failure
func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
}
