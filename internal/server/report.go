package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// AgeAnalysis groups debtors by months owed. An empty bucket returns every
// bucket.
func (s *Server) AgeAnalysis(c *gin.Context) {
	resp, err := s.reportSvc.AgeAnalysis(c.Request.Context(), strings.TrimSpace(c.Query("bucket")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
