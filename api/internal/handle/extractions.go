package handle

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-kit/log/level"
)

func (h *Handle) Extractions(c *gin.Context) {
	if h.journal == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "journal is disabled"})
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	rows, err := h.journal.Recent(c.Request.Context(), limit)
	if err != nil {
		_ = level.Error(h.logger).Log("msg", "journal read failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "journal read failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": rows})
}
