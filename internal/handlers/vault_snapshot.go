package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"yieldvault/internal/models"
)

// ListSnapshots handles GET /vault/snapshots?page=&page_size=
func (h *VaultHandler) ListSnapshots(c *gin.Context) {
	if h.db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "snapshot history requires a database"})
		return
	}

	page := 1
	if p := c.Query("page"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil && parsed > 0 {
			page = parsed
		}
	}

	pageSize := 10
	if ps := c.Query("page_size"); ps != "" {
		if parsed, err := strconv.Atoi(ps); err == nil && parsed > 0 && parsed <= 100 {
			pageSize = parsed
		}
	}

	offset := (page - 1) * pageSize
	vaultAddr := h.vault.Address().String()

	var total int64
	if err := h.db.Model(&models.VaultSnapshot{}).Where("vault = ?", vaultAddr).Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var snapshots []models.VaultSnapshot
	if err := h.db.Preload("Strategies").
		Where("vault = ?", vaultAddr).
		Order("taken_at desc").
		Offset(offset).Limit(pageSize).
		Find(&snapshots).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	totalPages := (total + int64(pageSize) - 1) / int64(pageSize)

	c.JSON(http.StatusOK, gin.H{
		"data": snapshots,
		"pagination": gin.H{
			"current_page": page,
			"page_size":    pageSize,
			"total_pages":  totalPages,
			"total_count":  total,
			"has_next":     page < int(totalPages),
			"has_prev":     page > 1,
		},
	})
}
