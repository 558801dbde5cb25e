package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"yieldvault/internal/vault"
)

type AddStrategyRequest struct {
	Address  string `json:"address" binding:"required"`
	FeeBPS   uint64 `json:"fee_bps"`
	AllocBPS uint64 `json:"alloc_bps"`
}

type BPSRequest struct {
	BPS *uint64 `json:"bps" binding:"required"`
}

type WithdrawalQueueRequest struct {
	Queue []string `json:"queue" binding:"required"`
}

type TvlCapRequest struct {
	TvlCap string `json:"tvl_cap" binding:"required"`
}

type EmergencyShutdownRequest struct {
	Active *bool `json:"active" binding:"required"`
}

type DegradationRequest struct {
	Degradation string `json:"degradation" binding:"required"`
}

type TreasuryRequest struct {
	Treasury string `json:"treasury" binding:"required"`
}

type RescueRequest struct {
	Token string `json:"token" binding:"required"`
}

// Harvest handles POST /vault/strategies/:address/harvest: the strategy
// reconciles with the vault through its own Report call.
func (h *VaultHandler) Harvest(c *gin.Context) {
	addr, err := parseAddress(c.Param("address"))
	if err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	s, ok, err := h.vault.StrategyHandle(ctx, addr)
	if err != nil {
		respondError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Strategy not found"})
		return
	}
	fee, err := s.Harvest(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	rec, _, err := h.vault.Strategy(ctx, addr)
	if err != nil {
		respondError(c, err)
		return
	}
	log.WithFields(log.Fields{"strategy": addr.String(), "caller": caller(c).String()}).Info("harvest requested")
	c.JSON(http.StatusOK, gin.H{"caller_fee": fee, "strategy": rec})
}

// AddStrategy handles POST /admin/strategies
func (h *VaultHandler) AddStrategy(c *gin.Context) {
	var req AddStrategyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	addr, err := parseAddress(req.Address)
	if err != nil {
		badRequest(c, err)
		return
	}
	if h.newStrategy == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "strategy registration is disabled"})
		return
	}
	s, err := h.newStrategy(addr)
	if err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	if err := h.vault.AddStrategy(ctx, caller(c), s, req.FeeBPS, req.AllocBPS); err != nil {
		respondError(c, err)
		return
	}
	rec, _, err := h.vault.Strategy(ctx, addr)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

// UpdateStrategyAllocBPS handles PATCH /admin/strategies/:address/alloc-bps
func (h *VaultHandler) UpdateStrategyAllocBPS(c *gin.Context) {
	h.updateStrategyBPS(c, h.vault.UpdateStrategyAllocBPS)
}

// UpdateStrategyFeeBPS handles PATCH /admin/strategies/:address/fee-bps
func (h *VaultHandler) UpdateStrategyFeeBPS(c *gin.Context) {
	h.updateStrategyBPS(c, h.vault.UpdateStrategyFeeBPS)
}

func (h *VaultHandler) updateStrategyBPS(c *gin.Context, update func(context.Context, vault.Address, vault.Address, uint64) error) {
	addr, err := parseAddress(c.Param("address"))
	if err != nil {
		badRequest(c, err)
		return
	}
	var req BPSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	if err := update(ctx, caller(c), addr, *req.BPS); err != nil {
		respondError(c, err)
		return
	}
	rec, _, err := h.vault.Strategy(ctx, addr)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// RevokeStrategy handles POST /admin/strategies/:address/revoke
func (h *VaultHandler) RevokeStrategy(c *gin.Context) {
	addr, err := parseAddress(c.Param("address"))
	if err != nil {
		badRequest(c, err)
		return
	}
	if err := h.vault.RevokeStrategy(c.Request.Context(), caller(c), addr); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Strategy revoked"})
}

// SetWithdrawalQueue handles PUT /admin/withdrawal-queue
func (h *VaultHandler) SetWithdrawalQueue(c *gin.Context) {
	var req WithdrawalQueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	queue := make([]vault.Address, 0, len(req.Queue))
	for _, raw := range req.Queue {
		addr, err := parseAddress(raw)
		if err != nil {
			badRequest(c, err)
			return
		}
		queue = append(queue, addr)
	}
	if err := h.vault.SetWithdrawalQueue(c.Request.Context(), caller(c), queue); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"withdrawal_queue": queue})
}

// UpdateWithdrawMaxLoss handles PATCH /admin/withdraw-max-loss
func (h *VaultHandler) UpdateWithdrawMaxLoss(c *gin.Context) {
	var req BPSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.vault.UpdateWithdrawMaxLoss(c.Request.Context(), caller(c), *req.BPS); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"withdraw_max_loss_bps": *req.BPS})
}

// UpdateTvlCap handles PATCH /admin/tvl-cap
func (h *VaultHandler) UpdateTvlCap(c *gin.Context) {
	var req TvlCapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	tvlCap, err := parseAmount(req.TvlCap)
	if err != nil {
		badRequest(c, err)
		return
	}
	if err := h.vault.UpdateTvlCap(c.Request.Context(), caller(c), tvlCap); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tvl_cap": tvlCap})
}

// RemoveTvlCap handles DELETE /admin/tvl-cap
func (h *VaultHandler) RemoveTvlCap(c *gin.Context) {
	if err := h.vault.RemoveTvlCap(c.Request.Context(), caller(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tvl_cap": vault.UnlimitedTVL})
}

// SetEmergencyShutdown handles POST /admin/emergency-shutdown
func (h *VaultHandler) SetEmergencyShutdown(c *gin.Context) {
	var req EmergencyShutdownRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.vault.SetEmergencyShutdown(c.Request.Context(), caller(c), *req.Active); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"emergency_shutdown": *req.Active})
}

// SetLockedProfitDegradation handles PATCH /admin/locked-profit-degradation
func (h *VaultHandler) SetLockedProfitDegradation(c *gin.Context) {
	var req DegradationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	degradation, err := parseAmount(req.Degradation)
	if err != nil {
		badRequest(c, err)
		return
	}
	if err := h.vault.SetLockedProfitDegradation(c.Request.Context(), caller(c), degradation); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"locked_profit_degradation": degradation})
}

// UpdateTreasury handles PATCH /admin/treasury
func (h *VaultHandler) UpdateTreasury(c *gin.Context) {
	var req TreasuryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	treasury, err := parseAddress(req.Treasury)
	if err != nil {
		badRequest(c, err)
		return
	}
	if err := h.vault.UpdateTreasury(c.Request.Context(), caller(c), treasury); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"treasury": treasury.String()})
}

// Rescue handles POST /admin/rescue
func (h *VaultHandler) Rescue(c *gin.Context) {
	var req RescueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	id, err := parseAddress(req.Token)
	if err != nil {
		badRequest(c, err)
		return
	}
	var token vault.Token
	if id == h.vault.Asset().ID() {
		token = h.vault.Asset()
	} else if t, ok := h.tokens[id]; ok {
		token = t
	} else {
		c.JSON(http.StatusNotFound, gin.H{"error": "Token not found"})
		return
	}
	amount, err := h.vault.InCaseTokensGetStuck(c.Request.Context(), caller(c), token)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": id.String(), "amount": amount})
}
