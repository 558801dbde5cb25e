package handlers

import (
	"context"
	"fmt"
	"net/http"

	"cosmossdk.io/math"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"yieldvault/internal/vault"
)

// GetVault returns the vault summary
func (h *VaultHandler) GetVault(c *gin.Context) {
	s, err := h.vault.Summary(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// GetBalance returns the shares an address holds and what they are worth
func (h *VaultHandler) GetBalance(c *gin.Context) {
	holder, err := parseAddress(c.Param("address"))
	if err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	value, err := h.vault.MaxWithdraw(ctx, holder)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"address": holder.String(),
		"shares":  h.vault.BalanceOf(holder),
		"assets":  value,
	})
}

// Preview handles GET /vault/preview/:kind?amount=
func (h *VaultHandler) Preview(c *gin.Context) {
	amount, err := parseAmount(c.Query("amount"))
	if err != nil {
		badRequest(c, err)
		return
	}
	var fn func(context.Context, math.Int) (math.Int, error)
	switch c.Param("kind") {
	case "deposit":
		fn = h.vault.PreviewDeposit
	case "mint":
		fn = h.vault.PreviewMint
	case "withdraw":
		fn = h.vault.PreviewWithdraw
	case "redeem":
		fn = h.vault.PreviewRedeem
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown preview %q", c.Param("kind"))})
		return
	}
	out, err := fn(c.Request.Context(), amount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"amount": amount, "result": out})
}

// Max handles GET /vault/max/:kind/:address
func (h *VaultHandler) Max(c *gin.Context) {
	holder, err := parseAddress(c.Param("address"))
	if err != nil {
		badRequest(c, err)
		return
	}
	var fn func(context.Context, vault.Address) (math.Int, error)
	switch c.Param("kind") {
	case "deposit":
		fn = h.vault.MaxDeposit
	case "mint":
		fn = h.vault.MaxMint
	case "withdraw":
		fn = h.vault.MaxWithdraw
	case "redeem":
		fn = h.vault.MaxRedeem
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown limit %q", c.Param("kind"))})
		return
	}
	out, err := fn(c.Request.Context(), holder)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": holder.String(), "max": out})
}

// Convert handles GET /vault/convert/:kind?amount=
func (h *VaultHandler) Convert(c *gin.Context) {
	amount, err := parseAmount(c.Query("amount"))
	if err != nil {
		badRequest(c, err)
		return
	}
	var out math.Int
	switch c.Param("kind") {
	case "shares":
		out, err = h.vault.ConvertToShares(c.Request.Context(), amount)
	case "assets":
		out, err = h.vault.ConvertToAssets(c.Request.Context(), amount)
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown conversion %q", c.Param("kind"))})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"amount": amount, "result": out})
}

// PricePerShare returns the value of one whole share, raw and in display units
func (h *VaultHandler) PricePerShare(c *gin.Context) {
	pps, err := h.vault.PricePerFullShare(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"price_per_full_share": pps,
		"price":                displayAmount(pps, h.vault.Decimals()).String(),
		"decimals":             h.vault.Decimals(),
	})
}

// ListStrategies returns every registered strategy record
func (h *VaultHandler) ListStrategies(c *gin.Context) {
	recs, err := h.vault.Strategies(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	queue, err := h.vault.WithdrawalQueue(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": recs, "withdrawal_queue": queue})
}

// GetStrategy returns one strategy record
func (h *VaultHandler) GetStrategy(c *gin.Context) {
	addr, err := parseAddress(c.Param("address"))
	if err != nil {
		badRequest(c, err)
		return
	}
	rec, ok, err := h.vault.Strategy(c.Request.Context(), addr)
	if err != nil {
		respondError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Strategy not found"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// AvailableCapital returns the signed credit (positive) or debt (negative) of a strategy
func (h *VaultHandler) AvailableCapital(c *gin.Context) {
	addr, err := parseAddress(c.Param("address"))
	if err != nil {
		badRequest(c, err)
		return
	}
	available, err := h.vault.AvailableCapital(c.Request.Context(), addr)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"strategy": addr.String(), "available_capital": available})
}

func displayAmount(v math.Int, decimals uint8) decimal.Decimal {
	return decimal.NewFromBigInt(v.BigInt(), -int32(decimals))
}
