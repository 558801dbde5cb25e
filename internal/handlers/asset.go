package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// AssetApproveRequest lets a holder approve a spender on the asset. The
// spender defaults to the vault.
type AssetApproveRequest struct {
	Spender string `json:"spender"`
	Amount  string `json:"amount" binding:"required"`
}

// GetAsset describes the in-process asset
func (h *VaultHandler) GetAsset(c *gin.Context) {
	if h.asset == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Asset not served"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":           h.asset.ID().String(),
		"name":         h.asset.Name(),
		"symbol":       h.asset.Symbol(),
		"decimals":     h.asset.Decimals(),
		"total_supply": h.asset.TotalSupply(),
	})
}

// GetAssetBalance returns an address's asset balance and its allowance to the vault
func (h *VaultHandler) GetAssetBalance(c *gin.Context) {
	if h.asset == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Asset not served"})
		return
	}
	holder, err := parseAddress(c.Param("address"))
	if err != nil {
		badRequest(c, err)
		return
	}
	balance := h.asset.BalanceOf(holder)
	c.JSON(http.StatusOK, gin.H{
		"address":         holder.String(),
		"balance":         balance,
		"balance_display": displayAmount(balance, h.asset.Decimals()).String(),
		"vault_allowance": h.asset.Allowance(holder, h.vault.Address()),
	})
}

// ApproveAsset handles POST /asset/approve
func (h *VaultHandler) ApproveAsset(c *gin.Context) {
	if h.asset == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Asset not served"})
		return
	}
	var req AssetApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	spender, err := parseOptionalAddress(req.Spender, h.vault.Address())
	if err != nil {
		badRequest(c, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		badRequest(c, err)
		return
	}
	if err := h.asset.Approve(caller(c), spender, amount); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"spender": spender.String(), "allowance": h.asset.Allowance(caller(c), spender)})
}
