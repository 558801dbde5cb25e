package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"yieldvault/internal/vault"
)

// AmountRequest is the body of deposit, mint, withdraw and redeem calls.
// Receiver and owner default to the caller.
type AmountRequest struct {
	Amount   string `json:"amount" binding:"required"`
	Receiver string `json:"receiver"`
	Owner    string `json:"owner"`
}

// ShareMoveRequest is the body of share transfers and approvals.
type ShareMoveRequest struct {
	To     string `json:"to" binding:"required"`
	Amount string `json:"amount" binding:"required"`
}

func (h *VaultHandler) bindAmount(c *gin.Context) (AmountRequest, vault.Address, vault.Address, bool) {
	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return req, vault.Address{}, vault.Address{}, false
	}
	who := caller(c)
	receiver, err := parseOptionalAddress(req.Receiver, who)
	if err != nil {
		badRequest(c, err)
		return req, vault.Address{}, vault.Address{}, false
	}
	owner, err := parseOptionalAddress(req.Owner, who)
	if err != nil {
		badRequest(c, err)
		return req, vault.Address{}, vault.Address{}, false
	}
	return req, receiver, owner, true
}

// Deposit handles POST /vault/deposit
func (h *VaultHandler) Deposit(c *gin.Context) {
	req, receiver, _, ok := h.bindAmount(c)
	if !ok {
		return
	}
	assets, err := parseAmount(req.Amount)
	if err != nil {
		badRequest(c, err)
		return
	}
	out, err := h.vault.Deposit(c.Request.Context(), caller(c), assets, receiver)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// DepositAll handles POST /vault/deposit-all
func (h *VaultHandler) DepositAll(c *gin.Context) {
	out, err := h.vault.DepositAll(c.Request.Context(), caller(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Mint handles POST /vault/mint
func (h *VaultHandler) Mint(c *gin.Context) {
	req, receiver, _, ok := h.bindAmount(c)
	if !ok {
		return
	}
	shares, err := parseAmount(req.Amount)
	if err != nil {
		badRequest(c, err)
		return
	}
	out, err := h.vault.Mint(c.Request.Context(), caller(c), shares, receiver)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Withdraw handles POST /vault/withdraw
func (h *VaultHandler) Withdraw(c *gin.Context) {
	req, receiver, owner, ok := h.bindAmount(c)
	if !ok {
		return
	}
	assets, err := parseAmount(req.Amount)
	if err != nil {
		badRequest(c, err)
		return
	}
	out, err := h.vault.Withdraw(c.Request.Context(), caller(c), assets, receiver, owner)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Redeem handles POST /vault/redeem
func (h *VaultHandler) Redeem(c *gin.Context) {
	req, receiver, owner, ok := h.bindAmount(c)
	if !ok {
		return
	}
	shares, err := parseAmount(req.Amount)
	if err != nil {
		badRequest(c, err)
		return
	}
	out, err := h.vault.Redeem(c.Request.Context(), caller(c), shares, receiver, owner)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// RedeemAll handles POST /vault/redeem-all
func (h *VaultHandler) RedeemAll(c *gin.Context) {
	out, err := h.vault.RedeemAll(c.Request.Context(), caller(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Transfer handles POST /vault/transfer
func (h *VaultHandler) Transfer(c *gin.Context) {
	var req ShareMoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	to, err := parseAddress(req.To)
	if err != nil {
		badRequest(c, err)
		return
	}
	shares, err := parseAmount(req.Amount)
	if err != nil {
		badRequest(c, err)
		return
	}
	if err := h.vault.Transfer(c.Request.Context(), caller(c), to, shares); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": h.vault.BalanceOf(caller(c))})
}

// Approve handles POST /vault/approve
func (h *VaultHandler) Approve(c *gin.Context) {
	var req ShareMoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	spender, err := parseAddress(req.To)
	if err != nil {
		badRequest(c, err)
		return
	}
	shares, err := parseAmount(req.Amount)
	if err != nil {
		badRequest(c, err)
		return
	}
	if err := h.vault.Approve(c.Request.Context(), caller(c), spender, shares); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"allowance": h.vault.Allowance(caller(c), spender)})
}
