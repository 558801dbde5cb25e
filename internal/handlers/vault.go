package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"cosmossdk.io/math"
	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"yieldvault/internal/ledger"
	"yieldvault/internal/middleware"
	"yieldvault/internal/vault"
)

// maxAmountBits bounds request amounts so that share math stays far below the
// 256-bit range of the accounting integers.
const maxAmountBits = 128

// StrategyFactory builds the strategy handle registered for an address.
type StrategyFactory func(addr vault.Address) (vault.Strategy, error)

// VaultHandler serves one vault and its in-process asset over HTTP.
type VaultHandler struct {
	vault       *vault.Vault
	asset       *ledger.Ledger
	newStrategy StrategyFactory
	tokens      map[vault.Address]vault.Token
	db          *gorm.DB
}

// NewVaultHandler wires the handlers. db may be nil, in which case the
// snapshot history is unavailable.
func NewVaultHandler(v *vault.Vault, asset *ledger.Ledger, newStrategy StrategyFactory, db *gorm.DB) *VaultHandler {
	return &VaultHandler{
		vault:       v,
		asset:       asset,
		newStrategy: newStrategy,
		tokens:      make(map[vault.Address]vault.Token),
		db:          db,
	}
}

// RegisterToken makes a foreign token rescuable through the admin API.
func (h *VaultHandler) RegisterToken(t vault.Token) {
	h.tokens[t.ID()] = t
}

// statusFor maps the vault error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, vault.ErrInvalidInput),
		errors.Is(err, ledger.ErrInsufficientBalance),
		errors.Is(err, ledger.ErrInsufficientAllowance),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrZeroAddress):
		return http.StatusBadRequest
	case errors.Is(err, vault.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, vault.ErrCapacityExceeded),
		errors.Is(err, vault.ErrStateConflict):
		return http.StatusConflict
	case errors.Is(err, vault.ErrSlippageExceeded),
		errors.Is(err, vault.ErrInvariantViolation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.WithError(err).WithField("path", c.FullPath()).Error("vault request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// parseAmount reads a non-negative base-10 integer amount.
func parseAmount(s string) (math.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.Int{}, errors.New("amount is required")
	}
	v, ok := math.NewIntFromString(s)
	if !ok {
		return math.Int{}, fmt.Errorf("invalid amount %q", s)
	}
	if v.IsNegative() {
		return math.Int{}, fmt.Errorf("amount %s is negative", s)
	}
	if v.BigInt().BitLen() > maxAmountBits {
		return math.Int{}, fmt.Errorf("amount %s is too large", s)
	}
	return v, nil
}

func parseAddress(s string) (vault.Address, error) {
	pk, err := solana.PublicKeyFromBase58(strings.TrimSpace(s))
	if err != nil {
		return vault.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return pk, nil
}

// parseOptionalAddress returns fallback when s is empty.
func parseOptionalAddress(s string, fallback vault.Address) (vault.Address, error) {
	if strings.TrimSpace(s) == "" {
		return fallback, nil
	}
	return parseAddress(s)
}

func caller(c *gin.Context) vault.Address {
	pk, _ := middleware.CallerFrom(c)
	return pk
}
