package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yieldvault/internal/ledger"
	"yieldvault/internal/vault"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"100", "100", false},
		{" 7 ", "7", false},
		{"0", "0", false},
		{"", "", true},
		{"-5", "", true},
		{"1.5", "", true},
		{"abc", "", true},
		// 2^128 needs 129 bits
		{"340282366920938463463374607431768211456", "", true},
		{"340282366920938463463374607431768211455", "340282366920938463463374607431768211455", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseAmount(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{vault.ErrInvalidInput, http.StatusBadRequest},
		{fmt.Errorf("pull: %w", ledger.ErrInsufficientAllowance), http.StatusBadRequest},
		{vault.ErrUnauthorized, http.StatusForbidden},
		{vault.ErrCapacityExceeded, http.StatusConflict},
		{vault.ErrReentrantCall, http.StatusConflict},
		{vault.ErrSlippageExceeded, http.StatusUnprocessableEntity},
		{vault.ErrInvariantViolation, http.StatusUnprocessableEntity},
		{context.Canceled, http.StatusServiceUnavailable},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
