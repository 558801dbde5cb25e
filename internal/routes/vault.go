package routes

import (
	"github.com/gin-gonic/gin"

	"yieldvault/internal/handlers"
	"yieldvault/internal/middleware"
)

// SetupVaultRoutes registers user operations, queries and the keeper harvest
func SetupVaultRoutes(r *gin.Engine, h *handlers.VaultHandler) {
	v := r.Group("/vault")
	{
		v.GET("", h.GetVault)
		v.GET("/balance/:address", h.GetBalance)
		v.GET("/preview/:kind", h.Preview)
		v.GET("/max/:kind/:address", h.Max)
		v.GET("/convert/:kind", h.Convert)
		v.GET("/price-per-share", h.PricePerShare)
		v.GET("/strategies", h.ListStrategies)
		v.GET("/strategies/:address", h.GetStrategy)
		v.GET("/strategies/:address/available-capital", h.AvailableCapital)
		v.GET("/snapshots", h.ListSnapshots)
	}

	user := r.Group("/vault", middleware.RequireCaller())
	{
		user.POST("/deposit", h.Deposit)
		user.POST("/deposit-all", h.DepositAll)
		user.POST("/mint", h.Mint)
		user.POST("/withdraw", h.Withdraw)
		user.POST("/redeem", h.Redeem)
		user.POST("/redeem-all", h.RedeemAll)
		user.POST("/approve", h.Approve)
		user.POST("/transfer", h.Transfer)
		user.POST("/strategies/:address/harvest", h.Harvest)
	}
}

// SetupAssetRoutes registers the in-process asset endpoints
func SetupAssetRoutes(r *gin.Engine, h *handlers.VaultHandler) {
	a := r.Group("/asset")
	{
		a.GET("", h.GetAsset)
		a.GET("/balance/:address", h.GetAssetBalance)
		a.POST("/approve", middleware.RequireCaller(), h.ApproveAsset)
	}
}

// SetupAdminRoutes registers the role-checked administrative operations
func SetupAdminRoutes(r *gin.Engine, h *handlers.VaultHandler) {
	admin := r.Group("/admin", middleware.RequireCaller())
	{
		admin.POST("/strategies", h.AddStrategy)
		admin.PATCH("/strategies/:address/alloc-bps", h.UpdateStrategyAllocBPS)
		admin.PATCH("/strategies/:address/fee-bps", h.UpdateStrategyFeeBPS)
		admin.POST("/strategies/:address/revoke", h.RevokeStrategy)
		admin.PUT("/withdrawal-queue", h.SetWithdrawalQueue)
		admin.PATCH("/withdraw-max-loss", h.UpdateWithdrawMaxLoss)
		admin.PATCH("/tvl-cap", h.UpdateTvlCap)
		admin.DELETE("/tvl-cap", h.RemoveTvlCap)
		admin.POST("/emergency-shutdown", h.SetEmergencyShutdown)
		admin.PATCH("/locked-profit-degradation", h.SetLockedProfitDegradation)
		admin.PATCH("/treasury", h.UpdateTreasury)
		admin.POST("/rescue", h.Rescue)
	}
}
