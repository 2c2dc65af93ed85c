package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/winora/internal/config"
	"github.com/example/winora/internal/handlers"
	"github.com/example/winora/internal/middleware"
	"github.com/example/winora/internal/services"
)

// Register wires up all HTTP routes.
func Register(app *fiber.App, db *gorm.DB, cfg *config.Config) {
	telegramService := services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat)
	creditExpiry := time.Duration(cfg.CreditExpiryDays) * 24 * time.Hour

	g2payService := services.NewG2PayService(cfg.G2PayMerchantID, cfg.G2PaySecretKey, cfg.G2PayCheckoutURL)
	reconcileService := services.NewReconcileService(db, telegramService, cfg.ReferralBonus, creditExpiry)
	cartService := services.NewCartService(db, cfg.PriceDriftTolerance)
	walletService := services.NewWalletService(db)
	drawService := services.NewDrawService(db, telegramService, creditExpiry)
	referralService := services.NewReferralService(db, cfg.ReferralTTLDays)

	authHandler := handlers.NewAuthHandler(db, cfg)
	competitionHandler := handlers.NewCompetitionHandler(db)
	orderHandler := handlers.NewOrderHandler(db, cartService, g2payService, walletService, reconcileService)
	g2payHandler := handlers.NewG2PayHandler(db, g2payService, reconcileService)
	ticketHandler := handlers.NewTicketHandler(db)
	walletHandler := handlers.NewWalletHandler(walletService)
	profileHandler := handlers.NewProfileHandler(db, referralService)
	adminHandler := handlers.NewAdminHandler(db, drawService, walletService)

	api := app.Group("/api")

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)

	// Public storefront
	competitions := api.Group("/competitions")
	competitions.Get("/", competitionHandler.ListCompetitions)
	competitions.Get("/:id", competitionHandler.GetCompetition)

	// Gateway callbacks (no auth; signature-verified)
	g2pay := api.Group("/g2pay")
	g2pay.Post("/callback", g2payHandler.Callback)
	g2pay.Post("/webhook", g2payHandler.Webhook)

	// Protected routes
	protected := api.Group("", middleware.AuthMiddleware(cfg))

	protected.Post("/cart/validate", orderHandler.ValidateCart)
	protected.Post("/checkout", orderHandler.Checkout)
	protected.Get("/orders", orderHandler.ListOrders)
	protected.Get("/orders/:id", orderHandler.GetOrder)
	protected.Post("/orders/:id/cancel", orderHandler.CancelOrder)

	protected.Get("/tickets", ticketHandler.ListTickets)
	protected.Post("/tickets/:id/reveal", ticketHandler.Reveal)

	wallet := protected.Group("/wallet")
	wallet.Get("/balance", walletHandler.GetBalance)
	wallet.Get("/credits", walletHandler.ListCredits)
	wallet.Get("/transactions", walletHandler.ListTransactions)
	wallet.Post("/withdrawals", walletHandler.RequestWithdrawal)
	wallet.Get("/withdrawals", walletHandler.ListWithdrawals)

	protected.Get("/profile", profileHandler.GetProfile)
	protected.Put("/profile", profileHandler.UpdateProfile)
	protected.Get("/profile/referral-code", profileHandler.GetReferralCode)
	protected.Post("/profile/referral", profileHandler.ClaimReferral)

	// Admin routes
	admin := protected.Group("/admin", middleware.AdminOnly())
	admin.Get("/stats", adminHandler.DashboardStats)
	admin.Get("/orders", adminHandler.ListAllOrders)
	admin.Get("/payment-events", g2payHandler.ListEvents)
	admin.Post("/competitions", competitionHandler.CreateCompetition)
	admin.Put("/competitions/:id", competitionHandler.UpdateCompetition)
	admin.Post("/competitions/:id/prizes", competitionHandler.CreatePrize)
	admin.Post("/competitions/:id/instant-wins", competitionHandler.CreateInstantWin)
	admin.Post("/competitions/:id/draw", adminHandler.ExecuteDraw)
	admin.Get("/draws/:id/verify", adminHandler.VerifyDraw)
	admin.Post("/payouts/run", adminHandler.ProcessPayouts)
	admin.Put("/withdrawals/:id", adminHandler.ReviewWithdrawal)
	admin.Get("/files/usage", adminHandler.CheckFileUsage)
}
