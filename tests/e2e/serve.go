package e2e

import (
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/vkarpenko/gpushare/internal/eventbus"
	"github.com/vkarpenko/gpushare/internal/finance"
	"github.com/vkarpenko/gpushare/internal/handlers"
	"github.com/vkarpenko/gpushare/internal/logger"
	"github.com/vkarpenko/gpushare/internal/repository"
	"github.com/vkarpenko/gpushare/internal/repository/postgres"
	"github.com/vkarpenko/gpushare/internal/service/mining"
	"github.com/vkarpenko/gpushare/internal/service/position"
	"github.com/vkarpenko/gpushare/internal/service/referral"
	"github.com/vkarpenko/gpushare/internal/service/user"
	"github.com/vkarpenko/gpushare/internal/service/wallet"
	"github.com/vkarpenko/gpushare/internal/testutil"
)

type Services struct {
	UserService     *user.Service
	PositionService *position.Service
	WalletService   *wallet.Service
	ReferralLedger  *referral.Ledger
	Storage         repository.Storage
}

// TestPolicy mirrors the default withdrawal policy
var TestPolicy = finance.Policy{
	MinWithdrawal:    decimal.NewFromInt(10),
	MaxWithdrawal:    decimal.NewFromInt(10000),
	WithdrawalCharge: decimal.RequireFromString("0.02"),
}

// Create db transaction and run server with that connection (one connection cause one transaction)
// The created transaction passed to inner function: so, you can safely use testutil.WithTx with it
func ServeWithTx(dbpool *pgxpool.Pool, t *testing.T, fn func(tx pgx.Tx, srvURL string, services Services)) {
	testutil.WithTx(dbpool, t, func(tx pgx.Tx) {
		log := logger.NewNoOpLogger()
		storage := postgres.NewStorage(tx)

		// Initialize services
		bus := eventbus.New(log)
		userService := user.NewService(storage.User())
		walletService := wallet.NewService(wallet.Config{Policy: TestPolicy}, storage, log)
		positionService := position.NewService(storage, bus, mining.Config{}, log)
		referralLedger := referral.NewLedger(storage, log)

		bus.Subscribe(eventbus.KindCycleEnded, walletService.HandleCycleEnded)

		// Complete all together as router
		router := handlers.NewRouter(
			userService,
			positionService,
			walletService,
			referralLedger,
			log,
		)

		// Run http server with the router in transaction
		srv := httptest.NewServer(router)
		defer srv.Close()

		fn(tx, srv.URL, Services{
			UserService:     userService,
			PositionService: positionService,
			WalletService:   walletService,
			ReferralLedger:  referralLedger,
			Storage:         storage,
		})
	})
}
