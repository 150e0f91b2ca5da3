package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vkarpenko/gpushare/internal/db"
	"github.com/vkarpenko/gpushare/internal/eventbus"
	"github.com/vkarpenko/gpushare/internal/finance"
	"github.com/vkarpenko/gpushare/internal/handlers"
	"github.com/vkarpenko/gpushare/internal/logger"
	"github.com/vkarpenko/gpushare/internal/repository/postgres"
	"github.com/vkarpenko/gpushare/internal/service/accrualjob"
	"github.com/vkarpenko/gpushare/internal/service/mining"
	"github.com/vkarpenko/gpushare/internal/service/position"
	"github.com/vkarpenko/gpushare/internal/service/referral"
	"github.com/vkarpenko/gpushare/internal/service/user"
	"github.com/vkarpenko/gpushare/internal/service/wallet"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	logger     logger.Logger
	accrualJob *accrualjob.Job
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	log, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	policy, err := parsePolicy(c)
	if err != nil {
		return nil, fmt.Errorf("error while parsing withdrawal policy: %w", err)
	}

	maturityDelay, err := time.ParseDuration(c.MaturityDelay)
	if err != nil {
		return nil, fmt.Errorf("error while parsing maturity delay: %w", err)
	}

	// Connect to the database and bootstrap the schema
	pool, err := db.ConnectAndEnsure(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	// Initialize repositories
	storage := postgres.NewStorage(pool)

	// Initialize services
	bus := eventbus.New(log)
	userService := user.NewService(storage.User())
	walletService := wallet.NewService(wallet.Config{
		Policy:        policy,
		MaturityDelay: maturityDelay,
	}, storage, log)
	positionService := position.NewService(storage, bus, mining.Config{
		DaysPerMonth: c.DaysPerMonth,
	}, log)
	referralLedger := referral.NewLedger(storage, log)

	// Cycle payouts land in the owner's wallet
	bus.Subscribe(eventbus.KindCycleEnded, walletService.HandleCycleEnded)

	mux := handlers.NewRouter(
		userService,
		positionService,
		walletService,
		referralLedger,
		log,
	)

	job := accrualjob.New(c.RateFeedAddr, accrualjob.Opts{}, log, positionService)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
		logger:     log,
		accrualJob: job,
	}, nil
}

func parsePolicy(c *Config) (finance.Policy, error) {
	var policy finance.Policy
	var err error

	if policy.MinWithdrawal, err = decimal.NewFromString(c.MinWithdrawal); err != nil {
		return policy, fmt.Errorf("min withdrawal: %w", err)
	}
	if policy.MaxWithdrawal, err = decimal.NewFromString(c.MaxWithdrawal); err != nil {
		return policy, fmt.Errorf("max withdrawal: %w", err)
	}
	if policy.WithdrawalCharge, err = decimal.NewFromString(c.WithdrawalCharge); err != nil {
		return policy, fmt.Errorf("withdrawal charge: %w", err)
	}

	return policy, nil
}

// Run starts the accrual job and http server, closes gracefully on context
// cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	jobDone := s.accrualJob.Process(srvCtx)

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); err == context.DeadlineExceeded {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed
	<-jobDone

	return err
}
