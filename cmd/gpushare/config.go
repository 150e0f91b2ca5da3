package main

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/vkarpenko/gpushare/internal/logger"
)

const (
	defaultListenAddr       = "localhost:8000"
	defaultLoggingLevel     = logger.LevelInfo
	defaultRateFeedAddr     = "localhost:3000"
	defaultEnvironment      = logger.EnvProduction
	defaultMinWithdrawal    = "10"
	defaultMaxWithdrawal    = "10000"
	defaultWithdrawalCharge = "0.02"
	defaultMaturityDelay    = "72h"
	defaultDaysPerMonth     = 30
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the gpushare service will be run
	ListenAddr string

	// Reward rate feed address to connect to
	RateFeedAddr string

	// Database to connect to
	DatabaseDSN string

	// Withdrawal policy: bounds checked against the gross amount, charge is
	// a fraction of it
	MinWithdrawal    string
	MaxWithdrawal    string
	WithdrawalCharge string

	// Holding period for cycle payouts before funds may be withdrawn
	MaturityDelay string

	// Simulated days per accrual month
	DaysPerMonth int

	// Environment
	Environment string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:         defaultLoggingLevel,
		ListenAddr:       defaultListenAddr,
		RateFeedAddr:     defaultRateFeedAddr,
		Environment:      defaultEnvironment,
		MinWithdrawal:    defaultMinWithdrawal,
		MaxWithdrawal:    defaultMaxWithdrawal,
		WithdrawalCharge: defaultWithdrawalCharge,
		MaturityDelay:    defaultMaturityDelay,
		DaysPerMonth:     defaultDaysPerMonth,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		c.LoadEnv(func(key string) string {
			return envMap[key]
		})
		return nil
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) {
		return func(value string) {
			if value != "" {
				*o = value
			}
		}
	}
	setInt := func(o *int) func(value string) {
		return func(value string) {
			if parsed, err := strconv.Atoi(value); err == nil {
				*o = parsed
			}
		}
	}

	envMap := map[string]func(string){
		"RUN_ADDRESS":       setString(&c.ListenAddr),
		"DATABASE_URI":      setString(&c.DatabaseDSN),
		"LOG_LEVEL":         setString(&c.LogLevel),
		"RATE_FEED_ADDRESS": setString(&c.RateFeedAddr),
		"ENVIRONMENT":       setString(&c.Environment),
		"MIN_WITHDRAWAL":    setString(&c.MinWithdrawal),
		"MAX_WITHDRAWAL":    setString(&c.MaxWithdrawal),
		"WITHDRAWAL_CHARGE": setString(&c.WithdrawalCharge),
		"MATURITY_DELAY":    setString(&c.MaturityDelay),
		"DAYS_PER_MONTH":    setInt(&c.DaysPerMonth),
	}

	for key, parseFn := range envMap {
		parseFn(getenv(key))
	}
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("gpushare", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.RateFeedAddr, "ratefeed", "r", c.RateFeedAddr, "Reward rate feed address")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.StringVar(&c.MinWithdrawal, "min-withdrawal", c.MinWithdrawal, "Minimum gross withdrawal amount")
	fs.StringVar(&c.MaxWithdrawal, "max-withdrawal", c.MaxWithdrawal, "Maximum gross withdrawal amount")
	fs.StringVar(&c.WithdrawalCharge, "withdrawal-charge", c.WithdrawalCharge, "Withdrawal charge fraction")
	fs.StringVar(&c.MaturityDelay, "maturity-delay", c.MaturityDelay, "Payout holding period, e.g. 72h")
	fs.IntVar(&c.DaysPerMonth, "days-per-month", c.DaysPerMonth, "Simulated days per accrual month")

	return fs.Parse(args)
}
