package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/payment-kingcard/internal/app"
	"github.com/noah-isme/payment-kingcard/internal/db"
	dbgen "github.com/noah-isme/payment-kingcard/internal/db/gen"
	"github.com/noah-isme/payment-kingcard/internal/obs"
)

func main() {
	_ = godotenv.Load()
	logger := obs.NewLogger("console", "info")

	providerID := flag.String("provider", envOrDefault("KINGCARD_PROVIDER_ID", "kingcard"), "provider id")
	apiKey := flag.String("api-key", os.Getenv("KINGCARD_API_KEY"), "merchant api key")
	apiSecret := flag.String("api-secret", os.Getenv("KINGCARD_API_SECRET"), "merchant api secret")
	requestKey := flag.String("request-key", "", "purchase request key (random when empty)")
	amount := flag.String("amount", "50000", "purchase cost")
	currency := flag.String("currency", "VND", "purchase currency")
	purchasable := flag.String("purchasable", "membership", "purchasable type")
	migrate := flag.Bool("migrate", true, "apply migrations first")
	flag.Parse()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal().Msg("DATABASE_URL is not set")
	}
	if *apiKey == "" || *apiSecret == "" {
		logger.Fatal().Msg("api key and secret are required")
	}
	cost, err := decimal.NewFromString(*amount)
	if err != nil || !cost.IsPositive() {
		logger.Fatal().Str("amount", *amount).Msg("amount must be a positive decimal")
	}
	if *requestKey == "" {
		*requestKey = uuid.NewString()
	}

	if *migrate {
		if err := db.Up(dbURL); err != nil {
			logger.Fatal().Err(err).Msg("apply migrations")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := app.NewPool(ctx, dbURL, "payment-kingcard-seeder")
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	q := dbgen.New(pool)
	profileID, err := q.CreatePaymentProfile(ctx, dbgen.CreatePaymentProfileParams{
		ProviderID: *providerID,
		Title:      "kingcard.online",
		ApiKey:     *apiKey,
		ApiSecret:  *apiSecret,
		LiveMode:   false,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("create payment profile")
	}

	if err := q.CreatePurchaseRequest(ctx, dbgen.CreatePurchaseRequestParams{
		RequestKey:       *requestKey,
		PaymentProfileID: profileID,
		ProviderID:       *providerID,
		CostAmount:       cost.Round(2),
		CostCurrency:     *currency,
		PurchasableType:  *purchasable,
	}); err != nil {
		logger.Fatal().Err(err).Msg("create purchase request")
	}

	logger.Info().
		Int64("payment_profile_id", profileID).
		Str("request_key", *requestKey).
		Str("cost", cost.StringFixed(2)).
		Msg("seeding completed")
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
