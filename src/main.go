package main

import (
	"log"
	"net/http"

	plaidapi "github.com/plaid/plaid-go/v41/plaid"

	"monii/src/api"
	"monii/src/config"
	"monii/src/db"
	"monii/src/ledger"
	"monii/src/notify"
	"monii/src/plaid"
)

func main() {
	cfg := config.Load()

	// Connect to database
	pool, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("DB connection failed: %v", err)
	}
	defer pool.Close()

	db.InitCache()

	notifier := notify.New(cfg.TelegramBotToken, cfg.TelegramChatID)
	svc := ledger.NewService(ledger.NewPGStore(pool), notifier)

	var plaidClient *plaidapi.APIClient
	if cfg.BankFeedEnabled() {
		plaidClient = plaid.NewPlaidClient(cfg.PlaidClientID, cfg.PlaidSecret, cfg.PlaidEnv)
	}

	// Router
	router := api.NewRouter(pool, svc, plaidClient)

	log.Println("API server running on port", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, router); err != nil {
		log.Fatal(err)
	}
}
