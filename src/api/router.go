package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/plaid/plaid-go/v41/plaid"

	"monii/src/handlers"
	"monii/src/ledger"
	"monii/src/middleware"
)

// NewRouter wires the API. plaidClient may be nil, in which case the bank
// feed routes are not mounted.
func NewRouter(pool *pgxpool.Pool, svc *ledger.Service, plaidClient *plaid.APIClient) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.CORSMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", handlers.Login(pool))
		r.Post("/register", handlers.Register(pool))
		if plaidClient != nil {
			r.Post("/bankfeed/webhook", handlers.BankWebhook(plaidClient, pool, svc))
		}

		// Protected routes
		r.With(middleware.JWTAuthMiddleware).Group(func(r chi.Router) {
			// Transactions: the endpoints the offline queue replays against
			r.Post("/transactions", handlers.CreateTransaction(svc))
			r.Put("/transactions/{transaction_id}", handlers.UpdateTransaction(svc))
			r.Delete("/transactions/{transaction_id}", handlers.DeleteTransaction(svc))
			r.Get("/transactions", handlers.GetTransactions(pool))

			// Snapshot sources
			r.Get("/accounts", handlers.GetAccounts(pool))
			r.Get("/categories", handlers.GetCategories(pool))
			r.Get("/summary", handlers.GetSummary(pool))

			// Budgets
			r.Post("/budgets", handlers.CreateBudget(pool))
			r.Get("/budgets", handlers.GetBudgets(svc))
			r.Put("/budgets/{budget_id}", handlers.UpdateBudget(pool))
			r.Delete("/budgets/{budget_id}", handlers.DeleteBudget(pool))
			r.Post("/budgets/reset-monthly", handlers.ResetMonthlyBudgets(svc))

			// Bank feed
			if plaidClient != nil {
				r.Post("/bankfeed/link-token", handlers.CreateLinkToken(plaidClient))
				r.Post("/bankfeed/exchange", handlers.ExchangePublicToken(plaidClient, pool))
				r.Get("/bankfeed/sync/{item_id}", handlers.SyncBankTransactions(plaidClient, pool, svc))
			}
		})
	})

	return r
}
