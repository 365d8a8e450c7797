package routers

import (
	"net/http"

	"splitpocket/internal/api/handlers/transactions"
)

func transactionsRouter() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /transactions", transactions.CreateTransactionHandler)
	// summary and user routes are registered before the generic {userId}
	// match for readability; the mux resolves by specificity either way.
	mux.HandleFunc("GET /transactions/summary/{userId}", transactions.GetTransactionSummaryHandler)
	mux.HandleFunc("DELETE /transactions/user/{userId}", transactions.DeleteAllTransactionsHandler)
	mux.HandleFunc("GET /transactions/{userId}", transactions.GetUserTransactionsHandler)
	mux.HandleFunc("PUT /transactions/{id}", transactions.UpdateTransactionHandler)
	mux.HandleFunc("DELETE /transactions/{id}", transactions.DeleteTransactionHandler)

	return mux
}
