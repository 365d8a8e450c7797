package routers

import (
	"net/http"

	"splitpocket/pkg/utils"
)

// MainRouter assembles the per-resource sub-routers into the API surface.
func MainRouter() *http.ServeMux {
	gRouter := groupsRouter()
	eRouter := expensesRouter()
	uRouter := usersRouter()
	tRouter := transactionsRouter()
	nRouter := notificationsRouter()

	mux := http.NewServeMux()
	mux.Handle("/groups", gRouter)
	mux.Handle("/groups/", gRouter)
	mux.Handle("/expenses/", eRouter)
	mux.Handle("/settle", eRouter)
	mux.Handle("/users/", uRouter)
	mux.Handle("/transactions", tRouter)
	mux.Handle("/transactions/", tRouter)
	mux.Handle("/notifications/", nRouter)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJSON(w, map[string]string{"status": "ok"})
	})

	return mux
}
