package routers

import (
	"net/http"

	"splitpocket/internal/api/handlers/groups"
)

func expensesRouter() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("PUT /expenses/{expenseId}", groups.UpdateGroupExpenseHandler)
	mux.HandleFunc("DELETE /expenses/{expenseId}", groups.DeleteGroupExpenseHandler)
	mux.HandleFunc("GET /expenses/{expenseId}/splits", groups.GetExpenseSplitsHandler)
	mux.HandleFunc("POST /settle", groups.SettleUpHandler)

	return mux
}
