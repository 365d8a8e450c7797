package routers

import (
	"net/http"

	"splitpocket/internal/api/handlers/groups"
)

func groupsRouter() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /groups", groups.CreateGroupHandler)
	mux.HandleFunc("POST /groups/join", groups.JoinGroupHandler)
	mux.HandleFunc("POST /groups/leave", groups.LeaveGroupHandler)
	mux.HandleFunc("POST /groups/smart-split", groups.ToggleSmartSplitHandler)
	mux.HandleFunc("GET /groups/{groupId}", groups.GetGroupByIDHandler)
	mux.HandleFunc("PUT /groups/{groupId}", groups.UpdateGroupHandler)
	mux.HandleFunc("GET /groups/{groupId}/members", groups.GetGroupMembersHandler)
	mux.HandleFunc("GET /groups/{groupId}/expenses", groups.GetGroupExpensesHandler)
	mux.HandleFunc("POST /groups/{groupId}/expenses", groups.CreateGroupExpenseHandler)
	mux.HandleFunc("GET /groups/{groupId}/users/{userId}/balance", groups.GetGroupBalanceHandler)

	return mux
}
