package routers

import (
	"net/http"

	"splitpocket/internal/api/handlers/groups"
	"splitpocket/internal/api/handlers/users"
)

func usersRouter() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /users/{userId}/groups", groups.GetMyGroupsHandler)
	mux.HandleFunc("GET /users/{userId}/profile", users.GetUserProfileHandler)
	mux.HandleFunc("PUT /users/profile", users.UpdateUserProfileHandler)

	return mux
}
