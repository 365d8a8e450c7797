package routers

import (
	"net/http"

	"splitpocket/internal/api/handlers/notifications"
)

func notificationsRouter() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /notifications/push-token", notifications.RegisterPushTokenHandler)
	mux.HandleFunc("DELETE /notifications/push-token", notifications.UnregisterPushTokenHandler)

	return mux
}
