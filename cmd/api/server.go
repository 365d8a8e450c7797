package main

import (
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	mw "splitpocket/internal/api/middlewares"
	"splitpocket/internal/api/routers"
	"splitpocket/internal/repositories/sqlconnect"
	"splitpocket/pkg/cron"
	"splitpocket/pkg/utils"
)

func main() {
	if err := godotenv.Load(); err != nil {
		utils.Logger.Warn("No .env file found, relying on environment")
	}
	utils.InitLogger()

	// Money fields serialize as JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true

	if err := sqlconnect.ConnectDb(); err != nil {
		utils.Logger.Fatalf("Database connection failed: %v", err)
	}

	if os.Getenv("APP_ENV") == "production" {
		cron.StartCronJob(sqlconnect.DB)
	}

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = ":5001"
	}

	jwtMiddleware := mw.MiddlewaresExcludePaths(mw.JWTMiddleware, "/health")
	secureMux := jwtMiddleware(mw.SecurityHeaders(routers.MainRouter()))

	server := &http.Server{
		Addr:    port,
		Handler: secureMux,
	}

	certFile := os.Getenv("CERT_FILE")
	keyFile := os.Getenv("KEY_FILE")

	utils.Logger.Infof("Server running on port %s", port)
	var err error
	if certFile != "" && keyFile != "" {
		err = server.ListenAndServeTLS(certFile, keyFile)
	} else {
		err = server.ListenAndServe()
	}
	if err != nil {
		utils.Logger.Fatalf("Server failed: %v", err)
	}
}
