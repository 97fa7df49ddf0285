package main

import (
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"dental-clinic-backend/internal/adapters/auth/jwtauth"
	"dental-clinic-backend/internal/platform/logger"
	"dental-clinic-backend/internal/ports/auth"
	"dental-clinic-backend/internal/router"
)

func main() {
	// .env opcional; en producción las vars vienen del entorno.
	_ = godotenv.Load()

	log := logger.NewFromEnv()

	addr := ":8080"
	if v := os.Getenv("PORT"); v != "" {
		addr = ":" + v
	}

	var (
		verifier auth.AuthVerifier
		issuer   *jwtauth.Issuer
	)
	if secret := os.Getenv("AUTH_JWT_SECRET"); secret != "" {
		verifier = jwtauth.NewVerifier(secret)
		issuer = jwtauth.NewIssuer(secret, 12*time.Hour)
	} else {
		// Sin secret: modo dev con headers X-Debug-* y login deshabilitado.
		log.Warn("AUTH_JWT_SECRET no configurado, auth en modo dev", nil)
	}

	r := router.NewRouter(router.Options{
		AuthVerifier: verifier,
		TokenIssuer:  issuer,
		Log:          log,
	})

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	log.Info("starting server", map[string]any{"addr": addr})
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
}
