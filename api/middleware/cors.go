package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"github.com/ministeam/ministeam-api/pkg/config"
)

// TokenHeader carries the access token on login responses.
const TokenHeader = "X-MS-Token"

var fallbackCORSOrigins = []string{"http://localhost:5173"}

// CORS returns middleware that applies the configured allowed origin policy.
func CORS(cfg config.CORSConfig) func(http.Handler) http.Handler {
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = fallbackCORSOrigins
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", TokenHeader, "Idempotency-Key", "X-Requested-With"},
		ExposedHeaders:   []string{TokenHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
