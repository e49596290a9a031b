// Package httpmiddleware bundles the middleware stack shared by the
// service's HTTP listeners: security headers, request logging with
// correlation IDs, panic recovery, CORS, timeouts, and compression.
package httpmiddleware

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/unrolled/secure"

	"github.com/daracheol/lingotutor/pkg/logger"
)

// Config holds configuration for HTTP middleware application.
// Use DefaultConfig() for sensible defaults, then customize as needed.
type Config struct {
	Logger   logger.Logger   // Required for logging middleware
	CORS     *CORSConfig     // CORS configuration
	Security *secure.Options // Security headers configuration
	Timeout  time.Duration   // Request timeout duration

	// Feature flags for optional middleware
	EnableLogging     bool // Log HTTP requests (requires Logger)
	EnableRecovery    bool // Recover from panics
	EnableCORS        bool // Enable CORS headers
	EnableSecurity    bool // Add security headers
	EnableCompression bool // Compress responses
	EnableHeartbeat   bool // Add /ping health endpoint
	EnableRealIP      bool // Extract real client IP
	EnableTimeout     bool // Add request timeouts
}

// DefaultConfig returns a production-ready middleware configuration.
// Logging is disabled by default - set Logger and EnableLogging=true to enable.
func DefaultConfig() Config {
	corsConfig := DefaultCORSConfig()
	return Config{
		Logger:   nil,
		CORS:     &corsConfig,
		Security: nil, // Uses the package's header defaults
		Timeout:  60 * time.Second,

		EnableLogging:     false, // Must set Logger and enable explicitly
		EnableRecovery:    true,
		EnableCORS:        true,
		EnableSecurity:    true,
		EnableCompression: true,
		EnableHeartbeat:   true,
		EnableRealIP:      true,
		EnableTimeout:     true,
	}
}

// ApplyToRouter applies the configured middleware to a Chi router in
// execution order (first applied = outermost layer):
//
//  1. Security - Adds security headers
//  2. RealIP - Extracts real client IP
//  3. Logging - Logs HTTP requests (also assigns correlation IDs)
//  4. Recovery - Recovers from panics
//  5. CORS - Handles cross-origin requests
//  6. Timeout - Adds request timeouts
//  7. Compression - Compresses responses
//  8. Heartbeat - Adds /ping health endpoint
func ApplyToRouter(router chi.Router, config Config) {
	if config.EnableSecurity {
		router.Use(Security(config.Security))
	}

	if config.EnableRealIP {
		router.Use(middleware.RealIP)
	}

	if config.EnableLogging && config.Logger != nil {
		router.Use(config.Logger.HTTPMiddleware)
	}

	if config.EnableRecovery {
		router.Use(middleware.Recoverer)
	}

	if config.EnableCORS && config.CORS != nil {
		router.Use(CORS(*config.CORS))
	}

	if config.EnableTimeout {
		router.Use(middleware.Timeout(config.Timeout))
	}

	if config.EnableCompression {
		router.Use(middleware.Compress(5))
	}

	if config.EnableHeartbeat {
		router.Use(middleware.Heartbeat("/ping"))
	}
}
