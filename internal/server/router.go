// Package server exposes the store over HTTP.
package server

import (
	"net/http"

	"github.com/its-mr-monday/WebDB/internal/catalog"
	"github.com/its-mr-monday/WebDB/internal/identity"
	"github.com/its-mr-monday/WebDB/internal/server/handlers"
	"github.com/its-mr-monday/WebDB/internal/server/ratelimit"
	"github.com/its-mr-monday/WebDB/internal/tables"
)

// APIPrefix is the path prefix of every API route.
const APIPrefix = "/webdb/api/v1.0"

// Services are the dependencies of the router.
type Services struct {
	Catalog  *catalog.Catalog
	Identity *identity.Service
	Engine   *tables.Engine
	// LoginLimiter limits login attempts per client IP. Nil disables it.
	LoginLimiter *ratelimit.Limiter
	// TrustProxy keys clients on X-Forwarded-For / X-Real-IP instead of the
	// connection address. Only set it behind a reverse proxy.
	TrustProxy bool
	Version    string
}

// NewRouter creates and configures the HTTP router.
func NewRouter(svc *Services) http.Handler {
	mux := http.NewServeMux()

	authHandler := handlers.NewAuthHandler(svc.Identity)
	databaseHandler := handlers.NewDatabaseHandler(svc.Catalog)
	tableHandler := handlers.NewTableHandler(svc.Engine)
	auth := AuthMiddleware(svc.Identity)

	mux.Handle("GET "+APIPrefix+"/health", Wrap(handlers.NewHealth(svc.Version)))

	login := Wrap(authHandler.Login)
	if svc.LoginLimiter != nil {
		login = RateLimit(svc.LoginLimiter, "login")(login)
	}
	mux.Handle("POST "+APIPrefix+"/login", login)

	// Catalog listing
	mux.Handle("GET "+APIPrefix+"/databases", auth(Wrap(databaseHandler.ListDatabases)))
	mux.Handle("GET "+APIPrefix+"/databases/{database}/schemas", auth(Wrap(databaseHandler.ListSchemas)))
	mux.Handle("GET "+APIPrefix+"/databases/{database}/schemas/{schema}/tables", auth(Wrap(databaseHandler.ListTables)))

	// Table documents
	mux.Handle("GET "+APIPrefix+"/select/{database}/{schema}/{table}", auth(Wrap(tableHandler.Select)))
	mux.Handle("POST "+APIPrefix+"/update/{database}/{schema}/{table}", auth(Wrap(tableHandler.Update)))
	mux.Handle("GET "+APIPrefix+"/schema/{database}/{schema}/{table}", auth(Wrap(tableHandler.Schema)))
	mux.Handle("GET "+APIPrefix+"/history/{database}/{schema}/{table}", auth(Wrap(tableHandler.History)))

	return RequestLogger(svc.TrustProxy)(mux)
}
