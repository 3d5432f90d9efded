package api

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/eventsite/registry/internal/extract"
	"github.com/eventsite/registry/internal/model"
)

// MetadataSource resolves a product page into price and image metadata.
type MetadataSource interface {
	Extract(ctx context.Context, url string) extract.Metadata
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(db *sql.DB, jwtSecret string, lookup MetadataSource) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret}
	usersHandler := &UsersHandler{DB: db}
	registryHandler := &RegistryHandler{DB: db}
	lookupHandler := &LookupHandler{Source: lookup}

	authMW := AuthMiddleware(jwtSecret, db)
	requireAdmin := RequireRole(model.RoleAdmin)
	requireManager := RequireRole(model.RoleManager)

	admin := func(h http.HandlerFunc) http.Handler { return authMW(requireAdmin(h)) }
	manager := func(h http.HandlerFunc) http.Handler { return authMW(requireManager(h)) }

	// Public: login.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	// Authenticated session routes.
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))

	// Public registry: guests browse and claim without logging in.
	mux.HandleFunc("GET /api/registry", registryHandler.List)
	mux.HandleFunc("GET /api/registry/{itemId}", registryHandler.Get)
	mux.HandleFunc("GET /api/registry/{itemId}/image", registryHandler.GetImage)
	mux.HandleFunc("POST /api/registry/claim/{itemId}", registryHandler.Claim)

	// Registry administration: curate (manager+), override and delete (admin).
	mux.Handle("POST /api/admin/price-lookup", manager(lookupHandler.Lookup))
	mux.Handle("POST /api/admin/registry", manager(registryHandler.Create))
	mux.Handle("PUT /api/admin/registry/{itemId}", manager(registryHandler.Update))
	mux.Handle("PUT /api/admin/registry/{itemId}/image", manager(registryHandler.UploadImage))
	mux.Handle("PUT /api/admin/registry/{itemId}/status", admin(registryHandler.SetStatus))
	mux.Handle("DELETE /api/admin/registry/{itemId}", admin(registryHandler.Delete))
	mux.Handle("GET /api/admin/registry/{itemId}/claims", admin(registryHandler.Claims))

	// Users (admin only).
	mux.Handle("GET /api/admin/users", admin(usersHandler.List))
	mux.Handle("POST /api/admin/users", admin(usersHandler.Create))
	mux.Handle("DELETE /api/admin/users/{id}", admin(usersHandler.Delete))

	return mux
}
