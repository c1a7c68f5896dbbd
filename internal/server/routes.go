package server

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	"github.com/gosuda/prime/internal/access"
	v1 "github.com/gosuda/prime/internal/api/v1"
	"github.com/gosuda/prime/internal/api/ws"
	"github.com/gosuda/prime/internal/domain"
	"github.com/gosuda/prime/internal/server/middleware"
)

func registerAPIRoutes(api huma.API, deps Deps) {
	v1.RegisterRequestRoutes(api, deps.Requests)
	v1.RegisterEscalationRoutes(api, deps.Escalations)
	v1.RegisterAuditRoutes(api, deps.Audit)
	v1.RegisterCapabilityRoutes(api, deps.Access, deps.Access.Table())
}

func registerWSRoutes(r chi.Router, hub *ws.Hub, authz *access.Enforcer) {
	r.With(middleware.RequirePermission(authz, domain.PermViewAuditLog, "ws.audit")).
		Get("/audit", hub.ServeAudit)
	r.With(middleware.RequirePermission(authz, domain.PermViewEscalations, "ws.escalations")).
		Get("/escalations", hub.ServeEscalations)
}
