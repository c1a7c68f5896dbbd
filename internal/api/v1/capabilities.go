package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/prime/internal/access"
	"github.com/gosuda/prime/internal/domain"
)

type CapabilitiesOutput struct {
	Body struct {
		UserID      string              `json:"user_id"`
		Role        domain.Role         `json:"role"`
		Description string              `json:"description"`
		Permissions []domain.Permission `json:"permissions"`
		Operations  []string            `json:"operations" doc:"Operations this caller may invoke"`
	}
}

type AuthorizeOperationInput struct {
	Name string `path:"name" doc:"Operation name"`
	Body struct {
		RequestID string         `json:"request_id,omitempty" doc:"Request the call belongs to"`
		Args      map[string]any `json:"args,omitempty" doc:"Call arguments, recorded in the audit log"`
	}
}

type AuthorizeOperationOutput struct {
	Body struct {
		Operation string `json:"operation"`
		RequestID string `json:"request_id"`
		Allowed   bool   `json:"allowed"`
	}
}

func RegisterCapabilityRoutes(api huma.API, caps CapabilityService, perms PermissionLister) {
	huma.Register(api, huma.Operation{
		OperationID: "get-capabilities",
		Method:      http.MethodGet,
		Path:        "/capabilities",
		Summary:     "Describe the caller's role and the operations it may invoke",
		Tags:        []string{"Access"},
	}, func(ctx context.Context, _ *struct{}) (*CapabilitiesOutput, error) {
		u, err := currentUser(ctx)
		if err != nil {
			return nil, err
		}

		out := &CapabilitiesOutput{}
		out.Body.UserID = u.ID
		out.Body.Role = u.Role
		out.Body.Description = access.Describe(u.Role)
		out.Body.Permissions = perms.Permissions(u.Role)
		out.Body.Operations = caps.Visible(u)
		if out.Body.Permissions == nil {
			out.Body.Permissions = []domain.Permission{}
		}
		if out.Body.Operations == nil {
			out.Body.Operations = []string{}
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "authorize-operation",
		Method:      http.MethodPost,
		Path:        "/operations/{name}/authorize",
		Summary:     "Check and record that the caller may invoke an operation",
		Tags:        []string{"Access"},
	}, func(ctx context.Context, input *AuthorizeOperationInput) (*AuthorizeOperationOutput, error) {
		u, err := currentUser(ctx)
		if err != nil {
			return nil, err
		}

		requestID := input.Body.RequestID
		if requestID == "" {
			requestID = uuid.NewString()
		}

		if err := caps.AuthorizeOperation(ctx, u, input.Name, requestID, input.Body.Args); err != nil {
			return nil, toHTTPError(err, "operation "+input.Name)
		}

		out := &AuthorizeOperationOutput{}
		out.Body.Operation = input.Name
		out.Body.RequestID = requestID
		out.Body.Allowed = true
		return out, nil
	})
}
