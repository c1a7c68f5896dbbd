package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/prime/internal/domain"
)

type ListAuditInput struct {
	Kind      string `query:"kind" doc:"Filter by event kind"`
	UserID    string `query:"user_id" doc:"Filter by user"`
	RequestID string `query:"request_id" doc:"Filter by request"`
	After     uint64 `query:"after" doc:"Only events with a greater sequence number"`
	Limit     int    `query:"limit" minimum:"0" maximum:"1000" default:"100" doc:"Maximum events returned"`
}

type ListAuditOutput struct {
	Body []*domain.AuditEvent
}

func RegisterAuditRoutes(api huma.API, reader AuditQuerier) {
	huma.Register(api, huma.Operation{
		OperationID: "list-audit-events",
		Method:      http.MethodGet,
		Path:        "/audit",
		Summary:     "Query the audit log",
		Tags:        []string{"Audit"},
	}, func(ctx context.Context, input *ListAuditInput) (*ListAuditOutput, error) {
		u, err := currentUser(ctx)
		if err != nil {
			return nil, err
		}

		events, err := reader.Query(ctx, u, domain.AuditFilter{
			Kind:      domain.AuditKind(input.Kind),
			UserID:    input.UserID,
			RequestID: input.RequestID,
			AfterSeq:  input.After,
			Limit:     input.Limit,
		})
		if err != nil {
			return nil, toHTTPError(err, "failed to query audit log")
		}
		if events == nil {
			events = []*domain.AuditEvent{}
		}

		return &ListAuditOutput{Body: events}, nil
	})
}
