package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/prime/internal/domain"
)

type ListEscalationsInput struct {
	Status string `query:"status" doc:"Filter by status (OPEN, IN_REVIEW, RESOLVED)"`
	UserID string `query:"user_id" doc:"Filter by requesting user"`
}

type ListEscalationsOutput struct {
	Body []*domain.EscalationTicket
}

type GetEscalationInput struct {
	ID int64 `path:"id" doc:"Ticket ID"`
}

type GetEscalationOutput struct {
	Body *domain.EscalationTicket
}

type TransitionEscalationInput struct {
	ID   int64 `path:"id" doc:"Ticket ID"`
	Body struct {
		Status string `json:"status" minLength:"1" doc:"Target status"`
		Notes  string `json:"notes,omitempty" maxLength:"2000" doc:"Reviewer notes"`
	}
}

type TransitionEscalationOutput struct {
	Body *domain.EscalationTicket
}

func RegisterEscalationRoutes(api huma.API, queue EscalationService) {
	huma.Register(api, huma.Operation{
		OperationID: "list-escalations",
		Method:      http.MethodGet,
		Path:        "/escalations",
		Summary:     "List escalation tickets",
		Tags:        []string{"Escalations"},
	}, func(ctx context.Context, input *ListEscalationsInput) (*ListEscalationsOutput, error) {
		u, err := currentUser(ctx)
		if err != nil {
			return nil, err
		}

		filter := domain.TicketFilter{UserID: input.UserID}
		if input.Status != "" {
			filter.Status = domain.TicketStatus(input.Status)
			if !filter.Status.Valid() {
				return nil, huma.Error422UnprocessableEntity("invalid status: " + input.Status)
			}
		}

		tickets, err := queue.List(ctx, u, filter)
		if err != nil {
			return nil, toHTTPError(err, "failed to list escalations")
		}
		if tickets == nil {
			tickets = []*domain.EscalationTicket{}
		}

		return &ListEscalationsOutput{Body: tickets}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-escalation",
		Method:      http.MethodGet,
		Path:        "/escalations/{id}",
		Summary:     "Get an escalation ticket",
		Tags:        []string{"Escalations"},
	}, func(ctx context.Context, input *GetEscalationInput) (*GetEscalationOutput, error) {
		u, err := currentUser(ctx)
		if err != nil {
			return nil, err
		}

		t, err := queue.Get(ctx, u, input.ID)
		if err != nil {
			return nil, toHTTPError(err, "escalation")
		}

		return &GetEscalationOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "transition-escalation",
		Method:      http.MethodPost,
		Path:        "/escalations/{id}/transition",
		Summary:     "Move an escalation ticket to its next status",
		Tags:        []string{"Escalations"},
	}, func(ctx context.Context, input *TransitionEscalationInput) (*TransitionEscalationOutput, error) {
		u, err := currentUser(ctx)
		if err != nil {
			return nil, err
		}

		t, err := queue.Transition(ctx, input.ID, domain.TicketStatus(input.Body.Status), u, input.Body.Notes)
		if err != nil {
			return nil, toHTTPError(err, "escalation")
		}

		return &TransitionEscalationOutput{Body: t}, nil
	})
}
