package handler

import (
	"encoding/json"
	"time"

	"github.com/99minutos/user-management/internal/core/domain"
)

type createUserRequest struct {
	Email    string `json:"email"    validate:"required,email,max=255"`
	Username string `json:"username" validate:"required,max=255"`
	Password string `json:"password" validate:"required,max=72"`
	Role     string `json:"role"     validate:"omitempty,role"`
}

// updateMeRequest keeps role as raw JSON so that any mention of the key,
// null included, can be detected.
type updateMeRequest struct {
	Email    *string         `json:"email"     validate:"omitempty,email,max=255"`
	Username *string         `json:"username"  validate:"omitempty,min=1,max=255"`
	Password *string         `json:"password"  validate:"omitempty,min=1,max=72"`
	IsActive *bool           `json:"is_active"`
	Role     json.RawMessage `json:"role"      swaggertype:"string"`
}

type changeRoleRequest struct {
	Role string `json:"role" validate:"required,role"`
}

type listUsersQuery struct {
	Skip  int `query:"skip"  validate:"min=0"`
	Limit int `query:"limit" validate:"min=0,max=100"`
}

type userResponse struct {
	ID        int64       `json:"id"`
	Email     string      `json:"email"`
	Username  string      `json:"username"`
	IsActive  bool        `json:"is_active"`
	Role      domain.Role `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt *time.Time  `json:"updated_at"`
}

// envelopeResponse is the {success, message, data} wrapper used by delete.
type envelopeResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Data    *userResponse `json:"data,omitempty"`
}

type permissionsResponse struct {
	TargetID  int64                      `json:"target_id"`
	Decisions map[string]domain.Decision `json:"decisions"`
}

type auditEventResponse struct {
	ID         string    `json:"id"`
	Action     string    `json:"action"`
	ActorID    int64     `json:"actor_id"`
	TargetID   int64     `json:"target_id"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func toUserResponse(u *domain.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		IsActive:  u.IsActive,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func toUserResponses(users []*domain.User) []userResponse {
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	return out
}

func toAuditEventResponses(events []*domain.AuditEvent) []auditEventResponse {
	out := make([]auditEventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, auditEventResponse{
			ID:         e.ID,
			Action:     string(e.Action),
			ActorID:    e.ActorID,
			TargetID:   e.TargetID,
			Detail:     e.Detail,
			OccurredAt: e.OccurredAt,
		})
	}
	return out
}
