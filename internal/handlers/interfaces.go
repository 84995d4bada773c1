package handlers

import (
	"context"

	"mediapool-bot/internal/delivery"
)

// Server runs one random draw and delivery.
type Server interface {
	Serve(ctx context.Context, req delivery.Request) delivery.Outcome
}

// AdminChecker tells chat admins apart from regular members.
type AdminChecker interface {
	IsAdmin(ctx context.Context, chatID, userID int64) (bool, error)
}
