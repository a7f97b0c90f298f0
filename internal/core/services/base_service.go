package services

import (
	"context"
	"log/slog"

	"github.com/SscSPs/sledge/internal/core/domain"
	"github.com/SscSPs/sledge/internal/core/ports/repositories"
	"github.com/SscSPs/sledge/internal/platform/logging"
)

// BaseService provides common functionality for all services
type BaseService struct {
	Store repositories.DataStore
}

// GetLogger gets the logger from context or returns a default one
func (s *BaseService) GetLogger(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx)
}

// LogError logs an error with consistent formatting
func (s *BaseService) LogError(ctx context.Context, err error, msg string, keyvals ...any) {
	args := make([]any, 0, len(keyvals)+1)
	args = append(args, slog.String("error", err.Error()))
	args = append(args, keyvals...)
	s.GetLogger(ctx).Error(msg, args...)
}

// LogInfo logs an info message with consistent formatting
func (s *BaseService) LogInfo(ctx context.Context, msg string, keyvals ...any) {
	s.GetLogger(ctx).Info(msg, keyvals...)
}

// LogDebug logs a debug message with consistent formatting
func (s *BaseService) LogDebug(ctx context.Context, msg string, keyvals ...any) {
	s.GetLogger(ctx).Debug(msg, keyvals...)
}

// AuthorizeUser checks the store's permission table for user performing action on resource.
func (s *BaseService) AuthorizeUser(ctx context.Context, user domain.UserID, action domain.Action, resource domain.Resource) error {
	err := domain.Require(s.Store.Permissions(), user, action, resource)
	if err != nil {
		s.LogDebug(ctx, "Permission denied",
			slog.String("user_id", string(user)),
			slog.String("action", string(action)),
			slog.String("resource", string(resource)))
	}
	return err
}
