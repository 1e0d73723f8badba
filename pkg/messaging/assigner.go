package messaging

import (
	"context"
	"log/slog"

	"github.com/zaplane/zaplane/pkg/protocol"
)

// LoggingAssigner is the Assigner used when no inbox backend is wired:
// assignments are logged so operators can pick the conversation up manually.
type LoggingAssigner struct {
	Logger *slog.Logger
}

var _ protocol.Assigner = (*LoggingAssigner)(nil)

func (a *LoggingAssigner) AssignConversation(ctx context.Context, conversationID, assigneeID string) error {
	a.Logger.InfoContext(ctx, "Conversation assigned",
		"conversation_id", conversationID,
		"assignee_id", assigneeID)

	return nil
}
