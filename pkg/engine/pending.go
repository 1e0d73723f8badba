package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/zaplane/zaplane/pkg/models"
	"github.com/zaplane/zaplane/pkg/persistence"
)

// PendingRegistry indexes paused executions by conversation so an inbound
// message can be routed to the execution waiting on it. Every mutation is
// written through to the pending-wait store before the in-memory index
// changes, so a crash never loses a registered wait.
type PendingRegistry struct {
	mu             sync.Mutex
	byConversation map[string]*models.PendingWait
	repo           persistence.PendingWaitRepository
	logger         *slog.Logger
}

func NewPendingRegistry(repo persistence.PendingWaitRepository, logger *slog.Logger) *PendingRegistry {
	return &PendingRegistry{
		byConversation: make(map[string]*models.PendingWait),
		repo:           repo,
		logger:         logger.With("module", "pending_registry"),
	}
}

// Restore reloads the index from the durable store. Called once at startup,
// before the engine accepts traffic.
func (r *PendingRegistry) Restore(ctx context.Context) error {
	waits, err := r.repo.List(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, wait := range waits {
		r.byConversation[wait.ConversationID] = wait
	}

	if len(waits) > 0 {
		r.logger.InfoContext(ctx, "Restored pending waits", "count", len(waits))
	}

	return nil
}

// Register records a wait for the conversation. A conversation can hold at
// most one wait; a second registration returns ErrPendingConflict and leaves
// the existing wait untouched.
func (r *PendingRegistry) Register(ctx context.Context, wait *models.PendingWait) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byConversation[wait.ConversationID]; exists {
		return persistence.ErrPendingConflict
	}

	if err := r.repo.Save(ctx, wait); err != nil {
		return err
	}

	r.byConversation[wait.ConversationID] = wait

	return nil
}

// Take removes and returns the wait for the conversation, if any. Removal is
// atomic with respect to other Take calls, so two concurrent inbound messages
// cannot both resume the same execution.
func (r *PendingRegistry) Take(ctx context.Context, conversationID string) (*models.PendingWait, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	wait, ok := r.byConversation[conversationID]
	if !ok {
		return nil, persistence.ErrPendingWaitNotFound
	}

	if err := r.repo.Delete(ctx, conversationID); err != nil && !isNotFound(err) {
		return nil, err
	}

	delete(r.byConversation, conversationID)

	return wait, nil
}

// Get returns the wait for the conversation without removing it.
func (r *PendingRegistry) Get(conversationID string) (*models.PendingWait, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	wait, ok := r.byConversation[conversationID]

	return wait, ok
}

// Has reports whether the conversation currently has a registered wait.
func (r *PendingRegistry) Has(conversationID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.byConversation[conversationID]

	return ok
}

// List returns a snapshot of every registered wait.
func (r *PendingRegistry) List() []*models.PendingWait {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*models.PendingWait, 0, len(r.byConversation))
	for _, wait := range r.byConversation {
		out = append(out, wait)
	}

	return out
}

// Expired returns the waits registered more than timeout ago, without
// removing them; the sweeper takes each one individually so a resume racing
// the sweep wins.
func (r *PendingRegistry) Expired(timeout time.Duration, now time.Time) []*models.PendingWait {
	r.mu.Lock()
	defer r.mu.Unlock()

	var expired []*models.PendingWait

	for _, wait := range r.byConversation {
		if wait.OlderThan(timeout, now) {
			expired = append(expired, wait)
		}
	}

	return expired
}

func isNotFound(err error) bool {
	return err != nil && persistence.IsPendingWaitNotFound(err)
}
