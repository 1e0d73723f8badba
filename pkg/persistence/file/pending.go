package file

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"

	"github.com/zaplane/zaplane/pkg/models"
	"github.com/zaplane/zaplane/pkg/persistence"
)

const pendingCollection = "pending_waits"

// PendingWaitRepository stores pending waits keyed by conversation id, one
// document each, so the registry can rebuild its index after a restart.
type PendingWaitRepository struct {
	store *store
}

func (r *PendingWaitRepository) Save(_ context.Context, wait *models.PendingWait) error {
	return r.store.write(pendingCollection, wait.ConversationID, wait)
}

func (r *PendingWaitRepository) Delete(_ context.Context, conversationID string) error {
	err := r.store.remove(pendingCollection, conversationID)
	if errors.Is(err, fs.ErrNotExist) {
		return persistence.ErrPendingWaitNotFound
	}

	return err
}

func (r *PendingWaitRepository) List(_ context.Context) ([]*models.PendingWait, error) {
	var waits []*models.PendingWait

	err := r.store.readAll(pendingCollection, func(data []byte) error {
		var wait models.PendingWait
		if err := json.Unmarshal(data, &wait); err != nil {
			return err
		}

		waits = append(waits, &wait)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return waits, nil
}
