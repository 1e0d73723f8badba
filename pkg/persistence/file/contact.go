package file

import (
	"context"
	"errors"
	"io/fs"

	"github.com/zaplane/zaplane/pkg/models"
	"github.com/zaplane/zaplane/pkg/persistence"
)

const (
	contactCollection      = "contacts"
	conversationCollection = "conversations"
)

type ContactRepository struct {
	store *store
}

func (r *ContactRepository) GetByID(_ context.Context, id string) (*models.Contact, error) {
	var contact models.Contact

	err := r.store.read(contactCollection, id, &contact)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.ErrContactNotFound
		}

		return nil, err
	}

	return &contact, nil
}

func (r *ContactRepository) GetConversation(_ context.Context, id string) (*models.Conversation, error) {
	var conversation models.Conversation

	err := r.store.read(conversationCollection, id, &conversation)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.ErrConversationNotFound
		}

		return nil, err
	}

	return &conversation, nil
}

func (r *ContactRepository) SaveContact(_ context.Context, contact *models.Contact) error {
	return r.store.write(contactCollection, contact.ID, contact)
}

func (r *ContactRepository) SaveConversation(_ context.Context, conversation *models.Conversation) error {
	return r.store.write(conversationCollection, conversation.ID, conversation)
}
