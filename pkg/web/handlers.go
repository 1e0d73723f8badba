// Package web provides the HTTP surface: the WhatsApp webhook ingest,
// automation CRUD and pending-execution management.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/zaplane/zaplane/pkg/engine"
	"github.com/zaplane/zaplane/pkg/models"
	"github.com/zaplane/zaplane/pkg/persistence"
	"github.com/zaplane/zaplane/pkg/registry"
)

type APIHandlers struct {
	logger      *slog.Logger
	dispatcher  *engine.Dispatcher
	persistence persistence.Persistence
	validator   *validator.Validate
	registry    *registry.Registry
	verifyToken string
}

func NewAPIHandlers(
	logger *slog.Logger,
	dispatcher *engine.Dispatcher,
	p persistence.Persistence,
	validate *validator.Validate,
	reg *registry.Registry,
	verifyToken string,
) *APIHandlers {
	return &APIHandlers{
		logger:      logger.With("module", "web"),
		dispatcher:  dispatcher,
		persistence: p,
		validator:   validate,
		registry:    reg,
		verifyToken: verifyToken,
	}
}

// VerifyWebhook answers the WhatsApp Cloud API subscription handshake.
func (h *APIHandlers) VerifyWebhook(c fiber.Ctx) error {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode != "subscribe" || token != h.verifyToken {
		return c.SendStatus(fiber.StatusForbidden)
	}

	return c.SendString(challenge)
}

// ReceiveWebhook ingests inbound WhatsApp messages. Contacts and
// conversations are upserted from the payload; a first message on an unknown
// conversation fires the new_conversation trigger, every later one the
// message_received path. The provider retries non-200 responses, so ingest
// errors after parsing still return 200.
func (h *APIHandlers) ReceiveWebhook(c fiber.Ctx) error {
	var payload WebhookPayload
	if err := c.Bind().JSON(&payload); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	ctx := c.Context()

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			channelID := change.Value.Metadata.PhoneNumberID

			names := make(map[string]string, len(change.Value.Contacts))
			for _, contact := range change.Value.Contacts {
				names[contact.WaID] = contact.Profile.Name
			}

			for _, message := range change.Value.Messages {
				if err := h.ingest(ctx, channelID, message, names[message.From]); err != nil {
					h.logger.ErrorContext(ctx, "Failed to ingest webhook message",
						"message_id", message.ID,
						"from", message.From,
						"error", err)
				}
			}
		}
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *APIHandlers) ingest(ctx context.Context, channelID string, message WebhookMessage, name string) error {
	contacts := h.persistence.ContactRepository()

	contact, err := contacts.GetByID(ctx, message.From)

	switch {
	case persistence.IsContactNotFound(err):
		contact = &models.Contact{
			ID:        message.From,
			Name:      name,
			Phone:     "+" + message.From,
			ChannelID: channelID,
			CreatedAt: time.Now().UTC(),
		}
		if err := contacts.SaveContact(ctx, contact); err != nil {
			return err
		}
	case err != nil:
		return err
	}

	conversationID := message.From + ":" + channelID

	conversation, err := contacts.GetConversation(ctx, conversationID)
	isNew := false

	switch {
	case err == nil:
	case persistence.IsConversationNotFound(err):
		isNew = true
		conversation = &models.Conversation{
			ID:        conversationID,
			ContactID: contact.ID,
			ChannelID: channelID,
			CreatedAt: time.Now().UTC(),
		}
		if err := contacts.SaveConversation(ctx, conversation); err != nil {
			return err
		}
	default:
		return err
	}

	inbound := message.inboundMessage()

	if isNew {
		return h.dispatcher.HandleNewConversation(ctx, conversation, inbound)
	}

	return h.dispatcher.HandleMessageReceived(ctx, conversation, inbound)
}

// CreateAutomation validates and stores a new automation. Every node config
// is checked against its type's schema before anything is written.
func (h *APIHandlers) CreateAutomation(c fiber.Ctx) error {
	var req CreateAutomationRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	for _, node := range req.Nodes {
		if err := h.registry.ValidateConfig(node.Type, node.Config); err != nil {
			return badRequest(c, err.Error())
		}
	}

	status := models.AutomationStatus(req.Status)
	if status == "" {
		status = models.AutomationStatusActive
	}

	now := time.Now().UTC()
	automation := &models.Automation{
		ID:        uuid.New().String(),
		Name:      req.Name,
		ChannelID: req.ChannelID,
		Trigger:   req.Trigger,
		Status:    status,
		Nodes:     req.Nodes,
		Edges:     req.Edges,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.persistence.AutomationRepository().Save(c.Context(), automation); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(automation)
}

func (h *APIHandlers) GetAutomations(c fiber.Ctx) error {
	automations, err := h.persistence.AutomationRepository().List(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"automations": automations,
		"total_count": len(automations),
	})
}

func (h *APIHandlers) GetAutomation(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Automation ID is required")
	}

	automation, err := h.persistence.AutomationRepository().GetWithFlow(c.Context(), id)
	if err != nil {
		return handlePersistenceError(c, err)
	}

	return c.JSON(automation)
}

// GetPendingExecutions lists every conversation currently waiting on a user
// response.
func (h *APIHandlers) GetPendingExecutions(c fiber.Ctx) error {
	waits := h.dispatcher.GetPendingExecutions()

	return c.JSON(fiber.Map{
		"pending":     waits,
		"total_count": len(waits),
	})
}

// CancelPendingExecution aborts the execution waiting on the conversation.
func (h *APIHandlers) CancelPendingExecution(c fiber.Ctx) error {
	conversationID := c.Params("conversationId")
	if conversationID == "" {
		return badRequest(c, "Conversation ID is required")
	}

	if err := h.dispatcher.CancelExecution(c.Context(), conversationID); err != nil {
		return handlePersistenceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// GetExecutionLogs returns the audit trail of one execution.
func (h *APIHandlers) GetExecutionLogs(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	repo := h.persistence.ExecutionRepository()

	execution, err := repo.GetByID(c.Context(), id)
	if err != nil {
		if persistence.IsExecutionNotFound(err) {
			return notFound(c, "execution not found")
		}

		return internalError(c, err)
	}

	logs, err := repo.ListLogs(c.Context(), id)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"execution": execution,
		"logs":      logs,
	})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	message := "Zaplane is healthy"
	httpStatus := http.StatusOK

	if err := h.persistence.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		message = "Zaplane is unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"message":   message,
		"timestamp": time.Now().UTC(),
	})
}
