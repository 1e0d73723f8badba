package web

import "github.com/zaplane/zaplane/pkg/models"

// CreateAutomationRequest is the payload for POST /automations.
type CreateAutomationRequest struct {
	Name      string             `json:"name"       validate:"required,min=1,max=120"`
	ChannelID string             `json:"channel_id" validate:"required"`
	Trigger   models.TriggerKind `json:"trigger"    validate:"required,oneof=new_conversation message_received"`
	Status    string             `json:"status"     validate:"omitempty,oneof=active inactive"`
	Nodes     []*models.FlowNode `json:"nodes"      validate:"omitempty,dive"`
	Edges     []*models.FlowEdge `json:"edges"      validate:"omitempty,dive"`
}
