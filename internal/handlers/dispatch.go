package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/quicklink/quicklink/internal/story"
)

// DispatchHandler exposes the manual dispatch trigger.
type DispatchHandler struct {
	dispatcher *story.Dispatcher
}

// NewDispatchHandler creates a dispatch handler.
func NewDispatchHandler(dispatcher *story.Dispatcher) *DispatchHandler {
	return &DispatchHandler{dispatcher: dispatcher}
}

// Run executes one dispatch cycle and reports per-story outcomes.
func (h *DispatchHandler) Run(ctx context.Context, _ *struct{}) (*DispatchResponse, error) {
	result, err := h.dispatcher.RunCycle(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to claim due stories")
	}

	return &DispatchResponse{Body: *result}, nil
}
