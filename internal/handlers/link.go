package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/quicklink/quicklink/internal/analytics"
	"github.com/quicklink/quicklink/internal/link"
	"github.com/quicklink/quicklink/internal/messaging"
	"github.com/quicklink/quicklink/internal/metrics"
	"go.uber.org/zap"
)

const defaultRedirectDelay = 3

// insertAttempts bounds retries when a generated code loses the
// check-then-insert race to a concurrent writer.
const insertAttempts = 3

// LinkHandler handles link creation, resolution, and analytics reads.
type LinkHandler struct {
	store          link.Repository
	allocator      *link.Allocator
	ledger         *link.Ledger
	baseURL        string
	publishCreated messaging.Publish[analytics.LinkCreatedEvent]
	publishVisited messaging.Publish[analytics.LinkVisitedEvent]
	logger         *zap.Logger
	metrics        *metrics.Metrics
}

// NewLinkHandler creates a link handler.
func NewLinkHandler(
	store link.Repository,
	allocator *link.Allocator,
	ledger *link.Ledger,
	baseURL string,
	publishCreated messaging.Publish[analytics.LinkCreatedEvent],
	publishVisited messaging.Publish[analytics.LinkVisitedEvent],
	logger *zap.Logger,
	m *metrics.Metrics,
) *LinkHandler {
	return &LinkHandler{
		store:          store,
		allocator:      allocator,
		ledger:         ledger,
		baseURL:        baseURL,
		publishCreated: publishCreated,
		publishVisited: publishVisited,
		logger:         logger,
		metrics:        m,
	}
}

// CreateLink mints one short link.
func (h *LinkHandler) CreateLink(ctx context.Context, req *CreateLinkRequest) (*CreateLinkResponse, error) {
	created, err := h.createOne(ctx, req.Body)
	if err != nil {
		return nil, h.mapCreateError(err)
	}

	h.emitCreated(ctx, created)

	resp := &CreateLinkResponse{Body: h.payload(created)}
	resp.Headers.Location = resp.Body.ShortURL

	return resp, nil
}

// BulkCreateLinks mints up to 100 links, reporting per-item outcomes. One
// item's failure never aborts the rest.
func (h *LinkHandler) BulkCreateLinks(ctx context.Context, req *BulkCreateLinksRequest) (*BulkCreateLinksResponse, error) {
	resp := &BulkCreateLinksResponse{}
	resp.Body.Links = make([]LinkPayload, 0, len(req.Body.Links))
	resp.Body.Errors = []BulkItemError{}

	for i, spec := range req.Body.Links {
		created, err := h.createOne(ctx, spec)
		if err != nil {
			resp.Body.Failed++
			resp.Body.Errors = append(resp.Body.Errors, BulkItemError{Index: i, Error: err.Error()})

			continue
		}

		h.emitCreated(ctx, created)

		resp.Body.Created++
		resp.Body.Links = append(resp.Body.Links, h.payload(created))
	}

	return resp, nil
}

// createOne validates a spec, allocates a code, and inserts the link. A
// lost allocation race on a generated code retries with a fresh candidate;
// a taken custom code is surfaced to the caller.
func (h *LinkHandler) createOne(ctx context.Context, spec NewLinkSpec) (*link.Link, error) {
	if err := validateDestination(spec.URL); err != nil {
		return nil, err
	}

	delay := spec.RedirectDelay
	if delay == 0 {
		delay = defaultRedirectDelay
	}

	for attempt := 0; attempt < insertAttempts; attempt++ {
		code, err := h.allocator.Allocate(ctx, spec.CustomCode)
		if err != nil {
			return nil, err
		}

		l := &link.Link{
			ID:            uuid.NewString(),
			ShortCode:     code,
			OriginalURL:   spec.URL,
			Title:         spec.Title,
			IsAffiliate:   spec.IsAffiliate,
			RedirectDelay: delay,
			CreatedAt:     time.Now().UTC(),
			IsActive:      true,
		}

		err = h.store.Insert(ctx, l)
		if err == nil {
			return l, nil
		}

		// A concurrent writer won the code; generated codes retry,
		// custom codes report the conflict.
		if errors.Is(err, link.ErrCodeTaken) && spec.CustomCode == "" {
			continue
		}

		return nil, err
	}

	return nil, link.ErrAllocationExhausted
}

// Resolve looks up a short code for the interstitial page and records the
// visit. Accounting is best effort: a ledger failure is logged but does not
// block the redirect.
func (h *LinkHandler) Resolve(ctx context.Context, req *ResolveRequest) (*ResolveResponse, error) {
	l, err := h.store.GetByCode(ctx, req.Code)
	if err != nil {
		if errors.Is(err, link.ErrNotFound) {
			return nil, huma.Error404NotFound("link not found or has expired")
		}

		return nil, huma.Error500InternalServerError("failed to resolve link")
	}

	if !l.IsActive {
		return nil, huma.Error404NotFound("link not found or has expired")
	}

	meta := RequestMetaFromContext(ctx)

	click, err := h.ledger.RecordVisit(ctx, l.ID, link.Visit{
		Referrer:  meta.Referrer,
		UserAgent: meta.UserAgent,
	})
	if err != nil {
		h.logger.Error("visit not recorded",
			zap.String("code", l.ShortCode),
			zap.Error(err),
		)
	} else {
		h.metrics.ClicksRecorded.WithLabelValues(string(click.DeviceType)).Inc()
		h.metrics.RevenueAccrued.WithLabelValues(metrics.Tier(l.IsAffiliate)).Add(click.RevenueGenerated)

		event := &analytics.LinkVisitedEvent{
			LinkID:     l.ID,
			Code:       l.ShortCode,
			ClickedAt:  click.ClickedAt,
			DeviceType: string(click.DeviceType),
			Referrer:   meta.Referrer,
			Revenue:    click.RevenueGenerated,
			ClientIP:   meta.ClientIP,
		}

		if err := h.publishVisited(event); err != nil {
			h.logger.Error("failed to publish visit event",
				zap.String("code", l.ShortCode),
				zap.Error(err),
			)
		}
	}

	resp := &ResolveResponse{}
	resp.Body.OriginalURL = l.OriginalURL
	resp.Body.RedirectDelay = l.RedirectDelay
	resp.Body.IsAffiliate = l.IsAffiliate

	resp.Body.TotalClicks = l.TotalClicks
	if err == nil {
		resp.Body.TotalClicks = l.TotalClicks + 1
	}

	return resp, nil
}

// ListLinks returns all links, newest first.
func (h *LinkHandler) ListLinks(ctx context.Context, _ *struct{}) (*ListLinksResponse, error) {
	links, err := h.store.List(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list links")
	}

	resp := &ListLinksResponse{}
	resp.Body.Links = make([]LinkPayload, 0, len(links))

	for _, l := range links {
		resp.Body.Links = append(resp.Body.Links, h.payload(l))
	}

	return resp, nil
}

// LinkClicks returns recent clicks for one link, newest first.
func (h *LinkHandler) LinkClicks(ctx context.Context, req *LinkClicksRequest) (*LinkClicksResponse, error) {
	l, err := h.store.GetByCode(ctx, req.Code)
	if err != nil {
		if errors.Is(err, link.ErrNotFound) {
			return nil, huma.Error404NotFound("link not found")
		}

		return nil, huma.Error500InternalServerError("failed to resolve link")
	}

	clicks, err := h.store.ListClicks(ctx, l.ID, req.Limit)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list clicks")
	}

	resp := &LinkClicksResponse{}
	resp.Body.Clicks = make([]ClickPayload, 0, len(clicks))

	for _, c := range clicks {
		resp.Body.Clicks = append(resp.Body.Clicks, ClickPayload{
			ID:               c.ID,
			ClickedAt:        c.ClickedAt,
			Referrer:         c.Referrer,
			DeviceType:       string(c.DeviceType),
			RevenueGenerated: c.RevenueGenerated,
		})
	}

	return resp, nil
}

// DeactivateLink disables redirects for a link. History stays intact.
func (h *LinkHandler) DeactivateLink(ctx context.Context, req *DeactivateLinkRequest) (*struct{}, error) {
	if err := h.store.SetActive(ctx, req.ID, false); err != nil {
		if errors.Is(err, link.ErrNotFound) {
			return nil, huma.Error404NotFound("link not found")
		}

		return nil, huma.Error500InternalServerError("failed to deactivate link")
	}

	return &struct{}{}, nil
}

func (h *LinkHandler) emitCreated(ctx context.Context, l *link.Link) {
	meta := RequestMetaFromContext(ctx)

	event := &analytics.LinkCreatedEvent{
		LinkID:      l.ID,
		Code:        l.ShortCode,
		OriginalURL: l.OriginalURL,
		IsAffiliate: l.IsAffiliate,
		CreatedAt:   l.CreatedAt,
		ClientIP:    meta.ClientIP,
		UserAgent:   meta.UserAgent,
	}

	if err := h.publishCreated(event); err != nil {
		h.logger.Error("failed to publish link created event",
			zap.String("code", l.ShortCode),
			zap.Error(err),
		)
	}
}

func (h *LinkHandler) payload(l *link.Link) LinkPayload {
	return LinkPayload{
		ID:               l.ID,
		ShortCode:        l.ShortCode,
		ShortURL:         fmt.Sprintf("%s/%s", h.baseURL, l.ShortCode),
		OriginalURL:      l.OriginalURL,
		Title:            l.Title,
		IsAffiliate:      l.IsAffiliate,
		RedirectDelay:    l.RedirectDelay,
		TotalClicks:      l.TotalClicks,
		EstimatedRevenue: l.EstimatedRevenue,
		CreatedAt:        l.CreatedAt,
		IsActive:         l.IsActive,
	}
}

func (h *LinkHandler) mapCreateError(err error) error {
	switch {
	case errors.Is(err, errInvalidURL):
		return huma.Error422UnprocessableEntity(err.Error())
	case errors.Is(err, link.ErrInvalidCode):
		return huma.Error422UnprocessableEntity("custom code must be alphanumeric")
	case errors.Is(err, link.ErrCodeTaken):
		return huma.Error409Conflict("this custom code is already taken")
	case errors.Is(err, link.ErrAllocationExhausted):
		return huma.Error500InternalServerError("could not generate a unique short code")
	default:
		return huma.Error500InternalServerError("failed to create link")
	}
}

var errInvalidURL = errors.New("url must start with http:// or https://")

func validateDestination(rawURL string) error {
	if rawURL == "" {
		return errInvalidURL
	}

	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return errInvalidURL
	}

	return nil
}
