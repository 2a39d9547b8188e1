package handlers

import (
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/quicklink/quicklink/internal/ratelimit"
)

// RegisterRoutes registers every API route with its per-endpoint rate
// limit configuration.
func RegisterRoutes(
	api huma.API,
	links *LinkHandler,
	stories *StoryHandler,
	dispatch *DispatchHandler,
	health *HealthHandler,
) {
	huma.Register(api, huma.Operation{
		Method:      http.MethodPost,
		Path:        "/api/links",
		Summary:     "Create short link",
		Description: "Creates a monetized short link, optionally with a custom code.",
		Tags:        []string{"Links"},
		Metadata: map[string]any{
			ratelimit.MetadataKey: ratelimit.EndpointConfig{
				Limits: []ratelimit.LimitConfig{
					{Window: time.Minute, Max: 10},
					{Window: time.Hour, Max: 100},
				},
			},
		},
	}, links.CreateLink)

	huma.Register(api, huma.Operation{
		Method:      http.MethodPost,
		Path:        "/api/links/bulk",
		Summary:     "Bulk create short links",
		Description: "Creates up to 100 links in one call with a per-item outcome report.",
		Tags:        []string{"Links"},
		Metadata: map[string]any{
			ratelimit.MetadataKey: ratelimit.EndpointConfig{
				Limits: []ratelimit.LimitConfig{
					{Window: time.Minute, Max: 2},
					{Window: time.Hour, Max: 20},
				},
			},
		},
	}, links.BulkCreateLinks)

	huma.Register(api, huma.Operation{
		Method:      http.MethodGet,
		Path:        "/api/links",
		Summary:     "List links",
		Tags:        []string{"Links"},
	}, links.ListLinks)

	huma.Register(api, huma.Operation{
		Method:      http.MethodGet,
		Path:        "/api/links/{code}/clicks",
		Summary:     "List recent clicks for a link",
		Tags:        []string{"Links"},
	}, links.LinkClicks)

	huma.Register(api, huma.Operation{
		Method:        http.MethodDelete,
		Path:          "/api/links/{id}",
		Summary:       "Deactivate a link",
		Description:   "Disables redirects for a link. Click history is kept.",
		Tags:          []string{"Links"},
		DefaultStatus: http.StatusNoContent,
	}, links.DeactivateLink)

	// Redirect resolution is the high-traffic read path.
	huma.Register(api, huma.Operation{
		Method:      http.MethodGet,
		Path:        "/{code}",
		Summary:     "Resolve a short code",
		Description: "Returns the interstitial payload for a code and records the visit.",
		Tags:        []string{"Links"},
		Metadata: map[string]any{
			ratelimit.MetadataKey: ratelimit.EndpointConfig{
				Limits: []ratelimit.LimitConfig{
					{Window: time.Minute, Max: 1000},
				},
			},
		},
	}, links.Resolve)

	huma.Register(api, huma.Operation{
		Method:      http.MethodPost,
		Path:        "/api/accounts",
		Summary:     "Connect a Facebook account",
		Tags:        []string{"Scheduler"},
	}, stories.CreateAccount)

	huma.Register(api, huma.Operation{
		Method:      http.MethodGet,
		Path:        "/api/accounts",
		Summary:     "List Facebook accounts",
		Tags:        []string{"Scheduler"},
	}, stories.ListAccounts)

	huma.Register(api, huma.Operation{
		Method:        http.MethodDelete,
		Path:          "/api/accounts/{id}",
		Summary:       "Deactivate a Facebook account",
		Description:   "Stops all future dispatch for the account's stories.",
		Tags:          []string{"Scheduler"},
		DefaultStatus: http.StatusNoContent,
	}, stories.DeactivateAccount)

	huma.Register(api, huma.Operation{
		Method:      http.MethodPost,
		Path:        "/api/stories",
		Summary:     "Schedule a story",
		Tags:        []string{"Scheduler"},
	}, stories.CreateStory)

	huma.Register(api, huma.Operation{
		Method:      http.MethodGet,
		Path:        "/api/stories",
		Summary:     "List scheduled stories",
		Tags:        []string{"Scheduler"},
	}, stories.ListStories)

	huma.Register(api, huma.Operation{
		Method:        http.MethodDelete,
		Path:          "/api/stories/{id}",
		Summary:       "Delete a pending story",
		Tags:          []string{"Scheduler"},
		DefaultStatus: http.StatusNoContent,
	}, stories.DeleteStory)

	huma.Register(api, huma.Operation{
		Method:      http.MethodPost,
		Path:        "/api/stories/{id}/requeue",
		Summary:     "Requeue a failed story",
		Tags:        []string{"Scheduler"},
	}, stories.RequeueStory)

	huma.Register(api, huma.Operation{
		Method:      http.MethodPost,
		Path:        "/api/dispatch",
		Summary:     "Run a dispatch cycle",
		Description: "Claims due stories and attempts to publish each one.",
		Tags:        []string{"Scheduler"},
		Metadata: map[string]any{
			ratelimit.MetadataKey: ratelimit.EndpointConfig{
				Limits: []ratelimit.LimitConfig{
					{Window: time.Minute, Max: 6},
				},
			},
		},
	}, dispatch.Run)

	huma.Register(api, huma.Operation{
		Method:  http.MethodGet,
		Path:    "/health",
		Summary: "Health check",
		Tags:    []string{"Health"},
		Metadata: map[string]any{
			ratelimit.MetadataKey: ratelimit.EndpointConfig{Disabled: true},
		},
	}, health.Check)
}
