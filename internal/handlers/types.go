package handlers

import (
	"time"

	"github.com/quicklink/quicklink/internal/story"
)

// LinkPayload is the API representation of a short link.
type LinkPayload struct {
	ID               string    `json:"id"`
	ShortCode        string    `doc:"The short code"            example:"abc123" json:"shortCode"`
	ShortURL         string    `doc:"The full short URL"        json:"shortUrl"`
	OriginalURL      string    `doc:"The destination URL"       json:"originalUrl"`
	Title            string    `json:"title,omitempty"`
	IsAffiliate      bool      `json:"isAffiliate"`
	RedirectDelay    int       `doc:"Interstitial delay in seconds" json:"redirectDelay"`
	TotalClicks      int64     `json:"totalClicks"`
	EstimatedRevenue float64   `json:"estimatedRevenue"`
	CreatedAt        time.Time `json:"createdAt"`
	IsActive         bool      `json:"isActive"`
}

// NewLinkSpec is one link creation request, shared by the single and bulk
// endpoints.
type NewLinkSpec struct {
	URL           string `doc:"The URL to shorten"                 example:"https://example.com/long/path" json:"url"`
	CustomCode    string `doc:"Requested short code (optional)"    example:"mylink"                        json:"customCode,omitempty"`
	Title         string `json:"title,omitempty"`
	IsAffiliate   bool   `doc:"Affiliate links accrue 0.05 per click instead of 0.01" json:"isAffiliate,omitempty"`
	RedirectDelay int    `doc:"Interstitial delay, defaults to 3 seconds" json:"redirectDelay,omitempty" maximum:"60" minimum:"0"`
}

// CreateLinkRequest creates one short link.
type CreateLinkRequest struct {
	Body NewLinkSpec
}

// CreateLinkResponse returns the created link.
type CreateLinkResponse struct {
	Headers struct {
		Location string `doc:"The short URL location" header:"Location"`
	}
	Body LinkPayload
}

// BulkCreateLinksRequest creates up to 100 links in one call.
type BulkCreateLinksRequest struct {
	Body struct {
		Links []NewLinkSpec `json:"links" maxItems:"100" minItems:"1"`
	}
}

// BulkItemError reports why one bulk item was rejected.
type BulkItemError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// BulkCreateLinksResponse reports per-item outcomes.
type BulkCreateLinksResponse struct {
	Body struct {
		Created int             `json:"created"`
		Failed  int             `json:"failed"`
		Links   []LinkPayload   `json:"links"`
		Errors  []BulkItemError `json:"errors"`
	}
}

// ResolveRequest resolves a short code for the interstitial page.
type ResolveRequest struct {
	Code string `doc:"The short code" example:"abc123" path:"code"`
}

// ResolveResponse carries what the interstitial page renders. Resolving
// also records the visit on the link's ledger.
type ResolveResponse struct {
	Body struct {
		OriginalURL   string `json:"originalUrl"`
		RedirectDelay int    `json:"redirectDelay"`
		IsAffiliate   bool   `json:"isAffiliate"`
		TotalClicks   int64  `doc:"Click count including this visit" json:"totalClicks"`
	}
}

// ListLinksResponse lists all links, newest first.
type ListLinksResponse struct {
	Body struct {
		Links []LinkPayload `json:"links"`
	}
}

// LinkClicksRequest fetches recent clicks for a link.
type LinkClicksRequest struct {
	Code  string `doc:"The short code" path:"code"`
	Limit int    `default:"50" doc:"Maximum clicks to return" maximum:"500" minimum:"1" query:"limit"`
}

// ClickPayload is the API representation of one recorded visit.
type ClickPayload struct {
	ID               string    `json:"id"`
	ClickedAt        time.Time `json:"clickedAt"`
	Referrer         string    `json:"referrer,omitempty"`
	DeviceType       string    `json:"deviceType"`
	RevenueGenerated float64   `json:"revenueGenerated"`
}

// LinkClicksResponse lists recent clicks, newest first.
type LinkClicksResponse struct {
	Body struct {
		Clicks []ClickPayload `json:"clicks"`
	}
}

// DeactivateLinkRequest disables redirects for a link without deleting it.
type DeactivateLinkRequest struct {
	ID string `doc:"The link id" path:"id"`
}

// AccountPayload is the API representation of a Facebook account. The
// access token is write-only and never echoed.
type AccountPayload struct {
	ID             string    `json:"id"`
	FacebookUserID string    `json:"facebookUserId"`
	PageID         string    `json:"pageId,omitempty"`
	PageName       string    `json:"pageName,omitempty"`
	TokenExpiresAt time.Time `json:"tokenExpiresAt"`
	IsActive       bool      `json:"isActive"`
	CreatedAt      time.Time `json:"createdAt"`
}

// CreateAccountRequest links a Facebook credential.
type CreateAccountRequest struct {
	Body struct {
		OwnerID        string    `json:"ownerId,omitempty"`
		FacebookUserID string    `json:"facebookUserId,omitempty"`
		PageID         string    `json:"pageId,omitempty"`
		PageName       string    `json:"pageName,omitempty"`
		AccessToken    string    `json:"accessToken"`
		TokenExpiresAt time.Time `json:"tokenExpiresAt"`
	}
}

// CreateAccountResponse returns the created account.
type CreateAccountResponse struct {
	Body AccountPayload
}

// ListAccountsRequest lists accounts, optionally filtered by owner.
type ListAccountsRequest struct {
	OwnerID string `doc:"Filter by owner" query:"ownerId"`
}

// ListAccountsResponse lists accounts, newest first.
type ListAccountsResponse struct {
	Body struct {
		Accounts []AccountPayload `json:"accounts"`
	}
}

// DeactivateAccountRequest halts all future dispatch for the account's jobs.
type DeactivateAccountRequest struct {
	ID string `doc:"The account id" path:"id"`
}

// StoryPayload is the API representation of a scheduled story.
type StoryPayload struct {
	ID             string     `json:"id"`
	AccountID      string     `json:"accountId"`
	StoryType      string     `json:"storyType"`
	MediaURL       string     `json:"mediaUrl"`
	Caption        string     `json:"caption,omitempty"`
	ScheduledTime  time.Time  `json:"scheduledTime"`
	Status         string     `json:"status"`
	PostedAt       *time.Time `json:"postedAt,omitempty"`
	ErrorMessage   string     `json:"errorMessage,omitempty"`
	RetryCount     int        `json:"retryCount"`
	ExternalPostID string     `json:"externalPostId,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// CreateStoryRequest schedules a story for publishing.
type CreateStoryRequest struct {
	Body struct {
		AccountID     string    `json:"accountId"`
		StoryType     string    `default:"image" doc:"Only image stories are supported" json:"storyType,omitempty"`
		MediaURL      string    `json:"mediaUrl"`
		Caption       string    `json:"caption,omitempty"`
		ScheduledTime time.Time `json:"scheduledTime"`
	}
}

// CreateStoryResponse returns the scheduled story.
type CreateStoryResponse struct {
	Body StoryPayload
}

// ListStoriesResponse lists stories, newest schedule first.
type ListStoriesResponse struct {
	Body struct {
		Stories []StoryPayload `json:"stories"`
	}
}

// StoryIDRequest addresses one story by id.
type StoryIDRequest struct {
	ID string `doc:"The story id" path:"id"`
}

// DispatchResponse reports one dispatch cycle.
type DispatchResponse struct {
	Body story.CycleResult
}

// HealthResponse reports dependency health.
type HealthResponse struct {
	Body struct {
		Status   string `json:"status"`
		Postgres string `json:"postgres,omitempty"`
		Redis    string `json:"redis,omitempty"`
	}
}
