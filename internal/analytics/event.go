package analytics

import "time"

// Topics the analytics events are published on.
const (
	TopicLinkCreated = "link.created"
	TopicLinkVisited = "link.visited"
)

// LinkCreatedEvent is emitted when a short link is minted.
type LinkCreatedEvent struct {
	LinkID      string    `json:"linkId"`
	Code        string    `json:"code"`
	OriginalURL string    `json:"originalUrl"`
	IsAffiliate bool      `json:"isAffiliate"`
	CreatedAt   time.Time `json:"createdAt"`
	ClientIP    string    `json:"clientIp"`
	UserAgent   string    `json:"userAgent"`
}

// LinkVisitedEvent is emitted for every resolved redirect. The revenue
// mirrors what the ledger wrote on the Click row.
type LinkVisitedEvent struct {
	LinkID     string    `json:"linkId"`
	Code       string    `json:"code"`
	ClickedAt  time.Time `json:"clickedAt"`
	DeviceType string    `json:"deviceType"`
	Referrer   string    `json:"referrer,omitempty"`
	Revenue    float64   `json:"revenue"`
	ClientIP   string    `json:"clientIp"`
}
