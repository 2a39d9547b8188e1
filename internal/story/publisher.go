package story

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"go.uber.org/zap"
)

// DefaultGraphBaseURL is the Facebook Graph API endpoint stories are
// published against.
const DefaultGraphBaseURL = "https://graph.facebook.com/v18.0"

// Publisher performs exactly one external publish attempt for a story.
// Retries are the dispatcher's responsibility.
type Publisher interface {
	// Publish submits the story under the account's credential and returns
	// the external post id on success. All non-success outcomes, including
	// transport errors and timeouts, are returned as plain errors so the
	// caller can treat them uniformly.
	Publish(ctx context.Context, s *ScheduledStory, account *Account) (string, error)
}

// GraphPublisher publishes image stories through the Facebook Graph API.
type GraphPublisher struct {
	client  *http.Client
	baseURL string
	logger  *zap.Logger
}

// NewGraphPublisher creates a publisher against the given Graph API base
// URL. The client's timeout bounds each publish attempt.
func NewGraphPublisher(client *http.Client, baseURL string, logger *zap.Logger) *GraphPublisher {
	return &GraphPublisher{
		client:  client,
		baseURL: baseURL,
		logger:  logger,
	}
}

// graphResponse is the subset of the Graph API response the gateway reads.
type graphResponse struct {
	ID     string `json:"id"`
	PostID string `json:"post_id"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (p *GraphPublisher) Publish(ctx context.Context, s *ScheduledStory, account *Account) (string, error) {
	if s.StoryType != TypeImage {
		return "", ErrUnsupportedMediaType
	}

	body, contentType, err := storyForm(s, account)
	if err != nil {
		return "", fmt.Errorf("build publish request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/photo_stories", p.baseURL, account.TargetID())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return "", fmt.Errorf("build publish request: %w", err)
	}

	req.Header.Set("Content-Type", contentType)

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Warn("graph api call failed",
			zap.String("story_id", s.ID),
			zap.Error(err),
		)

		return "", fmt.Errorf("publish request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read publish response: %w", err)
	}

	var graph graphResponse
	if err := json.Unmarshal(payload, &graph); err != nil && resp.StatusCode < 300 {
		return "", fmt.Errorf("decode publish response: %w", err)
	}

	if resp.StatusCode >= 300 || graph.Error != nil {
		msg := "failed to post to facebook"
		if graph.Error != nil && graph.Error.Message != "" {
			msg = graph.Error.Message
		}

		return "", fmt.Errorf("graph api rejected story: %s", msg)
	}

	postID := graph.ID
	if postID == "" {
		postID = graph.PostID
	}

	if postID == "" {
		return "", fmt.Errorf("graph api returned no post id")
	}

	return postID, nil
}

// storyForm builds the multipart form the Graph API photo_stories edge
// expects: photo_url, optional caption, and the access token.
func storyForm(s *ScheduledStory, account *Account) (io.Reader, string, error) {
	var buf bytes.Buffer

	form := multipart.NewWriter(&buf)

	if err := form.WriteField("photo_url", s.MediaURL); err != nil {
		return nil, "", err
	}

	if s.Caption != "" {
		if err := form.WriteField("caption", s.Caption); err != nil {
			return nil, "", err
		}
	}

	if err := form.WriteField("access_token", account.AccessToken); err != nil {
		return nil, "", err
	}

	if err := form.Close(); err != nil {
		return nil, "", err
	}

	return &buf, form.FormDataContentType(), nil
}
