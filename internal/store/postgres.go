package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quicklink/quicklink/internal/link"
	"github.com/quicklink/quicklink/internal/story"
)

// uniqueViolation is the Postgres error code for a unique constraint hit.
const uniqueViolation = "23505"

// PostgresStore is the PostgreSQL implementation of link.Repository and
// story.Repository.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store over an existing connection pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// NewPostgresPool connects to the database, verifies the connection, and
// ensures the schema exists.
func NewPostgresPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid database DSN: %w", err)
	}

	config.MaxConns = 20
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()

		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()

		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return pool, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	schema := `
		CREATE TABLE IF NOT EXISTS links (
			id                TEXT PRIMARY KEY,
			short_code        TEXT NOT NULL UNIQUE,
			original_url      TEXT NOT NULL,
			title             TEXT NOT NULL DEFAULT '',
			is_affiliate      BOOLEAN NOT NULL DEFAULT FALSE,
			redirect_delay    INTEGER NOT NULL DEFAULT 3,
			total_clicks      BIGINT NOT NULL DEFAULT 0,
			estimated_revenue DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
			is_active         BOOLEAN NOT NULL DEFAULT TRUE
		);

		CREATE TABLE IF NOT EXISTS clicks (
			id                TEXT PRIMARY KEY,
			link_id           TEXT NOT NULL REFERENCES links(id),
			clicked_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
			referrer          TEXT NOT NULL DEFAULT '',
			user_agent        TEXT NOT NULL DEFAULT '',
			device_type       TEXT NOT NULL DEFAULT 'desktop',
			revenue_generated DOUBLE PRECISION NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_clicks_link_id ON clicks(link_id, clicked_at DESC);

		CREATE TABLE IF NOT EXISTS facebook_accounts (
			id               TEXT PRIMARY KEY,
			owner_id         TEXT NOT NULL,
			facebook_user_id TEXT NOT NULL,
			page_id          TEXT,
			page_name        TEXT,
			access_token     TEXT NOT NULL,
			token_expires_at TIMESTAMPTZ NOT NULL,
			is_active        BOOLEAN NOT NULL DEFAULT TRUE,
			created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE TABLE IF NOT EXISTS scheduled_stories (
			id               TEXT PRIMARY KEY,
			account_id       TEXT NOT NULL REFERENCES facebook_accounts(id),
			story_type       TEXT NOT NULL DEFAULT 'image',
			media_url        TEXT NOT NULL,
			caption          TEXT NOT NULL DEFAULT '',
			scheduled_time   TIMESTAMPTZ NOT NULL,
			status           TEXT NOT NULL DEFAULT 'pending',
			posted_at        TIMESTAMPTZ,
			error_message    TEXT,
			retry_count      INTEGER NOT NULL DEFAULT 0,
			external_post_id TEXT,
			created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_stories_due
			ON scheduled_stories(status, scheduled_time) WHERE status = 'pending';
	`

	_, err := pool.Exec(ctx, schema)

	return err
}

func (p *PostgresStore) Insert(ctx context.Context, l *link.Link) error {
	query := `
		INSERT INTO links (id, short_code, original_url, title, is_affiliate,
			redirect_delay, total_clicks, estimated_revenue, created_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := p.pool.Exec(ctx, query,
		l.ID, l.ShortCode, l.OriginalURL, l.Title, l.IsAffiliate,
		l.RedirectDelay, l.TotalClicks, l.EstimatedRevenue, l.CreatedAt, l.IsActive,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return link.ErrCodeTaken
		}

		return err
	}

	return nil
}

const linkColumns = `id, short_code, original_url, title, is_affiliate,
	redirect_delay, total_clicks, estimated_revenue, created_at, is_active`

func scanLink(row pgx.Row) (*link.Link, error) {
	var l link.Link

	err := row.Scan(
		&l.ID, &l.ShortCode, &l.OriginalURL, &l.Title, &l.IsAffiliate,
		&l.RedirectDelay, &l.TotalClicks, &l.EstimatedRevenue, &l.CreatedAt, &l.IsActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, link.ErrNotFound
		}

		return nil, err
	}

	return &l, nil
}

func (p *PostgresStore) GetByCode(ctx context.Context, shortCode string) (*link.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE short_code = $1`

	return scanLink(p.pool.QueryRow(ctx, query, shortCode))
}

func (p *PostgresStore) GetByID(ctx context.Context, id string) (*link.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE id = $1`

	return scanLink(p.pool.QueryRow(ctx, query, id))
}

func (p *PostgresStore) List(ctx context.Context) ([]*link.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links ORDER BY created_at DESC`

	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []*link.Link

	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}

		links = append(links, l)
	}

	return links, rows.Err()
}

func (p *PostgresStore) SetActive(ctx context.Context, id string, active bool) error {
	tag, err := p.pool.Exec(ctx, `UPDATE links SET is_active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return link.ErrNotFound
	}

	return nil
}

// IncrementStats bumps both counters in one UPDATE so concurrent visits
// never lose an increment.
func (p *PostgresStore) IncrementStats(ctx context.Context, id string, clickDelta int64, revenueDelta float64) error {
	query := `
		UPDATE links
		SET total_clicks = total_clicks + $2,
			estimated_revenue = estimated_revenue + $3
		WHERE id = $1
	`

	tag, err := p.pool.Exec(ctx, query, id, clickDelta, revenueDelta)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return link.ErrNotFound
	}

	return nil
}

func (p *PostgresStore) InsertClick(ctx context.Context, c *link.Click) error {
	query := `
		INSERT INTO clicks (id, link_id, clicked_at, referrer, user_agent, device_type, revenue_generated)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := p.pool.Exec(ctx, query,
		c.ID, c.LinkID, c.ClickedAt, c.Referrer, c.UserAgent, string(c.DeviceType), c.RevenueGenerated,
	)

	return err
}

func (p *PostgresStore) ListClicks(ctx context.Context, linkID string, limit int) ([]*link.Click, error) {
	query := `
		SELECT id, link_id, clicked_at, referrer, user_agent, device_type, revenue_generated
		FROM clicks
		WHERE link_id = $1
		ORDER BY clicked_at DESC
		LIMIT $2
	`

	rows, err := p.pool.Query(ctx, query, linkID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clicks []*link.Click

	for rows.Next() {
		var c link.Click

		var device string

		err := rows.Scan(&c.ID, &c.LinkID, &c.ClickedAt, &c.Referrer, &c.UserAgent, &device, &c.RevenueGenerated)
		if err != nil {
			return nil, err
		}

		c.DeviceType = link.DeviceType(device)
		clicks = append(clicks, &c)
	}

	return clicks, rows.Err()
}

const storyColumns = `id, account_id, story_type, media_url, caption, scheduled_time,
	status, posted_at, error_message, retry_count, external_post_id, created_at`

func scanStory(row pgx.Row) (*story.ScheduledStory, error) {
	var s story.ScheduledStory

	var (
		status   string
		errMsg   *string
		postID   *string
		postedAt *time.Time
	)

	err := row.Scan(
		&s.ID, &s.AccountID, &s.StoryType, &s.MediaURL, &s.Caption, &s.ScheduledTime,
		&status, &postedAt, &errMsg, &s.RetryCount, &postID, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, story.ErrNotFound
		}

		return nil, err
	}

	s.Status = story.Status(status)
	s.PostedAt = postedAt

	if errMsg != nil {
		s.ErrorMessage = *errMsg
	}

	if postID != nil {
		s.ExternalPostID = *postID
	}

	return &s, nil
}

func (p *PostgresStore) InsertStory(ctx context.Context, s *story.ScheduledStory) error {
	query := `
		INSERT INTO scheduled_stories (id, account_id, story_type, media_url, caption,
			scheduled_time, status, retry_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := p.pool.Exec(ctx, query,
		s.ID, s.AccountID, s.StoryType, s.MediaURL, s.Caption,
		s.ScheduledTime, string(s.Status), s.RetryCount, s.CreatedAt,
	)

	return err
}

func (p *PostgresStore) GetStory(ctx context.Context, id string) (*story.ScheduledStory, error) {
	query := `SELECT ` + storyColumns + ` FROM scheduled_stories WHERE id = $1`

	return scanStory(p.pool.QueryRow(ctx, query, id))
}

func (p *PostgresStore) ListStories(ctx context.Context) ([]*story.ScheduledStory, error) {
	query := `SELECT ` + storyColumns + ` FROM scheduled_stories ORDER BY scheduled_time DESC`

	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stories []*story.ScheduledStory

	for rows.Next() {
		s, err := scanStory(rows)
		if err != nil {
			return nil, err
		}

		stories = append(stories, s)
	}

	return stories, rows.Err()
}

func (p *PostgresStore) DeletePendingStory(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM scheduled_stories WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		if _, err := p.GetStory(ctx, id); err != nil {
			return err
		}

		return story.ErrNotPending
	}

	return nil
}

func (p *PostgresStore) RequeueStory(ctx context.Context, id string) error {
	query := `
		UPDATE scheduled_stories
		SET status = 'pending', error_message = NULL
		WHERE id = $1 AND status = 'failed' AND retry_count < $2
	`

	tag, err := p.pool.Exec(ctx, query, id, story.RetryCeiling)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		if _, err := p.GetStory(ctx, id); err != nil {
			return err
		}

		return story.ErrNotRequeueable
	}

	return nil
}

// ClaimDueStories performs the pending->processing claim as one conditional
// UPDATE. SKIP LOCKED lets concurrent cycles claim disjoint batches, so no
// story is ever handed to two dispatchers.
func (p *PostgresStore) ClaimDueStories(ctx context.Context, now time.Time, batchSize int) ([]*story.ScheduledStory, error) {
	query := `
		UPDATE scheduled_stories
		SET status = 'processing'
		WHERE id IN (
			SELECT id FROM scheduled_stories
			WHERE status = 'pending' AND scheduled_time <= $1 AND retry_count < $2
			ORDER BY scheduled_time ASC
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + storyColumns

	rows, err := p.pool.Query(ctx, query, now, story.RetryCeiling, batchSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var claimed []*story.ScheduledStory

	for rows.Next() {
		s, err := scanStory(rows)
		if err != nil {
			return nil, err
		}

		claimed = append(claimed, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	// RETURNING does not preserve the subquery order; restore the
	// scheduled_time ordering the dispatcher expects.
	sort.Slice(claimed, func(i, j int) bool {
		return claimed[i].ScheduledTime.Before(claimed[j].ScheduledTime)
	})

	return claimed, nil
}

func (p *PostgresStore) UpdateStatus(ctx context.Context, id string, update story.StatusUpdate) error {
	query := `
		UPDATE scheduled_stories
		SET status = $2,
			posted_at = $3,
			external_post_id = $4,
			error_message = $5,
			retry_count = $6
		WHERE id = $1
	`

	tag, err := p.pool.Exec(ctx, query,
		id, string(update.Status), update.PostedAt,
		nullableString(update.ExternalPostID), nullableString(update.ErrorMessage),
		update.RetryCount,
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return story.ErrNotFound
	}

	return nil
}

func (p *PostgresStore) InsertAccount(ctx context.Context, a *story.Account) error {
	query := `
		INSERT INTO facebook_accounts (id, owner_id, facebook_user_id, page_id, page_name,
			access_token, token_expires_at, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := p.pool.Exec(ctx, query,
		a.ID, a.OwnerID, a.FacebookUserID, nullableString(a.PageID), nullableString(a.PageName),
		a.AccessToken, a.TokenExpiresAt, a.IsActive, a.CreatedAt,
	)

	return err
}

const accountColumns = `id, owner_id, facebook_user_id, page_id, page_name,
	access_token, token_expires_at, is_active, created_at`

func scanAccount(row pgx.Row) (*story.Account, error) {
	var a story.Account

	var pageID, pageName *string

	err := row.Scan(
		&a.ID, &a.OwnerID, &a.FacebookUserID, &pageID, &pageName,
		&a.AccessToken, &a.TokenExpiresAt, &a.IsActive, &a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, story.ErrAccountNotFound
		}

		return nil, err
	}

	if pageID != nil {
		a.PageID = *pageID
	}

	if pageName != nil {
		a.PageName = *pageName
	}

	return &a, nil
}

func (p *PostgresStore) GetAccount(ctx context.Context, id string) (*story.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM facebook_accounts WHERE id = $1`

	return scanAccount(p.pool.QueryRow(ctx, query, id))
}

func (p *PostgresStore) ListAccounts(ctx context.Context, ownerID string) ([]*story.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM facebook_accounts
		WHERE ($1 = '' OR owner_id = $1) ORDER BY created_at DESC`

	rows, err := p.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*story.Account

	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}

		accounts = append(accounts, a)
	}

	return accounts, rows.Err()
}

func (p *PostgresStore) SetAccountActive(ctx context.Context, id string, active bool) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE facebook_accounts SET is_active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return story.ErrAccountNotFound
	}

	return nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}

// Compile-time checks.
var (
	_ link.Repository  = (*PostgresStore)(nil)
	_ story.Repository = (*PostgresStore)(nil)
)
