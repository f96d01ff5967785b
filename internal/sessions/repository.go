package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lecturely/backend/internal/models"
)

var (
	// ErrNotFound is returned by owner-scoped writes that matched no session.
	ErrNotFound = errors.New("session not found")
	// ErrFileExists is returned when a media slot is already filled.
	ErrFileExists = errors.New("file already uploaded")
)

const sessionColumns = `id, user_id, name, duration, status, audio_file, video_file,
	transcript, summary, slides, view_count, last_viewed, created_at, updated_at`

// ListFilter narrows ListByUser.
type ListFilter struct {
	Status string
	Search string // case-insensitive match on name or transcript text
	Limit  int
	Offset int
}

// Repository handles session persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a sessions repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanSession(row pgx.Row) (*models.Session, error) {
	var s models.Session
	err := row.Scan(&s.ID, &s.UserID, &s.Name, &s.Duration, &s.Status,
		&s.Files.Audio, &s.Files.Video,
		&s.Processing.Transcript, &s.Processing.Summary, &s.Processing.Slides,
		&s.Analytics.ViewCount, &s.Analytics.LastViewed, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Create inserts a new session in status recording.
func (r *Repository) Create(ctx context.Context, userID uuid.UUID, name string, duration int) (*models.Session, error) {
	const q = `INSERT INTO sessions (user_id, name, duration, status)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + sessionColumns
	return scanSession(r.pool.QueryRow(ctx, q, userID, name, duration, models.SessionStatusRecording))
}

// GetByID returns a session by ID, or nil when it does not exist.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	const q = `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`
	s, err := scanSession(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

// ListByUser returns one page of the user's sessions, newest first, and the total count.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, f ListFilter) ([]models.Session, int, error) {
	const where = ` WHERE user_id = $1
		AND ($2::text = '' OR status = $2::text)
		AND ($3::text = '' OR name ILIKE '%' || $3::text || '%' OR transcript->>'text' ILIKE '%' || $3::text || '%')`
	const q = `SELECT ` + sessionColumns + ` FROM sessions` + where + `
		ORDER BY created_at DESC LIMIT $4 OFFSET $5`
	const countQ = `SELECT COUNT(*) FROM sessions` + where

	var total int
	if err := r.pool.QueryRow(ctx, countQ, userID, f.Status, f.Search).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, q, userID, f.Status, f.Search, f.Limit, f.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	list := []models.Session{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, *s)
	}
	return list, total, rows.Err()
}

// RecordView increments the view counter of the user's session and returns it. Only the
// analytics columns are written; updated_at is left alone.
func (r *Repository) RecordView(ctx context.Context, id, userID uuid.UUID) (*models.Session, error) {
	const q = `UPDATE sessions SET view_count = view_count + 1, last_viewed = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING ` + sessionColumns
	s, err := scanSession(r.pool.QueryRow(ctx, q, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

// AttachFile stores the upload metadata in the empty audio or video slot.
func (r *Repository) AttachFile(ctx context.Context, id, userID uuid.UUID, fileType string, file models.MediaFile) error {
	var q string
	switch fileType {
	case models.FileTypeAudio:
		q = `UPDATE sessions SET audio_file = $3, updated_at = NOW()
			WHERE id = $1 AND user_id = $2 AND audio_file IS NULL`
	case models.FileTypeVideo:
		q = `UPDATE sessions SET video_file = $3, updated_at = NOW()
			WHERE id = $1 AND user_id = $2 AND video_file IS NULL`
	default:
		return fmt.Errorf("unknown file type %q", fileType)
	}
	tag, err := r.pool.Exec(ctx, q, id, userID, file)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	const exists = `SELECT EXISTS (SELECT 1 FROM sessions WHERE id = $1 AND user_id = $2)`
	var ok bool
	if err := r.pool.QueryRow(ctx, exists, id, userID).Scan(&ok); err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return ErrFileExists
}

// Claim moves the session to processing when it has media and is not already
// processing. The row lock makes concurrent claims serialize; the loser sees
// status=processing and matches nothing.
func (r *Repository) Claim(ctx context.Context, id uuid.UUID) (string, bool, error) {
	const q = `WITH prev AS (
			SELECT id, status FROM sessions WHERE id = $1 FOR UPDATE
		)
		UPDATE sessions s SET status = $2, updated_at = NOW()
		FROM prev
		WHERE s.id = prev.id
			AND prev.status <> $2
			AND (s.audio_file IS NOT NULL OR s.video_file IS NOT NULL)
		RETURNING prev.status`
	var prev string
	err := r.pool.QueryRow(ctx, q, id, models.SessionStatusProcessing).Scan(&prev)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return prev, true, nil
}

// SetStatus sets only the status column.
func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	const q = `UPDATE sessions SET status = $2, updated_at = NOW() WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id, status)
	return err
}

// Complete writes the pipeline results and status=completed in one statement.
func (r *Repository) Complete(ctx context.Context, id uuid.UUID, result models.Completion) error {
	const q = `UPDATE sessions SET
			transcript = $2,
			summary = $3,
			slides = CASE WHEN $4::boolean THEN $5::jsonb ELSE slides END,
			status = $6,
			updated_at = NOW()
		WHERE id = $1`
	slides := result.Slides
	if slides == nil {
		slides = []models.Slide{}
	}
	_, err := r.pool.Exec(ctx, q, id, result.Transcript, result.Summary, result.ReplaceSlides, slides, models.SessionStatusCompleted)
	return err
}

// FailStale marks sessions stuck in processing for longer than olderThan as failed and
// returns how many were changed.
func (r *Repository) FailStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	const q = `UPDATE sessions SET status = $1, updated_at = NOW()
		WHERE status = $2 AND updated_at < NOW() - make_interval(secs => $3)`
	tag, err := r.pool.Exec(ctx, q, models.SessionStatusFailed, models.SessionStatusProcessing, olderThan.Seconds())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// AddQA appends a question/answer pair to the user's session.
func (r *Repository) AddQA(ctx context.Context, id, userID uuid.UUID, qa models.QAQuery) error {
	const q = `INSERT INTO session_qa_queries (session_id, query, response)
		SELECT id, $3::text, $4::text FROM sessions WHERE id = $1 AND user_id = $2`
	tag, err := r.pool.Exec(ctx, q, id, userID, qa.Query, qa.Response)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListQA returns the session's saved Q&A in insertion order.
func (r *Repository) ListQA(ctx context.Context, id uuid.UUID) ([]models.QAQuery, error) {
	const q = `SELECT query, response, created_at FROM session_qa_queries
		WHERE session_id = $1 ORDER BY created_at, id`
	rows, err := r.pool.Query(ctx, q, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.QAQuery
	for rows.Next() {
		var qa models.QAQuery
		if err := rows.Scan(&qa.Query, &qa.Response, &qa.Timestamp); err != nil {
			return nil, err
		}
		list = append(list, qa)
	}
	return list, rows.Err()
}

// StatusCounts returns the number of sessions per status.
func (r *Repository) StatusCounts(ctx context.Context) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM sessions GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
