package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/training-hub/training-hub/internal/domain/enrollment"
	"github.com/training-hub/training-hub/internal/domain/progress"
	"github.com/training-hub/training-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// EnrollmentRepository implements enrollment.Repository for PostgreSQL.
// The module-progress map is stored as JSONB: modules are append-only keyed
// records, so a document column avoids a join on every progress read.
type EnrollmentRepository struct {
	conn *Connection
}

// NewEnrollmentRepository creates a new EnrollmentRepository.
func NewEnrollmentRepository(conn *Connection) *EnrollmentRepository {
	return &EnrollmentRepository{conn: conn}
}

const enrollmentColumns = `
	id, user_id, campaign_id, status, module_progress, completed_modules,
	completed_at, last_accessed_at, created_at, updated_at
`

// GetOrCreate returns the learner's enrollment for a campaign, creating it
// on first access. The unique (user_id, campaign_id) constraint resolves
// concurrent first accesses; the loser of the race reads the winner's row.
func (r *EnrollmentRepository) GetOrCreate(ctx context.Context, userID, campaignID string) (*enrollment.Enrollment, error) {
	e, err := r.Get(ctx, userID, campaignID)
	if err == nil {
		return e, nil
	}
	if !shared.IsNotFound(err) {
		return nil, err
	}

	fresh := enrollment.New(userID, campaignID, time.Now().UTC())
	if err := r.insert(ctx, fresh); err != nil {
		if IsUniqueViolation(err) {
			return r.Get(ctx, userID, campaignID)
		}
		return nil, err
	}
	return fresh, nil
}

// Get returns an existing enrollment or shared.ErrEnrollmentNotFound.
func (r *EnrollmentRepository) Get(ctx context.Context, userID, campaignID string) (*enrollment.Enrollment, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM enrollments
		WHERE user_id = $1 AND campaign_id = $2
	`, enrollmentColumns)

	return r.scanEnrollment(r.conn.QueryRow(ctx, query, userID, campaignID))
}

// Save persists the enrollment state.
func (r *EnrollmentRepository) Save(ctx context.Context, e *enrollment.Enrollment) error {
	query := `
		UPDATE enrollments SET
			status = $1,
			module_progress = $2,
			completed_modules = $3,
			completed_at = $4,
			last_accessed_at = $5,
			updated_at = $6
		WHERE id = $7
	`

	progressJSON, err := json.Marshal(e.ModuleProgress)
	if err != nil {
		return fmt.Errorf("failed to marshal module progress: %w", err)
	}

	tag, err := r.conn.Exec(ctx, query,
		string(e.Status),
		progressJSON,
		e.CompletedModules,
		e.CompletedAt,
		e.LastAccessedAt,
		e.UpdatedAt,
		e.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to save enrollment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.insert(ctx, e)
	}

	return nil
}

// ListByUser returns all of a learner's enrollments.
func (r *EnrollmentRepository) ListByUser(ctx context.Context, userID string) ([]*enrollment.Enrollment, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM enrollments
		WHERE user_id = $1
		ORDER BY created_at
	`, enrollmentColumns)

	rows, err := r.conn.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	defer rows.Close()

	var enrollments []*enrollment.Enrollment
	for rows.Next() {
		e, err := r.scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		enrollments = append(enrollments, e)
	}

	return enrollments, rows.Err()
}

// CountCompletedByUser counts the learner's completed campaigns.
func (r *EnrollmentRepository) CountCompletedByUser(ctx context.Context, userID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM enrollments
		WHERE user_id = $1 AND status = 'completed'
	`

	var count int
	if err := r.conn.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count completed enrollments: %w", err)
	}
	return count, nil
}

// insert writes a new enrollment row.
func (r *EnrollmentRepository) insert(ctx context.Context, e *enrollment.Enrollment) error {
	query := `
		INSERT INTO enrollments (
			id, user_id, campaign_id, status, module_progress, completed_modules,
			completed_at, last_accessed_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	progressJSON, err := json.Marshal(e.ModuleProgress)
	if err != nil {
		return fmt.Errorf("failed to marshal module progress: %w", err)
	}

	_, err = r.conn.Exec(ctx, query,
		e.ID,
		e.UserID,
		e.CampaignID,
		string(e.Status),
		progressJSON,
		e.CompletedModules,
		e.CompletedAt,
		e.LastAccessedAt,
		e.CreatedAt,
		e.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("failed to insert enrollment: %w", err)
	}

	return nil
}

// scanEnrollment maps one row into the domain entity.
func (r *EnrollmentRepository) scanEnrollment(row pgx.Row) (*enrollment.Enrollment, error) {
	var e enrollment.Enrollment
	var status string
	var progressJSON []byte

	err := row.Scan(
		&e.ID,
		&e.UserID,
		&e.CampaignID,
		&status,
		&progressJSON,
		&e.CompletedModules,
		&e.CompletedAt,
		&e.LastAccessedAt,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrEnrollmentNotFound
		}
		return nil, fmt.Errorf("failed to scan enrollment: %w", err)
	}

	e.Status = progress.Status(status)
	e.ModuleProgress = make(map[string]*progress.ModuleState)
	if err := json.Unmarshal(progressJSON, &e.ModuleProgress); err != nil {
		return nil, fmt.Errorf("failed to unmarshal module progress: %w", err)
	}

	return &e, nil
}
