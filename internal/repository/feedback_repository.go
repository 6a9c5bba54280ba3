package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/feedback-portal/feedback-service/internal/domain"
	"github.com/feedback-portal/feedback-service/internal/workflow"
)

const defaultPageSize = 20

// FeedbackFilter captures dashboard search parameters.
type FeedbackFilter struct {
	DateFrom       *time.Time
	DateTo         *time.Time
	BranchCode     string
	Search         string
	WorkflowStatus *domain.WorkflowStatus
	ReviewStatus   *domain.ReviewStatus
	AssignedTo     *string
	Page           int
	Limit          int
}

// Normalized returns the filter with page and limit clamped to usable values.
func (f FeedbackFilter) Normalized() FeedbackFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = defaultPageSize
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	return f
}

// ReviewUpdate is a write to the review axis only.
type ReviewUpdate struct {
	FeedbackID   string
	Status       domain.ReviewStatus
	ReviewerID   string
	ReviewerRole domain.Role
	Comment      *string
}

// FeedbackRepository encapsulates feedback persistence. It satisfies
// workflow.Store.
type FeedbackRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Feedback, error)
	List(ctx context.Context, filter FeedbackFilter) ([]domain.Feedback, int, error)
	UpdateWorkflowStatus(ctx context.Context, update workflow.StatusUpdate) (*workflow.StatusResult, error)
	UpdateReviewStatus(ctx context.Context, update ReviewUpdate) (*domain.Feedback, error)
	ListHistory(ctx context.Context, feedbackID string) ([]domain.FeedbackHistory, error)
	DistinctBranchCodes(ctx context.Context) ([]string, error)
}

type feedbackRepository struct {
	db DB
}

// NewFeedbackRepository instantiates repository.
func NewFeedbackRepository(db DB) FeedbackRepository {
	return &feedbackRepository{db: db}
}

const feedbackColumns = `id, ro_code, phone_number, experience_comments,
               free_air_rating, drinking_water_rating, washroom_rating,
               workflow_status, assigned_to::text, status, reviewed, reviewed_by::text, reviewed_at,
               created_at, updated_at`

// checkFeedbackID rejects ids that cannot match the uuid key, so a bad path
// parameter reads as an unknown ticket instead of a driver error.
func checkFeedbackID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: feedback %q", workflow.ErrNotFound, id)
	}
	return nil
}

func (r *feedbackRepository) GetByID(ctx context.Context, id string) (*domain.Feedback, error) {
	if err := checkFeedbackID(id); err != nil {
		return nil, err
	}
	query := `SELECT ` + feedbackColumns + ` FROM feedbacks WHERE id=$1`
	feedback, err := scanFeedback(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: feedback %s", workflow.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return feedback, nil
}

func (r *feedbackRepository) List(ctx context.Context, filter FeedbackFilter) ([]domain.Feedback, int, error) {
	filter = filter.Normalized()
	clauses := []string{"1=1"}
	args := []any{}

	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if code := strings.TrimSpace(filter.BranchCode); code != "" {
		args = append(args, code)
		clauses = append(clauses, fmt.Sprintf("ro_code=$%d", len(args)))
	}
	if filter.WorkflowStatus != nil {
		args = append(args, string(workflow.Normalize(*filter.WorkflowStatus)))
		clauses = append(clauses, fmt.Sprintf("COALESCE(workflow_status, 'Pending')=$%d", len(args)))
	}
	if filter.ReviewStatus != nil {
		args = append(args, string(*filter.ReviewStatus))
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("assigned_to::text=$%d", len(args)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+strings.ToLower(search)+"%")
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(phone_number) LIKE %s OR LOWER(experience_comments) LIKE %s)", placeholder, placeholder))
	}

	where := strings.Join(clauses, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM feedbacks WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	query := fmt.Sprintf(`SELECT %s FROM feedbacks WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		feedbackColumns, where, filter.Limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	result := []domain.Feedback{}
	for rows.Next() {
		feedback, err := scanFeedback(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *feedback)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

// UpdateWorkflowStatus applies a validated transition only while the ticket
// is still in update.From, and appends the history row in the same
// transaction.
func (r *feedbackRepository) UpdateWorkflowStatus(ctx context.Context, update workflow.StatusUpdate) (*workflow.StatusResult, error) {
	if err := checkFeedbackID(update.FeedbackID); err != nil {
		return nil, err
	}
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin workflow update: %w", err)
	}
	defer rollback(ctx, tx)

	const updateQuery = `
        UPDATE feedbacks
        SET workflow_status=$1, assigned_to=COALESCE($2::uuid, assigned_to), updated_at=NOW()
        WHERE id=$3 AND COALESCE(workflow_status, 'Pending')=$4
        RETURNING id, workflow_status, assigned_to::text, updated_at`

	var (
		result workflow.StatusResult
		status string
	)
	err = tx.QueryRow(ctx, updateQuery,
		string(update.To),
		update.AssigneeID,
		update.FeedbackID,
		string(update.From),
	).Scan(&result.FeedbackID, &status, &result.AssignedTo, &result.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, r.missedUpdate(ctx, tx, update.FeedbackID)
	}
	if err != nil {
		return nil, fmt.Errorf("update workflow status: %w", err)
	}
	result.WorkflowStatus = domain.WorkflowStatus(status)

	oldValue := map[string]any{"workflowStatus": string(update.From)}
	newValue := map[string]any{"workflowStatus": string(update.To)}
	if update.AssigneeID != nil {
		newValue["assignedTo"] = *update.AssigneeID
	}
	if err := insertHistory(ctx, tx, domain.FeedbackHistory{
		FeedbackID: update.FeedbackID,
		ActorID:    update.ActorID,
		ActorRole:  update.ActorRole,
		ChangeType: domain.ChangeTypeWorkflow,
		OldValue:   oldValue,
		NewValue:   newValue,
		Comment:    update.Comment,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit workflow update: %w", err)
	}
	return &result, nil
}

// missedUpdate distinguishes a lost race from an unknown ticket.
func (r *feedbackRepository) missedUpdate(ctx context.Context, tx pgx.Tx, id string) error {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM feedbacks WHERE id=$1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check feedback existence: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: feedback %s", workflow.ErrNotFound, id)
	}
	return fmt.Errorf("%w: feedback %s", workflow.ErrStaleState, id)
}

// UpdateReviewStatus writes the review columns and never touches the
// workflow status. Closed tickets are rejected with workflow.ErrInvalidTransition.
func (r *feedbackRepository) UpdateReviewStatus(ctx context.Context, update ReviewUpdate) (*domain.Feedback, error) {
	if err := checkFeedbackID(update.FeedbackID); err != nil {
		return nil, err
	}
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin review update: %w", err)
	}
	defer rollback(ctx, tx)

	var (
		current  *string
		previous string
	)
	err = tx.QueryRow(ctx, `SELECT workflow_status, status FROM feedbacks WHERE id=$1 FOR UPDATE`, update.FeedbackID).
		Scan(&current, &previous)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: feedback %s", workflow.ErrNotFound, update.FeedbackID)
	}
	if err != nil {
		return nil, fmt.Errorf("lock feedback: %w", err)
	}
	if workflow.IsTerminal(workflow.Normalize(workflowStatus(current))) {
		return nil, fmt.Errorf("%w: feedback %s is closed", workflow.ErrInvalidTransition, update.FeedbackID)
	}

	query := `
        UPDATE feedbacks
        SET status=$1, reviewed=TRUE, reviewed_by=$2::uuid, reviewed_at=NOW(), updated_at=NOW()
        WHERE id=$3
        RETURNING ` + feedbackColumns
	feedback, err := scanFeedback(tx.QueryRow(ctx, query, string(update.Status), update.ReviewerID, update.FeedbackID))
	if err != nil {
		return nil, fmt.Errorf("update review status: %w", err)
	}

	if err := insertHistory(ctx, tx, domain.FeedbackHistory{
		FeedbackID: update.FeedbackID,
		ActorID:    update.ReviewerID,
		ActorRole:  update.ReviewerRole,
		ChangeType: domain.ChangeTypeReview,
		OldValue:   map[string]any{"status": previous},
		NewValue:   map[string]any{"status": string(update.Status)},
		Comment:    update.Comment,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit review update: %w", err)
	}
	return feedback, nil
}

func (r *feedbackRepository) ListHistory(ctx context.Context, feedbackID string) ([]domain.FeedbackHistory, error) {
	if err := checkFeedbackID(feedbackID); err != nil {
		return nil, err
	}
	const query = `
        SELECT id, feedback_id, actor_id, actor_role, change_type, old_value, new_value, comment, created_at
        FROM feedback_history WHERE feedback_id=$1 ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query, feedbackID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.FeedbackHistory{}
	for rows.Next() {
		var (
			entry      domain.FeedbackHistory
			role       string
			changeType string
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.FeedbackID,
			&entry.ActorID,
			&role,
			&changeType,
			&entry.OldValue,
			&entry.NewValue,
			&entry.Comment,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		entry.ActorRole = domain.Role(role)
		entry.ChangeType = domain.FeedbackChangeType(changeType)
		result = append(result, entry)
	}
	return result, rows.Err()
}

func (r *feedbackRepository) DistinctBranchCodes(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT ro_code FROM feedbacks ORDER BY ro_code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	codes := []string{}
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

func insertHistory(ctx context.Context, tx pgx.Tx, entry domain.FeedbackHistory) error {
	const query = `
        INSERT INTO feedback_history (feedback_id, actor_id, actor_role, change_type, old_value, new_value, comment)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`
	if _, err := tx.Exec(ctx, query,
		entry.FeedbackID,
		entry.ActorID,
		string(entry.ActorRole),
		string(entry.ChangeType),
		entry.OldValue,
		entry.NewValue,
		entry.Comment,
	); err != nil {
		return fmt.Errorf("insert feedback history: %w", err)
	}
	return nil
}

func scanFeedback(row pgx.Row) (*domain.Feedback, error) {
	var (
		feedback domain.Feedback
		status   *string
		review   string
	)
	if err := row.Scan(
		&feedback.ID,
		&feedback.BranchCode,
		&feedback.PhoneNumber,
		&feedback.ExperienceComments,
		&feedback.FreeAirRating,
		&feedback.DrinkingWaterRating,
		&feedback.WashroomRating,
		&status,
		&feedback.AssignedTo,
		&review,
		&feedback.Reviewed,
		&feedback.ReviewedBy,
		&feedback.ReviewedAt,
		&feedback.CreatedAt,
		&feedback.UpdatedAt,
	); err != nil {
		return nil, err
	}
	feedback.WorkflowStatus = workflow.Normalize(workflowStatus(status))
	feedback.ReviewStatus = domain.ReviewStatus(review)
	return &feedback, nil
}

func workflowStatus(value *string) domain.WorkflowStatus {
	if value == nil {
		return ""
	}
	return domain.WorkflowStatus(*value)
}
