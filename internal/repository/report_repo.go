package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"dictation/internal/database"
	"dictation/internal/models"
)

// ErrReportNotFound is returned when no report has the requested id
var ErrReportNotFound = errors.New("report not found")

// ReportRepository handles database operations for feedback reports
type ReportRepository struct {
	db database.DBTX
}

// NewReportRepository creates a new report repository
func NewReportRepository(db database.DBTX) *ReportRepository {
	return &ReportRepository{db: db}
}

const reportColumns = `id, subject, message, language, problem_type, priority, contact_email,
	attachments, ip_hash, user_agent, status, created_at`

// Create stores a new report
func (r *ReportRepository) Create(ctx context.Context, report *models.Report) error {
	attachments, err := json.Marshal(nonNilAttachments(report.Attachments))
	if err != nil {
		return fmt.Errorf("failed to encode attachments: %w", err)
	}

	query := `INSERT INTO reports (` + reportColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		report.ID,
		report.Subject,
		report.Message,
		report.Language,
		string(report.ProblemType),
		string(report.Priority),
		report.ContactEmail,
		string(attachments),
		report.IPHash,
		report.UserAgent,
		string(report.Status),
		report.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	return nil
}

// GetByID retrieves a report by id
func (r *ReportRepository) GetByID(ctx context.Context, id string) (*models.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE id = ?`
	report, err := scanReport(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return report, nil
}

// List returns reports with the given status, newest first. An empty status
// lists every report.
func (r *ReportRepository) List(ctx context.Context, status models.ReportStatus, limit int) ([]models.Report, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + reportColumns + ` FROM reports`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	var reports []models.Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, *report)
	}
	return reports, rows.Err()
}

// UpdateStatus changes a report's status
func (r *ReportRepository) UpdateStatus(ctx context.Context, id string, status models.ReportStatus) error {
	result, err := r.db.ExecContext(ctx, `UPDATE reports SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update report: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update report: %w", err)
	}
	if n == 0 {
		return ErrReportNotFound
	}
	return nil
}

// CountSince counts reports from one hashed client IP created at or after since
func (r *ReportRepository) CountSince(ctx context.Context, ipHash string, since time.Time) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM reports WHERE ip_hash = ? AND created_at >= ?`
	if err := r.db.QueryRowContext(ctx, query, ipHash, since.UTC()).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count reports: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*models.Report, error) {
	var (
		report      models.Report
		problemType string
		priority    string
		status      string
		attachments string
	)
	err := row.Scan(
		&report.ID,
		&report.Subject,
		&report.Message,
		&report.Language,
		&problemType,
		&priority,
		&report.ContactEmail,
		&attachments,
		&report.IPHash,
		&report.UserAgent,
		&status,
		&report.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	report.ProblemType = models.ProblemType(problemType)
	report.Priority = models.Priority(priority)
	report.Status = models.ReportStatus(status)
	if err := json.Unmarshal([]byte(attachments), &report.Attachments); err != nil {
		return nil, fmt.Errorf("failed to decode attachments: %w", err)
	}
	return &report, nil
}

func nonNilAttachments(a []models.AttachmentInfo) []models.AttachmentInfo {
	if a == nil {
		return []models.AttachmentInfo{}
	}
	return a
}
