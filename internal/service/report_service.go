package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dictation/internal/logging"
	"dictation/internal/models"
	"dictation/internal/security"
	"dictation/internal/validation"
)

// ErrRateLimited is returned when a client submits too many reports
var ErrRateLimited = errors.New("too many requests, please try again later")

const maxUserAgentLength = 512

// ReportStore persists reports
type ReportStore interface {
	Create(ctx context.Context, report *models.Report) error
}

// Limiter decides whether a client may submit another report
type Limiter interface {
	Allow(key string) bool
}

// ClientInfo identifies where a report came from
type ClientInfo struct {
	IP        string
	UserAgent string
}

// ReportService handles feedback report intake
type ReportService struct {
	repo    ReportStore
	limiter Limiter
	hasher  *security.IPHasher
	logger  *zap.Logger
	now     func() time.Time
}

// NewReportService creates a new report service
func NewReportService(repo ReportStore, limiter Limiter, hasher *security.IPHasher, logger *zap.Logger) *ReportService {
	return &ReportService{
		repo:    repo,
		limiter: limiter,
		hasher:  hasher,
		logger:  logging.OrNop(logger),
		now:     time.Now,
	}
}

// Submit validates and stores a report, returning its id. Validation
// failures are returned as validation.Errors; only valid reports count
// against the client's rate limit.
func (s *ReportService) Submit(ctx context.Context, in models.ReportInput, client ClientInfo) (string, error) {
	if err := validation.ValidateReport(in); err != nil {
		return "", err
	}

	// Requests without a known origin are always limited
	if client.IP == "" {
		return "", ErrRateLimited
	}
	ipHash := s.hasher.Hash(client.IP)
	if !s.limiter.Allow(ipHash) {
		s.logger.Info("report rate limited", zap.String("ip_hash", ipHash))
		return "", ErrRateLimited
	}

	userAgent := truncateUTF8(client.UserAgent, maxUserAgentLength)

	report := &models.Report{
		ID:           uuid.NewString(),
		Subject:      strings.TrimSpace(in.Subject),
		Message:      strings.TrimSpace(in.Message),
		Language:     in.Language,
		ProblemType:  in.ProblemType,
		Priority:     in.Priority,
		ContactEmail: strings.TrimSpace(in.ContactEmail),
		Attachments:  in.Attachments,
		IPHash:       ipHash,
		UserAgent:    userAgent,
		Status:       models.ReportOpen,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repo.Create(ctx, report); err != nil {
		return "", fmt.Errorf("failed to store report: %w", err)
	}

	s.logger.Info("report submitted",
		zap.String("report_id", report.ID),
		zap.String("problem_type", string(report.ProblemType)),
		zap.String("priority", string(report.Priority)),
		zap.Int("attachments", len(report.Attachments)))
	return report.ID, nil
}

// truncateUTF8 drops invalid bytes from s and cuts it to at most limit bytes
// without splitting a character
func truncateUTF8(s string, limit int) string {
	s = strings.ToValidUTF8(s, "")
	if len(s) <= limit {
		return s
	}
	n := limit
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
