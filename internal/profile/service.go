// Package profile owns the lender's business profile: the existence check
// that gates routing and the multi-table save the profile builder submits.
package profile

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	slogctx "github.com/veqryn/slog-context"

	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/backend"
	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/serviceerr"
)

type saveStep int

const (
	stepLogo saveStep = iota
	stepAgent
	stepEmploymentTypes
	stepProducts
	stepDone
)

// saveProgress is the resume point of a partially failed Save. The backend
// offers no transaction spanning the three tables, so a retried submission
// picks up at the step that failed instead of starting over.
type saveProgress struct {
	step    saveStep
	logoURL string
	agentID string
}

type Service struct {
	backend    backend.Client
	logoBucket string

	// existence answers are cached briefly; routing asks on every login.
	exists *gocache.Cache

	mu       sync.Mutex
	progress map[string]*saveProgress
}

func NewService(client backend.Client, cacheTTL time.Duration, logoBucket string) *Service {
	return &Service{
		backend:    client,
		logoBucket: logoBucket,
		exists:     gocache.New(cacheTTL, 2*cacheTTL),
		progress:   make(map[string]*saveProgress),
	}
}

// Exists reports whether the lender has a profile row. A missing row is a
// normal answer; any other failure is returned so callers never mistake an
// outage for "no profile yet".
func (s *Service) Exists(ctx context.Context, userID string) (bool, error) {
	if cached, ok := s.exists.Get(userID); ok {
		return cached.(bool), nil
	}

	var rows []LenderProfile
	err := s.backend.Select(ctx, backend.TableLoanAgents, backend.Filter{"user_id": userID}, &rows)
	if errors.Is(err, serviceerr.ErrNotFound) {
		s.exists.SetDefault(userID, false)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("looking up lender profile: %w", err)
	}

	found := len(rows) > 0
	s.exists.SetDefault(userID, found)

	return found, nil
}

// Get loads the lender's profile row.
func (s *Service) Get(ctx context.Context, userID string) (LenderProfile, error) {
	var rows []LenderProfile
	if err := s.backend.Select(ctx, backend.TableLoanAgents, backend.Filter{"user_id": userID}, &rows); err != nil {
		return LenderProfile{}, fmt.Errorf("loading lender profile: %w", err)
	}
	if len(rows) == 0 {
		return LenderProfile{}, serviceerr.ErrNotFound
	}

	return rows[0], nil
}

// Save persists a profile draft: upload the logo, upsert the loanagents
// row, replace the employment types, then upsert the loan products. Every
// step is idempotent, and the resume point survives between attempts so a
// failure partway through does not double-apply earlier steps on retry.
func (s *Service) Save(ctx context.Context, draft Draft) error {
	if draft.Profile.UserID == "" {
		return &serviceerr.Error{Err: serviceerr.CodeInvalidRequest, Description: "profile is missing its owner"}
	}
	if draft.Profile.Name == "" {
		return &serviceerr.Error{Err: serviceerr.CodeInvalidRequest, Description: "profile needs a name"}
	}

	progress := s.resumePoint(draft.Profile.UserID)
	slogctx.Debug(ctx, "Saving lender profile", "user_id", draft.Profile.UserID, "resume_step", int(progress.step))

	if progress.step <= stepLogo {
		if err := s.uploadLogo(ctx, draft, progress); err != nil {
			return err
		}
		progress.step = stepAgent
	}

	if progress.step <= stepAgent {
		if err := s.upsertAgent(ctx, draft, progress); err != nil {
			return err
		}
		progress.step = stepEmploymentTypes
	}

	if progress.step <= stepEmploymentTypes {
		if err := s.replaceEmploymentTypes(ctx, draft, progress); err != nil {
			return err
		}
		progress.step = stepProducts
	}

	if progress.step <= stepProducts {
		if err := s.upsertProducts(ctx, draft, progress); err != nil {
			return err
		}
		progress.step = stepDone
	}

	s.clearResumePoint(draft.Profile.UserID)
	s.exists.SetDefault(draft.Profile.UserID, true)

	return nil
}

func (s *Service) uploadLogo(ctx context.Context, draft Draft, progress *saveProgress) error {
	if draft.Logo == nil {
		return nil
	}

	objectPath := path.Join(draft.Profile.UserID, draft.Logo.FileName)
	url, err := s.backend.UploadObject(ctx, s.logoBucket, objectPath, draft.Logo.ContentType, draft.Logo.Data)
	if err != nil {
		return fmt.Errorf("uploading logo: %w", err)
	}
	progress.logoURL = url

	return nil
}

func (s *Service) upsertAgent(ctx context.Context, draft Draft, progress *saveProgress) error {
	row := draft.Profile
	if progress.logoURL != "" {
		row.LogoURL = progress.logoURL
	}

	if err := s.backend.Upsert(ctx, backend.TableLoanAgents, "user_id", []LenderProfile{row}); err != nil {
		return fmt.Errorf("upserting lender row: %w", err)
	}

	// The write does not echo the row back; read the id for the child tables.
	saved, err := s.Get(ctx, draft.Profile.UserID)
	if err != nil {
		return fmt.Errorf("reading back lender row: %w", err)
	}
	progress.agentID = saved.ID

	return nil
}

func (s *Service) replaceEmploymentTypes(ctx context.Context, draft Draft, progress *saveProgress) error {
	filter := backend.Filter{"loanagent_id": progress.agentID}
	if err := s.backend.Delete(ctx, backend.TableEmploymentTypes, filter); err != nil {
		return fmt.Errorf("clearing employment types: %w", err)
	}

	if len(draft.EmploymentTypes) == 0 {
		return nil
	}

	rows := make([]map[string]any, 0, len(draft.EmploymentTypes))
	for _, employmentType := range draft.EmploymentTypes {
		rows = append(rows, map[string]any{
			"loanagent_id":    progress.agentID,
			"employment_type": employmentType,
		})
	}
	if err := s.backend.Insert(ctx, backend.TableEmploymentTypes, rows); err != nil {
		return fmt.Errorf("inserting employment types: %w", err)
	}

	return nil
}

func (s *Service) upsertProducts(ctx context.Context, draft Draft, progress *saveProgress) error {
	if len(draft.Products) == 0 {
		return nil
	}

	rows := make([]LoanProduct, 0, len(draft.Products))
	for _, product := range draft.Products {
		product.LoanAgentID = progress.agentID
		rows = append(rows, product)
	}
	if err := s.backend.Upsert(ctx, backend.TableLoanProducts, "id", rows); err != nil {
		return fmt.Errorf("upserting loan products: %w", err)
	}

	return nil
}

func (s *Service) resumePoint(userID string) *saveProgress {
	s.mu.Lock()
	defer s.mu.Unlock()

	if progress, ok := s.progress[userID]; ok {
		return progress
	}
	progress := &saveProgress{}
	s.progress[userID] = progress

	return progress
}

func (s *Service) clearResumePoint(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.progress, userID)
}
