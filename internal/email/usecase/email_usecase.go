package usecase

import (
	"context"
	"errors"
	"log"

	emaildomain "mailsense-backend/internal/email/domain"
	"mailsense-backend/internal/email/repository"
)

// ErrEmailNotFound is returned when an email ID does not exist.
var ErrEmailNotFound = errors.New("email not found")

// EngagementRecorder receives read/star signals for sender profiles.
type EngagementRecorder interface {
	RecordOpened(address string) error
	RecordActedOn(address string) error
}

// EmailUsecase serves the stored-email surface: listing, stats and the flag
// mutations that also reach back to the mailbox server.
type EmailUsecase interface {
	List(filter repository.EmailFilter) ([]emaildomain.Email, int64, error)
	GetByID(id string) (*emaildomain.Email, error)
	Stats() (*repository.EmailStats, error)
	SetRead(ctx context.Context, id string, read bool) (*emaildomain.Email, error)
	SetStarred(ctx context.Context, id string, starred bool) (*emaildomain.Email, error)
}

type emailUsecase struct {
	repo       repository.EmailRepository
	provider   emaildomain.MailboxProvider
	engagement EngagementRecorder
}

func NewEmailUsecase(repo repository.EmailRepository, provider emaildomain.MailboxProvider, engagement EngagementRecorder) EmailUsecase {
	return &emailUsecase{
		repo:       repo,
		provider:   provider,
		engagement: engagement,
	}
}

func (u *emailUsecase) List(filter repository.EmailFilter) ([]emaildomain.Email, int64, error) {
	return u.repo.List(filter)
}

func (u *emailUsecase) GetByID(id string) (*emaildomain.Email, error) {
	email, err := u.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if email == nil {
		return nil, ErrEmailNotFound
	}
	return email, nil
}

func (u *emailUsecase) SetRead(ctx context.Context, id string, read bool) (*emaildomain.Email, error) {
	email, err := u.GetByID(id)
	if err != nil {
		return nil, err
	}

	if err := u.repo.SetRead(id, read); err != nil {
		return nil, err
	}

	// Server-side flag and sender engagement are best-effort; the local
	// record is the source of truth for the API.
	if u.provider.Connected() {
		if err := u.provider.MarkRead(ctx, email.Folder, email.UID, read); err != nil {
			log.Printf("[Emails] Failed to sync read flag for %s: %v", id, err)
		}
	}
	if read && u.engagement != nil {
		if err := u.engagement.RecordOpened(email.FromAddress); err != nil {
			log.Printf("[Emails] Failed to record open: %v", err)
		}
	}

	email.IsRead = read
	return email, nil
}

func (u *emailUsecase) SetStarred(ctx context.Context, id string, starred bool) (*emaildomain.Email, error) {
	email, err := u.GetByID(id)
	if err != nil {
		return nil, err
	}

	if err := u.repo.SetStarred(id, starred); err != nil {
		return nil, err
	}

	if u.provider.Connected() {
		if err := u.provider.SetStarred(ctx, email.Folder, email.UID, starred); err != nil {
			log.Printf("[Emails] Failed to sync star flag for %s: %v", id, err)
		}
	}
	if starred && u.engagement != nil {
		if err := u.engagement.RecordActedOn(email.FromAddress); err != nil {
			log.Printf("[Emails] Failed to record action: %v", err)
		}
	}

	email.IsStarred = starred
	return email, nil
}

func (u *emailUsecase) Stats() (*repository.EmailStats, error) {
	return u.repo.Stats()
}
