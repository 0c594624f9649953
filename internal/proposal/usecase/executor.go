package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	classifydomain "mailsense-backend/internal/classify/domain"
	classifyusecase "mailsense-backend/internal/classify/usecase"
	emaildomain "mailsense-backend/internal/email/domain"
	proposaldomain "mailsense-backend/internal/proposal/domain"
	"mailsense-backend/internal/proposal/repository"
)

var (
	// ErrProposalNotFound is returned when a proposal ID does not exist.
	ErrProposalNotFound = errors.New("proposal not found")
	// ErrBadStatus is returned for review or execution attempts in the wrong
	// lifecycle state.
	ErrBadStatus = errors.New("proposal is not in a valid state for this operation")
)

// ExecuteResult summarizes one execution run.
type ExecuteResult struct {
	ProposalID string                        `json:"proposal_id"`
	Status     proposaldomain.ProposalStatus `json:"status"`
	Done       int                           `json:"done"`
	Failed     int                           `json:"failed"`
	Skipped    int                           `json:"skipped"`
}

// emailStore is the slice of the email repository the executor needs.
type emailStore interface {
	GetByID(id string) (*emaildomain.Email, error)
	SetFolder(id, folder string) error
}

// Executor owns the proposal review and execution lifecycle.
type Executor interface {
	Get(id string) (*proposaldomain.CleanupProposal, error)
	List(filter repository.ProposalFilter) ([]proposaldomain.CleanupProposal, int64, error)
	Approve(id string) (*proposaldomain.CleanupProposal, error)
	Reject(id string) (*proposaldomain.CleanupProposal, error)
	// Execute runs an approved proposal's items. On a partial proposal only
	// the items that have not succeeded yet are retried.
	Execute(ctx context.Context, id string) (*ExecuteResult, error)
}

type executor struct {
	proposalRepo  repository.ProposalRepository
	emailRepo     emailStore
	provider      emaildomain.MailboxProvider
	pipeline      classifyusecase.PipelineAdapter
	archiveFolder string
	concurrency   int
}

func NewExecutor(
	proposalRepo repository.ProposalRepository,
	emailRepo emailStore,
	provider emaildomain.MailboxProvider,
	pipeline classifyusecase.PipelineAdapter,
	archiveFolder string,
	concurrency int,
) Executor {
	if concurrency < 1 {
		concurrency = 4
	}
	return &executor{
		proposalRepo:  proposalRepo,
		emailRepo:     emailRepo,
		provider:      provider,
		pipeline:      pipeline,
		archiveFolder: archiveFolder,
		concurrency:   concurrency,
	}
}

func (e *executor) Get(id string) (*proposaldomain.CleanupProposal, error) {
	p, err := e.proposalRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProposalNotFound
	}
	return p, nil
}

func (e *executor) List(filter repository.ProposalFilter) ([]proposaldomain.CleanupProposal, int64, error) {
	return e.proposalRepo.List(filter)
}

func (e *executor) Approve(id string) (*proposaldomain.CleanupProposal, error) {
	return e.review(id, proposaldomain.StatusApproved)
}

func (e *executor) Reject(id string) (*proposaldomain.CleanupProposal, error) {
	return e.review(id, proposaldomain.StatusRejected)
}

func (e *executor) review(id string, to proposaldomain.ProposalStatus) (*proposaldomain.CleanupProposal, error) {
	p, err := e.Get(id)
	if err != nil {
		return nil, err
	}
	if !proposaldomain.CanTransition(p.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrBadStatus, p.Status, to)
	}
	if err := e.proposalRepo.SetStatus(id, to, true); err != nil {
		return nil, err
	}
	return e.Get(id)
}

func (e *executor) Execute(ctx context.Context, id string) (*ExecuteResult, error) {
	p, err := e.Get(id)
	if err != nil {
		return nil, err
	}
	if p.Status != proposaldomain.StatusApproved && p.Status != proposaldomain.StatusPartial {
		return nil, fmt.Errorf("%w: cannot execute %s proposal", ErrBadStatus, p.Status)
	}

	result := &ExecuteResult{ProposalID: p.ID}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for i := range p.Items {
		item := p.Items[i]
		if item.Status == proposaldomain.ItemDone {
			result.Skipped++
			continue
		}
		g.Go(func() error {
			itemErr := e.runItem(gctx, p.Type, &item)

			now := time.Now().UTC()
			item.ExecutedAt = &now
			if itemErr != nil {
				item.Status = proposaldomain.ItemFailed
				item.Error = itemErr.Error()
			} else {
				item.Status = proposaldomain.ItemDone
				item.Error = ""
			}
			if err := e.proposalRepo.UpdateItem(&item); err != nil {
				log.Printf("[Proposals] Failed to persist item %s: %v", item.ID, err)
			}

			mu.Lock()
			if itemErr != nil {
				result.Failed++
			} else {
				result.Done++
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	status := proposaldomain.StatusExecuted
	if result.Failed > 0 {
		status = proposaldomain.StatusPartial
	}
	if err := e.proposalRepo.SetExecuted(p.ID, status); err != nil {
		return nil, err
	}
	result.Status = status

	log.Printf("[Proposals] Executed %s: %d done, %d failed, %d skipped (%s)",
		p.ID, result.Done, result.Failed, result.Skipped, status)
	return result, nil
}

func (e *executor) runItem(ctx context.Context, t proposaldomain.ProposalType, item *proposaldomain.ProposalItem) error {
	switch {
	case item.LinkID != "":
		_, err := e.pipeline.SetStatus(item.LinkID, classifydomain.PipelineQueued)
		if errors.Is(err, classifyusecase.ErrBadTransition) {
			// Already queued or extracted by an earlier run.
			return nil
		}
		return err
	case item.EmailID != "":
		return e.archiveEmail(ctx, item.EmailID)
	}
	return errors.New("item references nothing")
}

func (e *executor) archiveEmail(ctx context.Context, emailID string) error {
	email, err := e.emailRepo.GetByID(emailID)
	if err != nil {
		return err
	}
	if email == nil {
		return errors.New("email no longer exists")
	}
	if email.Folder == e.archiveFolder {
		return nil
	}

	if err := e.provider.Move(ctx, email.Folder, email.UID, e.archiveFolder); err != nil {
		return err
	}
	return e.emailRepo.SetFolder(emailID, e.archiveFolder)
}
