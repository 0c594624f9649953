package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	classifydomain "mailsense-backend/internal/classify/domain"
	classifyrepo "mailsense-backend/internal/classify/repository"
	classifyusecase "mailsense-backend/internal/classify/usecase"
	emaildomain "mailsense-backend/internal/email/domain"
	emailrepo "mailsense-backend/internal/email/repository"
	proposaldomain "mailsense-backend/internal/proposal/domain"
	"mailsense-backend/internal/proposal/repository"
)

// moveProvider is a MailboxProvider that only supports Move and fails for a
// chosen set of UIDs.
type moveProvider struct {
	failUIDs map[uint32]bool
	moved    []uint32
}

func (m *moveProvider) Connect(ctx context.Context) error { return nil }
func (m *moveProvider) Disconnect() error                 { return nil }
func (m *moveProvider) Connected() bool                   { return true }
func (m *moveProvider) ListFolders(ctx context.Context) ([]string, error) {
	return nil, nil
}
func (m *moveProvider) FolderStatus(ctx context.Context, folder string) (*emaildomain.FolderStatus, error) {
	return nil, nil
}
func (m *moveProvider) FetchAbove(ctx context.Context, folder string, afterUID uint32, max int) ([]emaildomain.RawMessage, error) {
	return nil, nil
}
func (m *moveProvider) MarkRead(ctx context.Context, folder string, uid uint32, read bool) error {
	return nil
}
func (m *moveProvider) SetStarred(ctx context.Context, folder string, uid uint32, starred bool) error {
	return nil
}
func (m *moveProvider) Move(ctx context.Context, folder string, uid uint32, dest string) error {
	if m.failUIDs[uid] {
		return errors.New("mailbox rejected move")
	}
	m.moved = append(m.moved, uid)
	return nil
}

type ExecutorTestSuite struct {
	suite.Suite
	db           *gorm.DB
	proposalRepo repository.ProposalRepository
	emailRepo    emailrepo.EmailRepository
	linkRepo     classifyrepo.LinkRepository
	provider     *moveProvider
	executor     Executor
}

func (s *ExecutorTestSuite) SetupSuite() {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	s.Require().NoError(err)
	s.Require().NoError(db.AutoMigrate(
		&emaildomain.Email{},
		&classifydomain.ExtractedLink{},
		&proposaldomain.CleanupProposal{},
		&proposaldomain.ProposalItem{},
	))
	s.db = db
}

func (s *ExecutorTestSuite) SetupTest() {
	for _, table := range []string{"emails", "extracted_links", "cleanup_proposals", "proposal_items"} {
		s.db.Exec("DELETE FROM " + table)
	}

	s.proposalRepo = repository.NewProposalRepository(s.db)
	s.emailRepo = emailrepo.NewEmailRepository(s.db)
	s.linkRepo = classifyrepo.NewLinkRepository(s.db)
	s.provider = &moveProvider{failUIDs: map[uint32]bool{}}

	pipeline := classifyusecase.NewPipelineAdapter(s.linkRepo, 0.6)
	// Concurrency of 1 keeps sqlite happy under test.
	s.executor = NewExecutor(s.proposalRepo, s.emailRepo, s.provider, pipeline, "Archive", 1)
}

func (s *ExecutorTestSuite) storeEmail(uid uint32) *emaildomain.Email {
	email := &emaildomain.Email{
		ID:          uuid.New().String(),
		MessageID:   "<" + uuid.New().String() + "@x>",
		UID:         uid,
		Folder:      "INBOX",
		FromAddress: "sender@example.com",
	}
	s.Require().NoError(s.db.Create(email).Error)
	return email
}

func (s *ExecutorTestSuite) storeArchiveProposal(emailIDs ...string) *proposaldomain.CleanupProposal {
	items := make([]proposaldomain.ProposalItem, 0, len(emailIDs))
	for _, id := range emailIDs {
		items = append(items, proposaldomain.ProposalItem{EmailID: id})
	}
	p := &proposaldomain.CleanupProposal{
		Type:   proposaldomain.ProposalArchive,
		Status: proposaldomain.StatusPending,
		Title:  "archive old emails",
		Items:  items,
	}
	s.Require().NoError(s.proposalRepo.Create(p))
	return p
}

func (s *ExecutorTestSuite) TestApproveThenExecuteMovesEmails() {
	a := s.storeEmail(1)
	b := s.storeEmail(2)
	p := s.storeArchiveProposal(a.ID, b.ID)

	approved, err := s.executor.Approve(p.ID)
	s.Require().NoError(err)
	s.Equal(proposaldomain.StatusApproved, approved.Status)

	result, err := s.executor.Execute(context.Background(), p.ID)
	s.Require().NoError(err)
	s.Equal(proposaldomain.StatusExecuted, result.Status)
	s.Equal(2, result.Done)
	s.Equal(0, result.Failed)

	// Local folder tracking follows the server move.
	stored, err := s.emailRepo.GetByID(a.ID)
	s.Require().NoError(err)
	s.Equal("Archive", stored.Folder)
}

func (s *ExecutorTestSuite) TestPartialExecutionRetriesOnlyFailedItems() {
	a := s.storeEmail(1)
	b := s.storeEmail(2)
	c := s.storeEmail(3)
	p := s.storeArchiveProposal(a.ID, b.ID, c.ID)

	_, err := s.executor.Approve(p.ID)
	s.Require().NoError(err)

	s.provider.failUIDs[2] = true
	result, err := s.executor.Execute(context.Background(), p.ID)
	s.Require().NoError(err)
	s.Equal(proposaldomain.StatusPartial, result.Status)
	s.Equal(2, result.Done)
	s.Equal(1, result.Failed)

	// The failed item carries its error for review.
	stored, err := s.executor.Get(p.ID)
	s.Require().NoError(err)
	failed := 0
	for _, item := range stored.Items {
		if item.Status == proposaldomain.ItemFailed {
			failed++
			s.Contains(item.Error, "rejected")
		}
	}
	s.Equal(1, failed)

	// Retry after the transient failure clears: only the failed item runs.
	s.provider.failUIDs = map[uint32]bool{}
	s.provider.moved = nil
	retry, err := s.executor.Execute(context.Background(), p.ID)
	s.Require().NoError(err)
	s.Equal(proposaldomain.StatusExecuted, retry.Status)
	s.Equal(1, retry.Done)
	s.Equal(2, retry.Skipped)
	s.Equal([]uint32{2}, s.provider.moved)
}

func (s *ExecutorTestSuite) TestRejectBlocksExecution() {
	a := s.storeEmail(1)
	p := s.storeArchiveProposal(a.ID)

	rejected, err := s.executor.Reject(p.ID)
	s.Require().NoError(err)
	s.Equal(proposaldomain.StatusRejected, rejected.Status)

	_, err = s.executor.Execute(context.Background(), p.ID)
	s.ErrorIs(err, ErrBadStatus)
}

func (s *ExecutorTestSuite) TestReviewIsSingleShot() {
	a := s.storeEmail(1)
	p := s.storeArchiveProposal(a.ID)

	_, err := s.executor.Approve(p.ID)
	s.Require().NoError(err)

	_, err = s.executor.Reject(p.ID)
	s.ErrorIs(err, ErrBadStatus)
}

func (s *ExecutorTestSuite) TestExecuteRequiresApproval() {
	a := s.storeEmail(1)
	p := s.storeArchiveProposal(a.ID)

	_, err := s.executor.Execute(context.Background(), p.ID)
	s.ErrorIs(err, ErrBadStatus)
}

func (s *ExecutorTestSuite) TestExecuteQueuesLinkItems() {
	email := s.storeEmail(1)
	high := 0.9
	_, err := s.linkRepo.CreateBatch([]classifydomain.ExtractedLink{
		{EmailID: email.ID, URL: "https://example.com/good", RelevanceScore: &high},
	})
	s.Require().NoError(err)

	links, err := s.linkRepo.ListByEmail(email.ID)
	s.Require().NoError(err)
	s.Require().Len(links, 1)

	p := &proposaldomain.CleanupProposal{
		Type:   proposaldomain.ProposalExtractLinks,
		Status: proposaldomain.StatusPending,
		Items:  []proposaldomain.ProposalItem{{LinkID: links[0].ID}},
	}
	s.Require().NoError(s.proposalRepo.Create(p))

	_, err = s.executor.Approve(p.ID)
	s.Require().NoError(err)
	result, err := s.executor.Execute(context.Background(), p.ID)
	s.Require().NoError(err)
	s.Equal(proposaldomain.StatusExecuted, result.Status)

	queued, err := s.linkRepo.GetByID(links[0].ID)
	s.Require().NoError(err)
	s.Equal(classifydomain.PipelineQueued, queued.PipelineStatus)
	s.NotEmpty(queued.Extractor)
}

func (s *ExecutorTestSuite) TestGetUnknownProposal() {
	_, err := s.executor.Get("missing")
	s.ErrorIs(err, ErrProposalNotFound)
}

func TestExecutorTestSuite(t *testing.T) {
	suite.Run(t, new(ExecutorTestSuite))
}
