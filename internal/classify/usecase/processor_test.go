package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	classifydomain "mailsense-backend/internal/classify/domain"
	"mailsense-backend/internal/classify/repository"
	emaildomain "mailsense-backend/internal/email/domain"
	emailrepo "mailsense-backend/internal/email/repository"
	"mailsense-backend/pkg/ai"
)

// fakeOracle answers from a scripted verdict map and counts calls.
type fakeOracle struct {
	mu sync.Mutex
	// verdicts is keyed by subject so tests stay readable.
	verdicts map[string]ai.EmailVerdict
	// badFirst makes the oracle break the contract for a subject the given
	// number of times before the scripted verdict takes over.
	badFirst map[string]int
	calls    int
	err      error
}

func (f *fakeOracle) Name() string { return "fake/test" }

func (f *fakeOracle) ClassifyEmails(ctx context.Context, batch []ai.EmailInput) (map[string]ai.EmailVerdict, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := map[string]ai.EmailVerdict{}
	for _, in := range batch {
		if n := f.badFirst[in.Subject]; n > 0 {
			f.badFirst[in.Subject] = n - 1
			out[in.ID] = ai.EmailVerdict{Category: "nonsense"}
			continue
		}
		if v, ok := f.verdicts[in.Subject]; ok {
			out[in.ID] = v
		}
	}
	return out, nil
}

func (f *fakeOracle) ScoreLinks(ctx context.Context, batch ai.LinkBatch) ([]ai.LinkScore, error) {
	return nil, nil
}

func (f *fakeOracle) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type ProcessorTestSuite struct {
	suite.Suite
	db         *gorm.DB
	emailRepo  emailrepo.EmailRepository
	cRepo      repository.ClassificationRepository
	linkRepo   repository.LinkRepository
	senderRepo repository.SenderRepository
	oracle     *fakeOracle
	processor  Processor
}

func (s *ProcessorTestSuite) SetupSuite() {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	s.Require().NoError(err)
	s.Require().NoError(db.AutoMigrate(
		&emaildomain.Email{},
		&classifydomain.Classification{},
		&classifydomain.ExtractedLink{},
		&classifydomain.SenderProfile{},
	))
	s.db = db
}

func (s *ProcessorTestSuite) SetupTest() {
	s.db.Exec("DELETE FROM emails")
	s.db.Exec("DELETE FROM classifications")
	s.db.Exec("DELETE FROM extracted_links")
	s.db.Exec("DELETE FROM sender_profiles")

	s.emailRepo = emailrepo.NewEmailRepository(s.db)
	s.cRepo = repository.NewClassificationRepository(s.db)
	s.linkRepo = repository.NewLinkRepository(s.db)
	s.senderRepo = repository.NewSenderRepository(s.db)
	s.oracle = &fakeOracle{
		verdicts: map[string]ai.EmailVerdict{},
		badFirst: map[string]int{},
	}
	s.processor = s.newProcessor(1)
}

func (s *ProcessorTestSuite) newProcessor(maxAttempts int) Processor {
	aggregator := NewSenderAggregator(s.senderRepo, AggregatorConfig{
		RollingWindow: 5,
		LowRelevance:  0.3,
		MinEmails:     3,
	})
	extractor := NewLinkExtractor(s.linkRepo, s.oracle, 0.5)
	return NewProcessor(s.emailRepo, s.cRepo, s.oracle, aggregator, extractor, ProcessorConfig{
		BatchSize:   2,
		MaxAttempts: maxAttempts,
	})
}

func (s *ProcessorTestSuite) storeEmail(subject, from, body string) *emaildomain.Email {
	text := body
	sent := time.Now().UTC().Add(-time.Hour)
	email := &emaildomain.Email{
		ID:          uuid.New().String(),
		MessageID:   "<" + uuid.New().String() + "@x>",
		Folder:      "INBOX",
		FromAddress: from,
		Subject:     subject,
		BodyText:    &text,
		DateSent:    &sent,
	}
	_, err := s.emailRepo.Upsert(email)
	s.Require().NoError(err)
	return email
}

func (s *ProcessorTestSuite) TestProcessPendingPersistsVerdicts() {
	s.storeEmail("weekly news", "news@example.com", "read https://example.com/article today")
	s.storeEmail("your invoice", "billing@example.com", "amount due")

	s.oracle.verdicts["weekly news"] = ai.EmailVerdict{
		Category: "newsletter", Confidence: 0.9, Topics: []string{"news"},
		RelevanceScore: 0.7, Summary: "weekly roundup",
	}
	s.oracle.verdicts["your invoice"] = ai.EmailVerdict{
		Category: "transactional", Confidence: 0.95, RelevanceScore: 0.4, Summary: "invoice",
	}

	result, err := s.processor.ProcessPending(context.Background(), 0)
	s.Require().NoError(err)
	s.Equal(2, result.Classified)
	s.Equal(0, result.Failed)

	stats, err := s.processor.Stats()
	s.Require().NoError(err)
	s.Equal(int64(2), stats.Classified)
	s.Equal(int64(0), stats.Unclassified)
	s.Equal(int64(1), stats.ByCategory["newsletter"])

	// The sender profiles were refreshed alongside.
	profile, err := s.senderRepo.GetByAddress("news@example.com")
	s.Require().NoError(err)
	s.Require().NotNil(profile)
	s.Equal(1, profile.TotalEmails)
	s.Equal(classifydomain.SenderNewsletter, profile.SenderType)
}

func (s *ProcessorTestSuite) TestInvalidVerdictLeavesEmailUnclassified() {
	s.storeEmail("odd one", "odd@example.com", "hello")
	s.oracle.verdicts["odd one"] = ai.EmailVerdict{
		Category: "spam", Confidence: 0.9, RelevanceScore: 0.5,
	}

	result, err := s.processor.ProcessPending(context.Background(), 0)
	s.Require().NoError(err)
	s.Equal(0, result.Classified)
	s.Equal(1, result.Failed)

	stats, err := s.processor.Stats()
	s.Require().NoError(err)
	s.Equal(int64(1), stats.Unclassified)
}

func (s *ProcessorTestSuite) TestConfidenceOutOfRangeRejected() {
	s.storeEmail("sure thing", "x@example.com", "hello")
	s.oracle.verdicts["sure thing"] = ai.EmailVerdict{
		Category: "personal", Confidence: 1.7, RelevanceScore: 0.5, Summary: "note",
	}

	result, err := s.processor.ProcessPending(context.Background(), 0)
	s.Require().NoError(err)
	s.Equal(1, result.Failed)
}

func (s *ProcessorTestSuite) TestEmptySummaryRejected() {
	s.storeEmail("quiet one", "q@example.com", "hello")
	s.oracle.verdicts["quiet one"] = ai.EmailVerdict{
		Category: "personal", Confidence: 0.9, RelevanceScore: 0.5, Summary: "   ",
	}

	result, err := s.processor.ProcessPending(context.Background(), 0)
	s.Require().NoError(err)
	s.Equal(1, result.Failed)
}

func (s *ProcessorTestSuite) TestContractViolationRetriedIndividually() {
	processor := s.newProcessor(2)
	s.storeEmail("flaky", "f@example.com", "hello")
	s.oracle.verdicts["flaky"] = ai.EmailVerdict{
		Category: "personal", Confidence: 0.8, RelevanceScore: 0.6, Summary: "note",
	}
	s.oracle.badFirst["flaky"] = 1

	result, err := processor.ProcessPending(context.Background(), 0)
	s.Require().NoError(err)
	s.Equal(1, result.Classified)
	s.Equal(0, result.Failed)
	// One batch call plus one individual resubmission.
	s.Equal(2, s.oracle.callCount())
}

func (s *ProcessorTestSuite) TestContractViolationExhaustsAttemptBudget() {
	processor := s.newProcessor(2)
	s.storeEmail("hopeless", "h@example.com", "hello")
	s.oracle.badFirst["hopeless"] = 5

	result, err := processor.ProcessPending(context.Background(), 0)
	s.Require().NoError(err)
	s.Equal(0, result.Classified)
	s.Equal(1, result.Failed)
	s.Equal(2, s.oracle.callCount())

	stats, err := processor.Stats()
	s.Require().NoError(err)
	s.Equal(int64(1), stats.Unclassified)
}

func (s *ProcessorTestSuite) TestClaimedEmailIsSkippedByOverlappingRuns() {
	email := s.storeEmail("busy", "b@example.com", "hello")
	s.oracle.verdicts["busy"] = ai.EmailVerdict{
		Category: "personal", Confidence: 0.8, RelevanceScore: 0.6, Summary: "note",
	}

	p := s.processor.(*processor)
	s.Require().Len(p.claim([]string{email.ID}), 1)

	// A run overlapping the claim never resubmits the email.
	result, err := s.processor.ProcessPending(context.Background(), 0)
	s.Require().NoError(err)
	s.Equal(1, result.Skipped)
	s.Equal(0, result.Classified)
	s.Equal(0, s.oracle.callCount())

	_, _, err = s.processor.ProcessEmail(context.Background(), email.ID)
	s.Error(err)

	// Releasing the claim lets the next run pick it up.
	p.release([]string{email.ID})
	result, err = s.processor.ProcessPending(context.Background(), 0)
	s.Require().NoError(err)
	s.Equal(1, result.Classified)
}

func (s *ProcessorTestSuite) TestProcessEmailCachesByContentHash() {
	email := s.storeEmail("stable subject", "a@example.com", "stable body")
	s.oracle.verdicts["stable subject"] = ai.EmailVerdict{
		Category: "personal", Confidence: 0.8, RelevanceScore: 0.9, Summary: "note",
	}

	first, cached, err := s.processor.ProcessEmail(context.Background(), email.ID)
	s.Require().NoError(err)
	s.False(cached)
	s.Require().NotNil(first)
	callsAfterFirst := s.oracle.callCount()

	second, cached, err := s.processor.ProcessEmail(context.Background(), email.ID)
	s.Require().NoError(err)
	s.True(cached)
	s.Equal(first.ID, second.ID)
	s.Equal(callsAfterFirst, s.oracle.callCount())
}

func (s *ProcessorTestSuite) TestProcessEmailReclassifiesOnContentChange() {
	email := s.storeEmail("subject", "a@example.com", "original body")
	s.oracle.verdicts["subject"] = ai.EmailVerdict{
		Category: "personal", Confidence: 0.8, RelevanceScore: 0.9, Summary: "note",
	}

	first, _, err := s.processor.ProcessEmail(context.Background(), email.ID)
	s.Require().NoError(err)

	// Body changes, so the stored hash no longer matches.
	newBody := "edited body"
	s.db.Model(&emaildomain.Email{}).Where("id = ?", email.ID).Update("body_text", newBody)

	second, cached, err := s.processor.ProcessEmail(context.Background(), email.ID)
	s.Require().NoError(err)
	s.False(cached)
	s.NotEqual(first.ContentHash, second.ContentHash)

	// Still exactly one classification row for the email.
	var count int64
	s.db.Model(&classifydomain.Classification{}).Where("email_id = ?", email.ID).Count(&count)
	s.Equal(int64(1), count)
}

func (s *ProcessorTestSuite) TestProcessEmailNotFound() {
	_, _, err := s.processor.ProcessEmail(context.Background(), "missing")
	s.ErrorIs(err, ErrEmailNotFound)
}

func (s *ProcessorTestSuite) TestLinksStoredForClassifiedEmail() {
	s.storeEmail("with links", "n@example.com",
		"see https://github.com/acme/tool and https://example.com/unsubscribe now")
	s.oracle.verdicts["with links"] = ai.EmailVerdict{
		Category: "newsletter", Confidence: 0.9, RelevanceScore: 0.8, Summary: "roundup",
	}

	result, err := s.processor.ProcessPending(context.Background(), 0)
	s.Require().NoError(err)
	s.Equal(1, result.Classified)
	s.Equal(1, result.Links)

	links, err := s.linkRepo.ListByEmail(s.firstEmailID())
	s.Require().NoError(err)
	s.Require().Len(links, 1)
	s.Equal("https://github.com/acme/tool", links[0].URL)
	s.Equal(classifydomain.LinkTypeGithub, links[0].LinkType)
}

func (s *ProcessorTestSuite) firstEmailID() string {
	var email emaildomain.Email
	s.Require().NoError(s.db.First(&email).Error)
	return email.ID
}

func TestProcessorTestSuite(t *testing.T) {
	suite.Run(t, new(ProcessorTestSuite))
}
