package usecase

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	classifydomain "mailsense-backend/internal/classify/domain"
	classifyrepo "mailsense-backend/internal/classify/repository"
	emaildomain "mailsense-backend/internal/email/domain"
	proposaldomain "mailsense-backend/internal/proposal/domain"
	"mailsense-backend/internal/proposal/repository"
)

type GeneratorTestSuite struct {
	suite.Suite
	db            *gorm.DB
	proposalRepo  repository.ProposalRepository
	candidateRepo repository.CandidateRepository
	senderRepo    classifyrepo.SenderRepository
	linkRepo      classifyrepo.LinkRepository
	generator     Generator
}

func (s *GeneratorTestSuite) SetupSuite() {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	s.Require().NoError(err)
	s.Require().NoError(db.AutoMigrate(
		&emaildomain.Email{},
		&classifydomain.Classification{},
		&classifydomain.ExtractedLink{},
		&classifydomain.SenderProfile{},
		&proposaldomain.CleanupProposal{},
		&proposaldomain.ProposalItem{},
	))
	s.db = db
}

func (s *GeneratorTestSuite) SetupTest() {
	for _, table := range []string{"emails", "classifications", "extracted_links", "sender_profiles", "cleanup_proposals", "proposal_items"} {
		s.db.Exec("DELETE FROM " + table)
	}

	s.proposalRepo = repository.NewProposalRepository(s.db)
	s.candidateRepo = repository.NewCandidateRepository(s.db)
	s.senderRepo = classifyrepo.NewSenderRepository(s.db)
	s.linkRepo = classifyrepo.NewLinkRepository(s.db)
	s.generator = NewGenerator(s.proposalRepo, s.candidateRepo, s.senderRepo, s.linkRepo, GeneratorConfig{
		ArchiveAfterDays:    30,
		ArchiveCategories:   []string{"noise", "marketing"},
		ArchiveFolder:       "Archive",
		LowRelevance:        0.3,
		MinEmails:           3,
		DisengagedDays:      60,
		ExtractMinRelevance: 0.6,
		OverlapRatio:        0.5,
	})
}

func (s *GeneratorTestSuite) storeEmail(from, folder string, sent time.Time) *emaildomain.Email {
	email := &emaildomain.Email{
		ID:          uuid.New().String(),
		MessageID:   "<" + uuid.New().String() + "@x>",
		FromAddress: from,
		Folder:      folder,
		Subject:     "subject",
		DateSent:    &sent,
	}
	s.Require().NoError(s.db.Create(email).Error)
	return email
}

func (s *GeneratorTestSuite) storeClassification(emailID string, category classifydomain.Category) {
	s.Require().NoError(s.db.Create(&classifydomain.Classification{
		ID:           uuid.New().String(),
		EmailID:      emailID,
		Category:     category,
		ClassifiedAt: time.Now().UTC(),
	}).Error)
}

func (s *GeneratorTestSuite) storeDisengagedSender(address string, totalEmails int) *classifydomain.SenderProfile {
	lastSeen := time.Now().UTC().AddDate(0, 0, -90)
	profile := &classifydomain.SenderProfile{
		ID:             uuid.New().String(),
		EmailAddress:   address,
		SenderType:     classifydomain.SenderNewsletter,
		TotalEmails:    totalEmails,
		RelevanceScore: 0.1,
		LastSeen:       &lastSeen,
		CategoryCounts: classifydomain.TopicCountMap{"newsletter": totalEmails},
	}
	s.Require().NoError(s.db.Create(profile).Error)
	return profile
}

func (s *GeneratorTestSuite) TestUnsubscribeProposalFreezesSenderEmails() {
	s.storeDisengagedSender("noise@example.com", 10)
	old := time.Now().UTC().AddDate(0, 0, -10)
	for i := 0; i < 10; i++ {
		s.storeEmail("noise@example.com", "INBOX", old)
	}

	result, err := s.generator.Generate()
	s.Require().NoError(err)
	s.Equal(1, result.Created)

	proposals, _, err := s.proposalRepo.List(repository.ProposalFilter{Type: "unsubscribe"})
	s.Require().NoError(err)
	s.Require().Len(proposals, 1)

	p := proposals[0]
	s.Equal(proposaldomain.StatusPending, p.Status)
	s.Equal(10, p.AffectedCount)
	s.Len(p.Items, 10)
	s.Equal("noise@example.com", p.Criteria.SenderAddress)
}

func (s *GeneratorTestSuite) TestUnsubscribeCoversOnlyUnopenedEmails() {
	sender := s.storeDisengagedSender("noise@example.com", 10)
	old := time.Now().UTC().AddDate(0, 0, -10)
	for i := 0; i < 6; i++ {
		s.storeEmail("noise@example.com", "INBOX", old)
	}
	for i := 0; i < 4; i++ {
		opened := s.storeEmail("noise@example.com", "INBOX", old)
		s.db.Model(&emaildomain.Email{}).Where("id = ?", opened.ID).Update("is_read", true)
	}

	result, err := s.generator.Generate()
	s.Require().NoError(err)
	s.Equal(1, result.Created)

	proposals, _, err := s.proposalRepo.List(repository.ProposalFilter{Type: "unsubscribe"})
	s.Require().NoError(err)
	s.Require().Len(proposals, 1)

	p := proposals[0]
	s.Equal(6, p.AffectedCount)
	s.Require().Len(p.Items, 6)

	// Each item records what will happen and why.
	for _, item := range p.Items {
		s.Equal(proposaldomain.ItemActionArchive, item.Action)
		s.Equal(sender.ID, item.SenderID)
		s.Contains(item.Reason, "noise@example.com")
	}
}

func (s *GeneratorTestSuite) TestRegenerationIsSuppressedByOverlap() {
	s.storeDisengagedSender("noise@example.com", 5)
	old := time.Now().UTC().AddDate(0, 0, -10)
	for i := 0; i < 5; i++ {
		s.storeEmail("noise@example.com", "INBOX", old)
	}

	first, err := s.generator.Generate()
	s.Require().NoError(err)
	s.Equal(1, first.Created)

	second, err := s.generator.Generate()
	s.Require().NoError(err)
	s.Equal(0, second.Created)
	s.Equal(1, second.Suppressed)
}

func (s *GeneratorTestSuite) TestArchiveProposalSelectsOldLowValueEmails() {
	old := time.Now().UTC().AddDate(0, 0, -45)
	fresh := time.Now().UTC().AddDate(0, 0, -5)

	oldNoise := s.storeEmail("a@example.com", "INBOX", old)
	s.storeClassification(oldNoise.ID, classifydomain.CategoryNoise)

	freshNoise := s.storeEmail("b@example.com", "INBOX", fresh)
	s.storeClassification(freshNoise.ID, classifydomain.CategoryNoise)

	oldPersonal := s.storeEmail("c@example.com", "INBOX", old)
	s.storeClassification(oldPersonal.ID, classifydomain.CategoryPersonal)

	archived := s.storeEmail("d@example.com", "Archive", old)
	s.storeClassification(archived.ID, classifydomain.CategoryNoise)

	result, err := s.generator.Generate()
	s.Require().NoError(err)
	s.Equal(1, result.Created)

	proposals, _, err := s.proposalRepo.List(repository.ProposalFilter{Type: "archive"})
	s.Require().NoError(err)
	s.Require().Len(proposals, 1)
	s.Require().Len(proposals[0].Items, 1)
	s.Equal(oldNoise.ID, proposals[0].Items[0].EmailID)
}

func (s *GeneratorTestSuite) TestExtractionProposalCoversScoredPendingLinks() {
	email := s.storeEmail("n@example.com", "INBOX", time.Now().UTC())

	high := 0.9
	low := 0.2
	_, err := s.linkRepo.CreateBatch([]classifydomain.ExtractedLink{
		{EmailID: email.ID, URL: "https://example.com/good", RelevanceScore: &high},
		{EmailID: email.ID, URL: "https://example.com/meh", RelevanceScore: &low},
	})
	s.Require().NoError(err)

	result, err := s.generator.Generate()
	s.Require().NoError(err)
	s.Equal(1, result.Created)

	proposals, _, err := s.proposalRepo.List(repository.ProposalFilter{Type: "extract_links"})
	s.Require().NoError(err)
	s.Require().Len(proposals, 1)
	s.Require().Len(proposals[0].Items, 1)
}

func (s *GeneratorTestSuite) TestNothingToProposeCreatesNothing() {
	result, err := s.generator.Generate()
	s.Require().NoError(err)
	s.Equal(0, result.Created)
	s.Equal(0, result.Suppressed)
}

func TestGeneratorTestSuite(t *testing.T) {
	suite.Run(t, new(GeneratorTestSuite))
}
