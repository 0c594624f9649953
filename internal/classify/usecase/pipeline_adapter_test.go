package usecase

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	classifydomain "mailsense-backend/internal/classify/domain"
	"mailsense-backend/internal/classify/repository"
)

type PipelineAdapterTestSuite struct {
	suite.Suite
	db       *gorm.DB
	linkRepo repository.LinkRepository
	adapter  PipelineAdapter
}

func (s *PipelineAdapterTestSuite) SetupSuite() {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	s.Require().NoError(err)
	s.Require().NoError(db.AutoMigrate(&classifydomain.ExtractedLink{}))
	s.db = db
}

func (s *PipelineAdapterTestSuite) SetupTest() {
	s.db.Exec("DELETE FROM extracted_links")
	s.linkRepo = repository.NewLinkRepository(s.db)
	s.adapter = NewPipelineAdapter(s.linkRepo, 0.6)
}

func (s *PipelineAdapterTestSuite) storeLink(url string, linkType classifydomain.LinkType, relevance *float64) classifydomain.ExtractedLink {
	links := []classifydomain.ExtractedLink{{
		EmailID:        "email-1",
		URL:            url,
		LinkType:       linkType,
		RelevanceScore: relevance,
	}}
	_, err := s.linkRepo.CreateBatch(links)
	s.Require().NoError(err)
	return links[0]
}

func (s *PipelineAdapterTestSuite) TestQueueReadyRespectsThresholdAndRouting() {
	high := 0.9
	low := 0.3
	repo := s.storeLink("https://github.com/a/b", classifydomain.LinkTypeGithub, &high)
	s.storeLink("https://example.com/meh", classifydomain.LinkTypeOther, &low)
	s.storeLink("https://example.com/unscored", classifydomain.LinkTypeOther, nil)

	result, err := s.adapter.QueueReady(0)
	s.Require().NoError(err)
	s.Equal(1, result.Queued)

	queued, err := s.linkRepo.GetByID(repo.ID)
	s.Require().NoError(err)
	s.Equal(classifydomain.PipelineQueued, queued.PipelineStatus)
	s.Equal("repo-reader", queued.Extractor)
	s.NotNil(queued.QueuedAt)
}

func (s *PipelineAdapterTestSuite) TestSetStatusEnforcesTransitions() {
	high := 0.9
	link := s.storeLink("https://example.com/a", classifydomain.LinkTypeOther, &high)

	_, err := s.adapter.SetStatus(link.ID, classifydomain.PipelineQueued)
	s.Require().NoError(err)

	extracted, err := s.adapter.SetStatus(link.ID, classifydomain.PipelineExtracted)
	s.Require().NoError(err)
	s.Equal(classifydomain.PipelineExtracted, extracted.PipelineStatus)
	s.NotNil(extracted.CompletedAt)

	// Completed links never move back to queued.
	_, err = s.adapter.SetStatus(link.ID, classifydomain.PipelineQueued)
	s.ErrorIs(err, ErrBadTransition)

	// An explicit reset reopens the link.
	reset, err := s.adapter.SetStatus(link.ID, classifydomain.PipelinePending)
	s.Require().NoError(err)
	s.Equal(classifydomain.PipelinePending, reset.PipelineStatus)
	s.Nil(reset.QueuedAt)
}

func (s *PipelineAdapterTestSuite) TestSetStatusUnknownLinkAndStatus() {
	_, err := s.adapter.SetStatus("missing", classifydomain.PipelineQueued)
	s.ErrorIs(err, ErrLinkNotFound)

	high := 0.9
	link := s.storeLink("https://example.com/a", classifydomain.LinkTypeOther, &high)
	_, err = s.adapter.SetStatus(link.ID, "bogus")
	s.ErrorIs(err, ErrBadTransition)
}

func TestPipelineAdapterTestSuite(t *testing.T) {
	suite.Run(t, new(PipelineAdapterTestSuite))
}
