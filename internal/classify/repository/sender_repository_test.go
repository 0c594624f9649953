package repository

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	classifydomain "mailsense-backend/internal/classify/domain"
)

type SenderRepositoryTestSuite struct {
	suite.Suite
	db   *gorm.DB
	repo SenderRepository
}

func (s *SenderRepositoryTestSuite) SetupSuite() {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	s.Require().NoError(err)
	s.Require().NoError(db.AutoMigrate(&classifydomain.SenderProfile{}))
	s.db = db
}

func (s *SenderRepositoryTestSuite) SetupTest() {
	s.db.Exec("DELETE FROM sender_profiles")
	s.repo = NewSenderRepository(s.db)
}

func (s *SenderRepositoryTestSuite) TestGetOrCreateReturnsExistingProfile() {
	first, err := s.repo.GetOrCreate("news@example.com", "Newsletter")
	s.Require().NoError(err)
	s.Require().NotEmpty(first.ID)
	s.Equal(classifydomain.SenderService, first.SenderType)

	// Repeated lookups for the same address must not attempt a second insert
	// against the unique address index.
	second, err := s.repo.GetOrCreate("news@example.com", "ignored")
	s.Require().NoError(err)
	s.Equal(first.ID, second.ID)
	s.Equal("Newsletter", second.DisplayName)

	var count int64
	s.db.Model(&classifydomain.SenderProfile{}).Count(&count)
	s.Equal(int64(1), count)
}

func (s *SenderRepositoryTestSuite) TestGetOrCreatePreservesSavedState() {
	profile, err := s.repo.GetOrCreate("news@example.com", "Newsletter")
	s.Require().NoError(err)

	profile.TotalEmails = 7
	profile.RelevanceScore = 0.42
	s.Require().NoError(s.repo.Save(profile))

	again, err := s.repo.GetOrCreate("news@example.com", "Newsletter")
	s.Require().NoError(err)
	s.Equal(7, again.TotalEmails)
	s.InDelta(0.42, again.RelevanceScore, 0.001)
}

func TestSenderRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(SenderRepositoryTestSuite))
}
