package repository

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	emaildomain "mailsense-backend/internal/email/domain"
)

type SyncCursorRepositoryTestSuite struct {
	suite.Suite
	db   *gorm.DB
	repo SyncCursorRepository
}

func (s *SyncCursorRepositoryTestSuite) SetupSuite() {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	s.Require().NoError(err)
	s.Require().NoError(db.AutoMigrate(&emaildomain.SyncCursor{}))
	s.db = db
}

func (s *SyncCursorRepositoryTestSuite) SetupTest() {
	s.db.Exec("DELETE FROM sync_cursors")
	s.repo = NewSyncCursorRepository(s.db)
}

func (s *SyncCursorRepositoryTestSuite) TestGetOrCreateReturnsExistingRow() {
	first, err := s.repo.GetOrCreate("INBOX")
	s.Require().NoError(err)
	s.Require().NotEmpty(first.ID)

	// A second call must find the same row, not collide on the folder index.
	second, err := s.repo.GetOrCreate("INBOX")
	s.Require().NoError(err)
	s.Equal(first.ID, second.ID)

	var count int64
	s.db.Model(&emaildomain.SyncCursor{}).Count(&count)
	s.Equal(int64(1), count)
}

func (s *SyncCursorRepositoryTestSuite) TestAdvanceMovesExistingCursor() {
	_, err := s.repo.GetOrCreate("INBOX")
	s.Require().NoError(err)

	s.Require().NoError(s.repo.Advance("INBOX", 103, 3))
	s.Require().NoError(s.repo.Advance("INBOX", 110, 2))

	cursor, err := s.repo.GetOrCreate("INBOX")
	s.Require().NoError(err)
	s.Equal(uint32(110), cursor.LastUID)
	s.Equal(5, cursor.TotalSynced)
	s.NotNil(cursor.LastSync)
}

func (s *SyncCursorRepositoryTestSuite) TestAdvanceNeverMovesBackwards() {
	s.Require().NoError(s.repo.Advance("INBOX", 100, 1))
	s.Require().NoError(s.repo.Advance("INBOX", 90, 1))

	cursor, err := s.repo.GetOrCreate("INBOX")
	s.Require().NoError(err)
	s.Equal(uint32(100), cursor.LastUID)
	s.Equal(1, cursor.TotalSynced)
}

func TestSyncCursorRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(SyncCursorRepositoryTestSuite))
}
