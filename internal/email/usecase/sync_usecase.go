package usecase

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/cenkalti/backoff/v4"

	emaildomain "mailsense-backend/internal/email/domain"
	"mailsense-backend/internal/email/repository"
	"mailsense-backend/pkg/config"
	"mailsense-backend/pkg/parser"
)

// SyncResult reports one sync run over a folder.
type SyncResult struct {
	Folder  string `json:"folder"`
	Fetched int    `json:"fetched"`
	Skipped int    `json:"skipped"`
	Failed  int    `json:"failed"`
	Message string `json:"message,omitempty"`
}

// SyncStatus is the connection + cursor view behind GET /sync/status.
type SyncStatus struct {
	Connected   bool                     `json:"connected"`
	Syncing     []string                 `json:"syncing"`
	Folders     []string                 `json:"folders,omitempty"`
	TotalEmails int64                    `json:"total_emails"`
	Cursors     []emaildomain.SyncCursor `json:"cursors"`
}

// SyncUsecase drives incremental mailbox sync.
type SyncUsecase interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Sync(ctx context.Context, folder string, limit int) (*SyncResult, error)
	Status(ctx context.Context) (*SyncStatus, error)
	Provider() emaildomain.MailboxProvider
}

type syncUsecase struct {
	provider   emaildomain.MailboxProvider
	emailRepo  repository.EmailRepository
	cursorRepo repository.SyncCursorRepository
	cfg        *config.Config

	mu       sync.Mutex
	inFlight map[string]bool
}

func NewSyncUsecase(
	provider emaildomain.MailboxProvider,
	emailRepo repository.EmailRepository,
	cursorRepo repository.SyncCursorRepository,
	cfg *config.Config,
) SyncUsecase {
	return &syncUsecase{
		provider:   provider,
		emailRepo:  emailRepo,
		cursorRepo: cursorRepo,
		cfg:        cfg,
		inFlight:   map[string]bool{},
	}
}

func (u *syncUsecase) Provider() emaildomain.MailboxProvider {
	return u.provider
}

func (u *syncUsecase) Connect(ctx context.Context) error {
	return u.provider.Connect(ctx)
}

func (u *syncUsecase) Disconnect() error {
	return u.provider.Disconnect()
}

// acquire claims the folder for one sync run, failing fast when a sync is
// already in flight for it.
func (u *syncUsecase) acquire(folder string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.inFlight[folder] {
		return emaildomain.ErrSyncInProgress
	}
	u.inFlight[folder] = true
	return nil
}

func (u *syncUsecase) release(folder string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.inFlight, folder)
}

func (u *syncUsecase) Sync(ctx context.Context, folder string, limit int) (*SyncResult, error) {
	if !u.provider.Connected() {
		return nil, emaildomain.ErrNotConnected
	}
	if err := u.acquire(folder); err != nil {
		return nil, err
	}
	defer u.release(folder)

	result := &SyncResult{Folder: folder}

	cursor, err := u.cursorRepo.GetOrCreate(folder)
	if err != nil {
		return nil, fmt.Errorf("loading cursor for %q: %w", folder, err)
	}

	fetchMax := u.fetchCap(cursor, limit)

	// Transport failures are retried briefly; a persistent failure surfaces
	// as a sync-level error with the cursor untouched.
	var messages []emaildomain.RawMessage
	fetch := func() error {
		var fetchErr error
		messages, fetchErr = u.provider.FetchAbove(ctx, folder, cursor.LastUID, fetchMax)
		return fetchErr
	}
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2)
	if err := backoff.Retry(fetch, backoff.WithContext(policy, ctx)); err != nil {
		return nil, fmt.Errorf("fetching %q above UID %d: %w", folder, cursor.LastUID, err)
	}

	if len(messages) == 0 {
		log.Printf("[Sync] %s up to date (last UID %d)", folder, cursor.LastUID)
		result.Message = "up to date"
		return result, nil
	}

	log.Printf("[Sync] %s: %d new messages above UID %d", folder, len(messages), cursor.LastUID)

	// Messages arrive oldest first. The cursor only advances across the
	// prefix that persisted cleanly, so a failed message is refetched on the
	// next run while later successes are deduplicated by message_id.
	advanceTo := cursor.LastUID
	advanceBlocked := false

	for _, raw := range messages {
		if ctx.Err() != nil {
			break
		}
		if len(raw.Body) == 0 {
			result.Failed++
			advanceBlocked = true
			log.Printf("[Sync] %s UID %d: empty fetch payload", folder, raw.UID)
			continue
		}

		email := parser.Normalize(raw)
		created, err := u.emailRepo.Upsert(email)
		if err != nil {
			result.Failed++
			advanceBlocked = true
			log.Printf("[Sync] %s UID %d: store failed: %v", folder, raw.UID, err)
			continue
		}
		if created {
			result.Fetched++
		} else {
			result.Skipped++
		}
		if !advanceBlocked && raw.UID > advanceTo {
			advanceTo = raw.UID
		}
	}

	if advanceTo > cursor.LastUID {
		if err := u.cursorRepo.Advance(folder, advanceTo, result.Fetched); err != nil {
			return result, fmt.Errorf("advancing cursor for %q: %w", folder, err)
		}
	}

	log.Printf("[Sync] %s done: %d fetched, %d skipped, %d failed (cursor %d)",
		folder, result.Fetched, result.Skipped, result.Failed, advanceTo)
	return result, nil
}

// fetchCap bounds one run: initial backfills are capped separately so a huge
// mailbox is pulled over several invocations.
func (u *syncUsecase) fetchCap(cursor *emaildomain.SyncCursor, limit int) int {
	fetchMax := u.cfg.SyncBatchCap
	if cursor.LastUID == 0 && u.cfg.InitialSyncLimit > 0 {
		fetchMax = u.cfg.InitialSyncLimit
	}
	if limit > 0 && (fetchMax <= 0 || limit < fetchMax) {
		fetchMax = limit
	}
	return fetchMax
}

func (u *syncUsecase) Status(ctx context.Context) (*SyncStatus, error) {
	status := &SyncStatus{Connected: u.provider.Connected()}

	u.mu.Lock()
	for folder := range u.inFlight {
		status.Syncing = append(status.Syncing, folder)
	}
	u.mu.Unlock()

	if status.Connected {
		folders, err := u.provider.ListFolders(ctx)
		if err != nil {
			log.Printf("[Sync] listing folders: %v", err)
		} else {
			status.Folders = folders
		}
	}

	cursors, err := u.cursorRepo.List()
	if err != nil {
		return nil, err
	}
	status.Cursors = cursors

	stats, err := u.emailRepo.Stats()
	if err != nil {
		return nil, err
	}
	status.TotalEmails = stats.Total
	return status, nil
}
