package domain

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotConnected is returned by provider operations before Connect.
	ErrNotConnected = errors.New("mailbox provider not connected")
	// ErrSyncInProgress is returned when a second sync is attempted on a
	// folder that already has one in flight.
	ErrSyncInProgress = errors.New("sync already in progress for folder")
)

// RawMessage is one fetched message before normalization.
type RawMessage struct {
	UID    uint32
	Folder string
	Flags  []string
	Body   []byte
	// InternalDate is the server receive time, when reported.
	InternalDate time.Time
}

// FolderStatus reports the server-side state of one folder.
type FolderStatus struct {
	Folder   string `json:"folder"`
	Messages uint32 `json:"messages"`
	Unseen   uint32 `json:"unseen"`
}

// MailboxProvider is the capability the sync coordinator and the proposal
// executor depend on. Implementations must keep every mutation idempotent
// under re-application: marking a read message read or re-moving an already
// moved message is not an error.
type MailboxProvider interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Connected() bool

	ListFolders(ctx context.Context) ([]string, error)
	FolderStatus(ctx context.Context, folder string) (*FolderStatus, error)

	// FetchAbove returns messages in folder with UID strictly greater than
	// afterUID, oldest first, at most max messages (0 means no cap).
	FetchAbove(ctx context.Context, folder string, afterUID uint32, max int) ([]RawMessage, error)

	MarkRead(ctx context.Context, folder string, uid uint32, read bool) error
	SetStarred(ctx context.Context, folder string, uid uint32, starred bool) error
	Move(ctx context.Context, folder string, uid uint32, dest string) error
}
