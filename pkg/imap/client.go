package imap

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"mailsense-backend/internal/email/domain"
	"mailsense-backend/pkg/config"
)

// Client implements domain.MailboxProvider over IMAP.
//
// Connect dials a control connection to verify the server and credentials;
// fetches and mutations each use a short-lived session of their own so that
// syncs of different folders never contend on SELECT state.
type Client struct {
	host     string
	port     string
	username string
	password string
	tls      bool

	mu        sync.Mutex
	control   *imapclient.Client
	connected bool
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		host:     cfg.IMAPHost,
		port:     cfg.IMAPPort,
		username: cfg.IMAPUser,
		password: cfg.IMAPPassword,
		tls:      cfg.IMAPTLS,
	}
}

func (c *Client) dial() (*imapclient.Client, error) {
	addr := c.host + ":" + c.port

	var client *imapclient.Client
	var err error
	if c.tls {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(c.username, c.password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, fmt.Errorf("IMAP login for %s: %w", c.username, err)
	}
	return client, nil
}

func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	client, err := c.dial()
	if err != nil {
		return err
	}
	c.control = client
	c.connected = true
	log.Printf("[IMAP] connected to %s:%s as %s", c.host, c.port, c.username)
	return nil
}

func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.control != nil {
		_ = c.control.Logout().Wait()
		c.control = nil
	}
	c.connected = false
	return nil
}

func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Client) session() (*imapclient.Client, error) {
	if !c.Connected() {
		return nil, domain.ErrNotConnected
	}
	return c.dial()
}

func (c *Client) ListFolders(ctx context.Context) ([]string, error) {
	client, err := c.session()
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	boxes, err := client.List("", "*", nil).Collect()
	if err != nil {
		return nil, fmt.Errorf("listing folders: %w", err)
	}

	folders := make([]string, 0, len(boxes))
	for _, box := range boxes {
		folders = append(folders, box.Mailbox)
	}
	sort.Strings(folders)
	return folders, nil
}

func (c *Client) FolderStatus(ctx context.Context, folder string) (*domain.FolderStatus, error) {
	client, err := c.session()
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	data, err := client.Status(folder, &imap.StatusOptions{
		NumMessages: true,
		NumUnseen:   true,
	}).Wait()
	if err != nil {
		return nil, fmt.Errorf("status of %q: %w", folder, err)
	}

	status := &domain.FolderStatus{Folder: folder}
	if data.NumMessages != nil {
		status.Messages = *data.NumMessages
	}
	if data.NumUnseen != nil {
		status.Unseen = *data.NumUnseen
	}
	return status, nil
}

func (c *Client) FetchAbove(ctx context.Context, folder string, afterUID uint32, max int) ([]domain.RawMessage, error) {
	client, err := c.session()
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(folder, nil).Wait(); err != nil {
		return nil, fmt.Errorf("selecting %q: %w", folder, err)
	}

	// UID range (afterUID+1):* — everything newer than the cursor.
	var uidSet imap.UIDSet
	uidSet.AddRange(imap.UID(afterUID+1), 0)
	criteria := &imap.SearchCriteria{UID: []imap.UIDSet{uidSet}}

	searchData, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching %q: %w", folder, err)
	}

	uids := searchData.AllUIDs()
	// Servers may echo UIDs at or below the range start for the n:* form.
	filtered := uids[:0]
	for _, uid := range uids {
		if uint32(uid) > afterUID {
			filtered = append(filtered, uid)
		}
	}
	uids = filtered
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })

	if len(uids) == 0 {
		return nil, nil
	}
	if max > 0 && len(uids) > max {
		uids = uids[:max]
	}

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		Flags:        true,
		UID:          true,
		InternalDate: true,
		BodySection:  []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := client.Fetch(imap.UIDSetNum(uids...), fetchOpts)

	var messages []domain.RawMessage
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			continue
		}

		raw := domain.RawMessage{
			UID:          uint32(buf.UID),
			Folder:       folder,
			InternalDate: buf.InternalDate,
		}
		for _, flag := range buf.Flags {
			raw.Flags = append(raw.Flags, string(flag))
		}
		if body := buf.FindBodySection(bodySection); body != nil {
			raw.Body = body
		}
		messages = append(messages, raw)
	}

	if err := fetchCmd.Close(); err != nil {
		return messages, fmt.Errorf("fetching from %q: %w", folder, err)
	}
	return messages, nil
}

func (c *Client) storeFlags(folder string, uid uint32, flags []imap.Flag, add bool) error {
	client, err := c.session()
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(folder, nil).Wait(); err != nil {
		return fmt.Errorf("selecting %q: %w", folder, err)
	}

	op := imap.StoreFlagsAdd
	if !add {
		op = imap.StoreFlagsDel
	}

	storeCmd := client.Store(imap.UIDSetNum(imap.UID(uid)), &imap.StoreFlags{
		Op:     op,
		Silent: true,
		Flags:  flags,
	}, nil)
	return storeCmd.Close()
}

func (c *Client) MarkRead(ctx context.Context, folder string, uid uint32, read bool) error {
	return c.storeFlags(folder, uid, []imap.Flag{imap.FlagSeen}, read)
}

func (c *Client) SetStarred(ctx context.Context, folder string, uid uint32, starred bool) error {
	return c.storeFlags(folder, uid, []imap.Flag{imap.FlagFlagged}, starred)
}

// Move relocates a message to dest. When dest does not exist a few common
// alternates are tried before giving up.
func (c *Client) Move(ctx context.Context, folder string, uid uint32, dest string) error {
	client, err := c.session()
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(folder, nil).Wait(); err != nil {
		return fmt.Errorf("selecting %q: %w", folder, err)
	}

	uidSet := imap.UIDSetNum(imap.UID(uid))

	candidates := []string{dest}
	if dest == "Archive" {
		candidates = append(candidates, "Archives", "[Gmail]/All Mail", "INBOX.Archive")
	}

	var lastErr error
	for _, candidate := range candidates {
		if _, err := client.Move(uidSet, candidate).Wait(); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	return fmt.Errorf("moving UID %d to %q: %w", uid, dest, lastErr)
}
