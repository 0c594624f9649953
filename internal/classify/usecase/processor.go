package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	classifydomain "mailsense-backend/internal/classify/domain"
	"mailsense-backend/internal/classify/repository"
	emaildomain "mailsense-backend/internal/email/domain"
	"mailsense-backend/pkg/ai"
)

// ErrEmailNotFound is returned when a processing target does not exist.
var ErrEmailNotFound = errors.New("email not found")

// ProcessResult summarizes one classification run.
type ProcessResult struct {
	Candidates int    `json:"candidates"`
	Classified int    `json:"classified"`
	Failed     int    `json:"failed"`
	Skipped    int    `json:"skipped"`
	Links      int    `json:"links"`
	Message    string `json:"message,omitempty"`
}

// ProcessorConfig carries the classification knobs.
type ProcessorConfig struct {
	BatchSize   int
	MaxAttempts int
}

// Processor drives emails through the oracle and fans results out to the
// sender aggregator and link extractor.
type Processor interface {
	// ProcessPending classifies up to limit unclassified emails.
	ProcessPending(ctx context.Context, limit int) (*ProcessResult, error)
	// ProcessEmail classifies one email. An unchanged content hash is a cache
	// hit and returns the stored verdict without touching the oracle.
	ProcessEmail(ctx context.Context, emailID string) (*classifydomain.Classification, bool, error)
	Stats() (*repository.ClassifyStats, error)
}

type processor struct {
	emailRepo    emailGetter
	classifyRepo repository.ClassificationRepository
	oracle       ai.Oracle
	aggregator   SenderAggregator
	extractor    LinkExtractor
	cfg          ProcessorConfig

	// claims holds email IDs already in flight so overlapping runs never
	// submit the same email twice.
	mu     sync.Mutex
	claims map[string]bool
}

// emailGetter is the slice of the email repository the processor needs.
type emailGetter interface {
	GetByID(id string) (*emaildomain.Email, error)
}

func NewProcessor(
	emailRepo emailGetter,
	classifyRepo repository.ClassificationRepository,
	oracle ai.Oracle,
	aggregator SenderAggregator,
	extractor LinkExtractor,
	cfg ProcessorConfig,
) Processor {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 8
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 3
	}
	return &processor{
		emailRepo:    emailRepo,
		classifyRepo: classifyRepo,
		oracle:       oracle,
		aggregator:   aggregator,
		extractor:    extractor,
		cfg:          cfg,
		claims:       map[string]bool{},
	}
}

// ContentHash fingerprints the classified content of an email. Header-only
// changes (flags, folder moves) do not disturb it.
func ContentHash(email *emaildomain.Email) string {
	h := sha256.New()
	h.Write([]byte(email.Subject))
	h.Write([]byte{0})
	if email.BodyText != nil {
		h.Write([]byte(*email.BodyText))
	}
	h.Write([]byte{0})
	if email.BodyHTML != nil {
		h.Write([]byte(*email.BodyHTML))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (p *processor) claim(ids []string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	claimed := make([]string, 0, len(ids))
	for _, id := range ids {
		if p.claims[id] {
			continue
		}
		p.claims[id] = true
		claimed = append(claimed, id)
	}
	return claimed
}

func (p *processor) release(ids []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range ids {
		delete(p.claims, id)
	}
}

func (p *processor) ProcessPending(ctx context.Context, limit int) (*ProcessResult, error) {
	candidates, err := p.classifyRepo.Candidates(limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidates: %w", err)
	}

	result := &ProcessResult{Candidates: len(candidates)}
	if len(candidates) == 0 {
		result.Message = "nothing to classify"
		return result, nil
	}

	ids := make([]string, len(candidates))
	byID := make(map[string]*emaildomain.Email, len(candidates))
	for i := range candidates {
		ids[i] = candidates[i].ID
		byID[candidates[i].ID] = &candidates[i]
	}

	claimed := p.claim(ids)
	defer p.release(claimed)
	result.Skipped = len(ids) - len(claimed)

	for start := 0; start < len(claimed); start += p.cfg.BatchSize {
		if ctx.Err() != nil {
			result.Message = "cancelled"
			break
		}
		end := start + p.cfg.BatchSize
		if end > len(claimed) {
			end = len(claimed)
		}

		batch := make([]*emaildomain.Email, 0, end-start)
		for _, id := range claimed[start:end] {
			batch = append(batch, byID[id])
		}

		classified, links := p.classifyBatch(ctx, batch)
		result.Classified += classified
		result.Failed += len(batch) - classified
		result.Links += links
	}

	log.Printf("[Classify] Run done: %d classified, %d failed, %d skipped",
		result.Classified, result.Failed, result.Skipped)
	return result, nil
}

// classifyBatch submits one oracle batch with retries and persists every
// valid verdict. Returns how many emails got classified and how many links
// were stored.
func (p *processor) classifyBatch(ctx context.Context, batch []*emaildomain.Email) (int, int) {
	inputs := make([]ai.EmailInput, 0, len(batch))
	for _, email := range batch {
		inputs = append(inputs, toOracleInput(email))
	}

	var verdicts map[string]ai.EmailVerdict
	operation := func() error {
		var err error
		verdicts, err = p.oracle.ClassifyEmails(ctx, inputs)
		return err
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(p.cfg.MaxAttempts-1)), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		log.Printf("[Classify] Batch of %d failed: %v", len(batch), err)
		return 0, 0
	}

	classified := 0
	links := 0
	for _, email := range batch {
		verdict, ok := verdicts[email.ID]
		if ok {
			if err := validateVerdict(verdict); err != nil {
				log.Printf("[Classify] Invalid verdict for email %s: %v", email.ID, err)
				ok = false
			}
		} else {
			log.Printf("[Classify] No verdict for email %s", email.ID)
		}
		if !ok {
			v, err := p.reclassifySingle(ctx, email)
			if err != nil {
				log.Printf("[Classify] Leaving email %s unclassified: %v", email.ID, err)
				continue
			}
			verdict = v
		}

		n, err := p.persistVerdict(ctx, email, verdict)
		if err != nil {
			log.Printf("[Classify] Failed to persist verdict for %s: %v", email.ID, err)
			continue
		}
		classified++
		links += n
	}
	return classified, links
}

// reclassifySingle resubmits one email on its own after its batch verdict was
// missing or broke the contract. The batch submission already spent the first
// attempt, so this consumes the remaining budget.
func (p *processor) reclassifySingle(ctx context.Context, email *emaildomain.Email) (ai.EmailVerdict, error) {
	retries := p.cfg.MaxAttempts - 1
	if retries < 1 {
		return ai.EmailVerdict{}, errors.New("attempt budget exhausted")
	}

	var verdict ai.EmailVerdict
	operation := func() error {
		out, err := p.oracle.ClassifyEmails(ctx, []ai.EmailInput{toOracleInput(email)})
		if err != nil {
			return err
		}
		v, ok := out[email.ID]
		if !ok {
			return errors.New("no verdict returned")
		}
		if err := validateVerdict(v); err != nil {
			return err
		}
		verdict = v
		return nil
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(retries-1)), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return ai.EmailVerdict{}, err
	}
	return verdict, nil
}

func (p *processor) persistVerdict(ctx context.Context, email *emaildomain.Email, verdict ai.EmailVerdict) (int, error) {
	c := &classifydomain.Classification{
		ID:             uuid.New().String(),
		EmailID:        email.ID,
		Category:       classifydomain.Category(verdict.Category),
		Confidence:     verdict.Confidence,
		Topics:         classifydomain.TopicSet(verdict.Topics),
		RelevanceScore: verdict.RelevanceScore,
		Summary:        verdict.Summary,
		ContentHash:    ContentHash(email),
		ModelUsed:      p.oracle.Name(),
		ClassifiedAt:   time.Now().UTC(),
	}
	if err := p.classifyRepo.Replace(c); err != nil {
		return 0, err
	}

	if err := p.aggregator.Observe(email, c); err != nil {
		log.Printf("[Classify] Sender update failed for %s: %v", email.FromAddress, err)
	}

	links, err := p.extractor.Extract(ctx, email, c.Category)
	if err != nil {
		log.Printf("[Classify] Link extraction failed for %s: %v", email.ID, err)
		return 0, nil
	}
	if links > 0 {
		if err := p.aggregator.RecordLinksExtracted(email.FromAddress, links); err != nil {
			log.Printf("[Classify] Link counter update failed: %v", err)
		}
	}
	return links, nil
}

func (p *processor) ProcessEmail(ctx context.Context, emailID string) (*classifydomain.Classification, bool, error) {
	email, err := p.emailRepo.GetByID(emailID)
	if err != nil {
		return nil, false, err
	}
	if email == nil {
		return nil, false, ErrEmailNotFound
	}

	existing, err := p.classifyRepo.GetByEmailID(emailID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil && existing.ContentHash == ContentHash(email) {
		return existing, true, nil
	}

	claimed := p.claim([]string{emailID})
	if len(claimed) == 0 {
		return nil, false, errors.New("email is already being classified")
	}
	defer p.release(claimed)

	if n, _ := p.classifyBatch(ctx, []*emaildomain.Email{email}); n == 0 {
		return nil, false, errors.New("classification failed")
	}

	c, err := p.classifyRepo.GetByEmailID(emailID)
	if err != nil {
		return nil, false, err
	}
	return c, false, nil
}

func (p *processor) Stats() (*repository.ClassifyStats, error) {
	return p.classifyRepo.Stats()
}

func toOracleInput(email *emaildomain.Email) ai.EmailInput {
	preview := ""
	if email.BodyText != nil && *email.BodyText != "" {
		preview = *email.BodyText
	} else if email.BodyHTML != nil {
		preview = stripTags(*email.BodyHTML)
	}

	date := ""
	if email.DateSent != nil {
		date = email.DateSent.Format(time.RFC1123Z)
	}

	return ai.EmailInput{
		ID:          email.ID,
		Subject:     email.Subject,
		FromName:    email.FromName,
		FromAddress: email.FromAddress,
		Date:        date,
		BodyPreview: preview,
	}
}

// stripTags is a crude HTML-to-text fallback for emails without a plain part.
func stripTags(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			b.WriteRune(' ')
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func validateVerdict(v ai.EmailVerdict) error {
	if !classifydomain.ValidCategory(classifydomain.Category(v.Category)) {
		return fmt.Errorf("unknown category %q", v.Category)
	}
	if v.Confidence < 0 || v.Confidence > 1 {
		return fmt.Errorf("confidence %.2f out of range", v.Confidence)
	}
	if v.RelevanceScore < 0 || v.RelevanceScore > 1 {
		return fmt.Errorf("relevance %.2f out of range", v.RelevanceScore)
	}
	if strings.TrimSpace(v.Summary) == "" {
		return errors.New("empty summary")
	}
	return nil
}
