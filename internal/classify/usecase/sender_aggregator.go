package usecase

import (
	"log"
	"strings"
	"sync"
	"time"

	classifydomain "mailsense-backend/internal/classify/domain"
	"mailsense-backend/internal/classify/repository"
	emaildomain "mailsense-backend/internal/email/domain"
	"mailsense-backend/pkg/parser"
)

// AggregatorConfig carries the sender intelligence knobs.
type AggregatorConfig struct {
	RollingWindow   int
	LowRelevance    float64
	MinEmails       int
	DisengagedDays  int
	FoldAddressCase bool
}

// SenderAggregator maintains the rolling per-sender profiles.
type SenderAggregator interface {
	// Observe folds one classified email into its sender's profile.
	Observe(email *emaildomain.Email, c *classifydomain.Classification) error
	// RecordOpened bumps the open counter for an address.
	RecordOpened(address string) error
	// RecordActedOn bumps the acted-on counter for an address.
	RecordActedOn(address string) error
	// RecordLinksExtracted adds n to the extracted-link counter.
	RecordLinksExtracted(address string, n int) error
}

type senderAggregator struct {
	repo repository.SenderRepository
	cfg  AggregatorConfig

	// locks serializes updates per address so concurrent classification of
	// two emails from the same sender never loses a count.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewSenderAggregator(repo repository.SenderRepository, cfg AggregatorConfig) SenderAggregator {
	if cfg.RollingWindow < 1 {
		cfg.RollingWindow = 5
	}
	return &senderAggregator{
		repo:  repo,
		cfg:   cfg,
		locks: map[string]*sync.Mutex{},
	}
}

func (a *senderAggregator) lockFor(address string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	l, ok := a.locks[address]
	if !ok {
		l = &sync.Mutex{}
		a.locks[address] = l
	}
	return l
}

func (a *senderAggregator) normalize(address string) string {
	address = strings.TrimSpace(address)
	if a.cfg.FoldAddressCase {
		address = strings.ToLower(address)
	}
	return address
}

func (a *senderAggregator) Observe(email *emaildomain.Email, c *classifydomain.Classification) error {
	address := a.normalize(email.FromAddress)
	if address == "" {
		return nil
	}

	l := a.lockFor(address)
	l.Lock()
	defer l.Unlock()

	profile, err := a.repo.GetOrCreate(address, email.FromName)
	if err != nil {
		return err
	}

	profile.TotalEmails++
	if email.IsRead {
		profile.EmailsOpened++
	}
	if profile.DisplayName == "" && email.FromName != "" {
		profile.DisplayName = email.FromName
	}

	seen := parser.SentOrReceived(email)
	if !seen.IsZero() {
		if profile.FirstSeen == nil || seen.Before(*profile.FirstSeen) {
			t := seen
			profile.FirstSeen = &t
		}
		if profile.LastSeen == nil || seen.After(*profile.LastSeen) {
			t := seen
			profile.LastSeen = &t
		}
	}

	if profile.CategoryCounts == nil {
		profile.CategoryCounts = classifydomain.TopicCountMap{}
	}
	profile.CategoryCounts[string(c.Category)]++

	profile.RelevanceScore = a.roll(profile.RelevanceScore, c.RelevanceScore, profile.TotalEmails)
	profile.SenderType = inferSenderType(profile.CategoryCounts)
	profile.SuggestedAction = a.suggest(profile)

	return a.repo.Save(profile)
}

// roll blends the new observation into the running relevance. Early on each
// email carries equal weight; once the window fills, new emails get a fixed
// 1/window share so the score keeps tracking recent behavior.
func (a *senderAggregator) roll(current, observed float64, total int) float64 {
	if total <= 1 {
		return observed
	}
	n := total
	if n > a.cfg.RollingWindow {
		n = a.cfg.RollingWindow
	}
	alpha := 1.0 / float64(n)
	return current*(1-alpha) + observed*alpha
}

func (a *senderAggregator) suggest(p *classifydomain.SenderProfile) classifydomain.SuggestedAction {
	if p.TotalEmails < a.cfg.MinEmails {
		return classifydomain.ActionKeep
	}

	disengaged := false
	if p.LastSeen != nil && a.cfg.DisengagedDays > 0 {
		cutoff := time.Now().UTC().AddDate(0, 0, -a.cfg.DisengagedDays)
		disengaged = p.LastSeen.Before(cutoff) && p.EmailsOpened == 0 && p.EmailsActedOn == 0
	}

	if p.RelevanceScore < a.cfg.LowRelevance || disengaged {
		switch p.SenderType {
		case classifydomain.SenderNewsletter:
			return classifydomain.ActionUnsubscribe
		case classifydomain.SenderMarketing:
			return classifydomain.ActionFilter
		case classifydomain.SenderService:
			return classifydomain.ActionArchive
		}
	}
	return classifydomain.ActionKeep
}

func (a *senderAggregator) RecordOpened(address string) error {
	return a.bump(address, func(p *classifydomain.SenderProfile) {
		p.EmailsOpened++
	})
}

func (a *senderAggregator) RecordActedOn(address string) error {
	return a.bump(address, func(p *classifydomain.SenderProfile) {
		p.EmailsActedOn++
	})
}

func (a *senderAggregator) RecordLinksExtracted(address string, n int) error {
	if n <= 0 {
		return nil
	}
	return a.bump(address, func(p *classifydomain.SenderProfile) {
		p.LinksExtracted += n
	})
}

func (a *senderAggregator) bump(address string, apply func(*classifydomain.SenderProfile)) error {
	address = a.normalize(address)
	if address == "" {
		return nil
	}

	l := a.lockFor(address)
	l.Lock()
	defer l.Unlock()

	profile, err := a.repo.GetByAddress(address)
	if err != nil {
		return err
	}
	if profile == nil {
		log.Printf("[Senders] No profile for %s, skipping counter update", address)
		return nil
	}

	apply(profile)
	profile.SuggestedAction = a.suggest(profile)
	return a.repo.Save(profile)
}

// inferSenderType maps the dominant classification category onto a sender
// type. Ties break toward the first category encountered in iteration, which
// is acceptable for a heuristic refreshed on every email.
func inferSenderType(counts classifydomain.TopicCountMap) classifydomain.SenderType {
	best := ""
	bestCount := 0
	for category, count := range counts {
		if count > bestCount {
			best = category
			bestCount = count
		}
	}

	switch classifydomain.Category(best) {
	case classifydomain.CategoryNewsletter:
		return classifydomain.SenderNewsletter
	case classifydomain.CategoryPersonal, classifydomain.CategoryActionable:
		return classifydomain.SenderPerson
	case classifydomain.CategoryMarketing, classifydomain.CategoryNoise:
		return classifydomain.SenderMarketing
	}
	return classifydomain.SenderService
}
