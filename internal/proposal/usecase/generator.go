package usecase

import (
	"fmt"
	"log"
	"time"

	classifyrepo "mailsense-backend/internal/classify/repository"
	proposaldomain "mailsense-backend/internal/proposal/domain"
	"mailsense-backend/internal/proposal/repository"
)

// GeneratorConfig carries the proposal rule knobs.
type GeneratorConfig struct {
	ArchiveAfterDays    int
	ArchiveCategories   []string
	ArchiveFolder       string
	LowRelevance        float64
	MinEmails           int
	DisengagedDays      int
	ExtractMinRelevance float64
	OverlapRatio        float64
}

// GenerateResult summarizes one generation run.
type GenerateResult struct {
	Created    int      `json:"created"`
	Suppressed int      `json:"suppressed"`
	Proposals  []string `json:"proposals,omitempty"`
}

// Generator builds cleanup proposals from sender profiles, classifications
// and the link pipeline. It never touches the mailbox itself.
type Generator interface {
	Generate() (*GenerateResult, error)
}

type generator struct {
	proposalRepo  repository.ProposalRepository
	candidateRepo repository.CandidateRepository
	senderRepo    classifyrepo.SenderRepository
	linkRepo      classifyrepo.LinkRepository
	cfg           GeneratorConfig
}

func NewGenerator(
	proposalRepo repository.ProposalRepository,
	candidateRepo repository.CandidateRepository,
	senderRepo classifyrepo.SenderRepository,
	linkRepo classifyrepo.LinkRepository,
	cfg GeneratorConfig,
) Generator {
	return &generator{
		proposalRepo:  proposalRepo,
		candidateRepo: candidateRepo,
		senderRepo:    senderRepo,
		linkRepo:      linkRepo,
		cfg:           cfg,
	}
}

func (g *generator) Generate() (*GenerateResult, error) {
	result := &GenerateResult{}

	if err := g.generateUnsubscribe(result); err != nil {
		return nil, err
	}
	if err := g.generateArchive(result); err != nil {
		return nil, err
	}
	if err := g.generateExtraction(result); err != nil {
		return nil, err
	}

	log.Printf("[Proposals] Generation done: %d created, %d suppressed", result.Created, result.Suppressed)
	return result, nil
}

// generateUnsubscribe proposes letting go of low-relevance senders the user
// never engages with. One proposal per sender, items frozen to the sender's
// unopened emails at generation time. Opened mail never joins the set.
func (g *generator) generateUnsubscribe(result *GenerateResult) error {
	cutoff := time.Now().UTC().AddDate(0, 0, -g.cfg.DisengagedDays)
	senders, err := g.senderRepo.Disengaged(g.cfg.LowRelevance, g.cfg.MinEmails, cutoff)
	if err != nil {
		return fmt.Errorf("failed to load disengaged senders: %w", err)
	}

	for _, sender := range senders {
		emails, err := g.candidateRepo.EmailsBySender(sender.EmailAddress, g.cfg.ArchiveFolder, 0)
		if err != nil {
			return err
		}
		if len(emails) == 0 {
			continue
		}

		itemReason := fmt.Sprintf("unopened email from disengaged sender %s", sender.EmailAddress)
		items := make([]proposaldomain.ProposalItem, 0, len(emails))
		for _, e := range emails {
			items = append(items, proposaldomain.ProposalItem{
				EmailID:  e.ID,
				SenderID: sender.ID,
				Action:   proposaldomain.ItemActionArchive,
				Reason:   itemReason,
			})
		}

		proposal := &proposaldomain.CleanupProposal{
			Type:   proposaldomain.ProposalUnsubscribe,
			Status: proposaldomain.StatusPending,
			Title:  fmt.Sprintf("Unsubscribe from %s", sender.EmailAddress),
			Reason: fmt.Sprintf("%d emails, relevance %.2f, no opens or actions since %s",
				sender.TotalEmails, sender.RelevanceScore, lastSeenLabel(sender.LastSeen)),
			Criteria: proposaldomain.Criteria{
				SenderAddress: sender.EmailAddress,
				MaxRelevance:  g.cfg.LowRelevance,
			},
			Items: items,
		}
		g.createUnlessOverlapping(proposal, result)
	}
	return nil
}

// generateArchive proposes moving old low-value categories out of the inbox.
func (g *generator) generateArchive(result *GenerateResult) error {
	if len(g.cfg.ArchiveCategories) == 0 {
		return nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -g.cfg.ArchiveAfterDays)
	emails, err := g.candidateRepo.ArchivableEmails(g.cfg.ArchiveCategories, cutoff, g.cfg.ArchiveFolder, 0)
	if err != nil {
		return fmt.Errorf("failed to load archivable emails: %w", err)
	}
	if len(emails) == 0 {
		return nil
	}

	itemReason := fmt.Sprintf("low-value category older than %d days", g.cfg.ArchiveAfterDays)
	items := make([]proposaldomain.ProposalItem, 0, len(emails))
	for _, e := range emails {
		items = append(items, proposaldomain.ProposalItem{
			EmailID: e.ID,
			Action:  proposaldomain.ItemActionArchive,
			Reason:  itemReason,
		})
	}

	proposal := &proposaldomain.CleanupProposal{
		Type:   proposaldomain.ProposalArchive,
		Status: proposaldomain.StatusPending,
		Title:  fmt.Sprintf("Archive %d emails older than %d days", len(items), g.cfg.ArchiveAfterDays),
		Reason: fmt.Sprintf("Categories %v past the retention window", g.cfg.ArchiveCategories),
		Criteria: proposaldomain.Criteria{
			Categories:    g.cfg.ArchiveCategories,
			OlderThanDays: g.cfg.ArchiveAfterDays,
		},
		Items: items,
	}
	g.createUnlessOverlapping(proposal, result)
	return nil
}

// generateExtraction proposes queueing high-relevance pending links for
// content extraction.
func (g *generator) generateExtraction(result *GenerateResult) error {
	links, err := g.linkRepo.PendingAbove(g.cfg.ExtractMinRelevance, 0)
	if err != nil {
		return fmt.Errorf("failed to load extractable links: %w", err)
	}
	if len(links) == 0 {
		return nil
	}

	itemReason := fmt.Sprintf("link relevance at or above %.2f", g.cfg.ExtractMinRelevance)
	items := make([]proposaldomain.ProposalItem, 0, len(links))
	for _, l := range links {
		items = append(items, proposaldomain.ProposalItem{
			LinkID: l.ID,
			Action: proposaldomain.ItemActionQueueExtract,
			Reason: itemReason,
		})
	}

	proposal := &proposaldomain.CleanupProposal{
		Type:   proposaldomain.ProposalExtractLinks,
		Status: proposaldomain.StatusPending,
		Title:  fmt.Sprintf("Extract %d saved links", len(items)),
		Reason: fmt.Sprintf("Pending links scored at or above %.2f", g.cfg.ExtractMinRelevance),
		Criteria: proposaldomain.Criteria{
			MinRelevance: g.cfg.ExtractMinRelevance,
		},
		Items: items,
	}
	g.createUnlessOverlapping(proposal, result)
	return nil
}

// createUnlessOverlapping drops a new proposal when a pending one of the same
// type already covers most of the same records, so repeated generation runs
// don't pile up near-duplicates for review.
func (g *generator) createUnlessOverlapping(p *proposaldomain.CleanupProposal, result *GenerateResult) {
	pending, err := g.proposalRepo.ListPendingByType(p.Type)
	if err != nil {
		log.Printf("[Proposals] Overlap check failed: %v", err)
		return
	}

	newKeys := itemKeys(p.Items)
	for _, existing := range pending {
		if overlapRatio(newKeys, itemKeys(existing.Items)) >= g.cfg.OverlapRatio {
			result.Suppressed++
			return
		}
	}

	if err := g.proposalRepo.Create(p); err != nil {
		log.Printf("[Proposals] Failed to create proposal: %v", err)
		return
	}
	result.Created++
	result.Proposals = append(result.Proposals, p.ID)
}

func itemKeys(items []proposaldomain.ProposalItem) map[string]bool {
	keys := make(map[string]bool, len(items))
	for _, it := range items {
		if it.EmailID != "" {
			keys["e:"+it.EmailID] = true
		}
		if it.LinkID != "" {
			keys["l:"+it.LinkID] = true
		}
	}
	return keys
}

// overlapRatio is |intersection| / |new|.
func overlapRatio(newKeys, existingKeys map[string]bool) float64 {
	if len(newKeys) == 0 {
		return 1
	}
	shared := 0
	for k := range newKeys {
		if existingKeys[k] {
			shared++
		}
	}
	return float64(shared) / float64(len(newKeys))
}

func lastSeenLabel(t *time.Time) string {
	if t == nil {
		return "unknown"
	}
	return t.Format("2006-01-02")
}
