package usecase

import (
	"errors"
	"fmt"
	"log"

	classifydomain "mailsense-backend/internal/classify/domain"
	"mailsense-backend/internal/classify/repository"
)

// ErrLinkNotFound is returned when a pipeline target does not exist.
var ErrLinkNotFound = errors.New("link not found")

// ErrBadTransition is returned for illegal pipeline status moves.
var ErrBadTransition = errors.New("illegal pipeline transition")

// QueueResult summarizes one queueing pass.
type QueueResult struct {
	Examined int `json:"examined"`
	Queued   int `json:"queued"`
}

// PipelineAdapter hands scored links off to downstream content extractors.
// The extractors themselves live outside this service; the adapter owns the
// queue and the status bookkeeping.
type PipelineAdapter interface {
	// QueueReady moves pending links at or above the relevance threshold to
	// queued, tagging each with the extractor that should handle it.
	QueueReady(limit int) (*QueueResult, error)
	// SetStatus applies an externally reported status change to a link.
	SetStatus(id string, status classifydomain.PipelineStatus) (*classifydomain.ExtractedLink, error)
	Stats() (*repository.PipelineStats, error)
}

type pipelineAdapter struct {
	linkRepo     repository.LinkRepository
	minRelevance float64
}

func NewPipelineAdapter(linkRepo repository.LinkRepository, minRelevance float64) PipelineAdapter {
	return &pipelineAdapter{
		linkRepo:     linkRepo,
		minRelevance: minRelevance,
	}
}

// extractorFor routes a link to the downstream worker suited to its type.
func extractorFor(linkType classifydomain.LinkType) string {
	switch linkType {
	case classifydomain.LinkTypeGithub:
		return "repo-reader"
	case classifydomain.LinkTypeArxiv:
		return "pdf-reader"
	case classifydomain.LinkTypeVideo:
		return "transcript-reader"
	default:
		return "page-reader"
	}
}

func (a *pipelineAdapter) QueueReady(limit int) (*QueueResult, error) {
	links, err := a.linkRepo.PendingAbove(a.minRelevance, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending links: %w", err)
	}

	result := &QueueResult{Examined: len(links)}
	for _, link := range links {
		extractor := extractorFor(link.LinkType)
		if err := a.linkRepo.Transition(link.ID, classifydomain.PipelineQueued, extractor); err != nil {
			log.Printf("[Pipeline] Failed to queue link %s: %v", link.ID, err)
			continue
		}
		result.Queued++
	}

	if result.Queued > 0 {
		log.Printf("[Pipeline] Queued %d/%d links for extraction", result.Queued, result.Examined)
	}
	return result, nil
}

func (a *pipelineAdapter) SetStatus(id string, status classifydomain.PipelineStatus) (*classifydomain.ExtractedLink, error) {
	if !classifydomain.ValidPipelineStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrBadTransition, status)
	}

	link, err := a.linkRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, ErrLinkNotFound
	}

	if !classifydomain.CanTransitionPipeline(link.PipelineStatus, status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrBadTransition, link.PipelineStatus, status)
	}

	extractor := ""
	if status == classifydomain.PipelineQueued {
		extractor = extractorFor(link.LinkType)
	}
	if err := a.linkRepo.Transition(id, status, extractor); err != nil {
		return nil, err
	}
	return a.linkRepo.GetByID(id)
}

func (a *pipelineAdapter) Stats() (*repository.PipelineStats, error) {
	return a.linkRepo.Stats()
}
