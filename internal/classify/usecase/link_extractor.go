package usecase

import (
	"context"
	"log"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/net/html"

	classifydomain "mailsense-backend/internal/classify/domain"
	"mailsense-backend/internal/classify/repository"
	emaildomain "mailsense-backend/internal/email/domain"
	"mailsense-backend/pkg/ai"
)

var plainURLPattern = regexp.MustCompile(`https?://[^\s<>"')\]]+`)

// junkPathWords marks URLs that exist for list hygiene or legal boilerplate,
// never for reading.
var junkPathWords = []string{
	"unsubscribe", "email-preferences", "email_preferences", "manage-preferences",
	"optout", "opt-out", "privacy", "terms-of-service", "tos",
	"view-in-browser", "view_in_browser", "webview",
}

var junkHosts = map[string]bool{
	"twitter.com":      true,
	"x.com":            true,
	"facebook.com":     true,
	"www.facebook.com": true,
	"instagram.com":    true,
	"linkedin.com":     true,
	"www.linkedin.com": true,
}

// LinkExtractor finds, filters and scores the URLs inside classified emails.
type LinkExtractor interface {
	// Extract persists the email's canonical URLs and kicks off asynchronous
	// relevance scoring. Returns how many new links were stored.
	Extract(ctx context.Context, email *emaildomain.Email, category classifydomain.Category) (int, error)
}

type linkExtractor struct {
	linkRepo repository.LinkRepository
	oracle   ai.Oracle
	floor    float64
}

func NewLinkExtractor(linkRepo repository.LinkRepository, oracle ai.Oracle, relevanceFloor float64) LinkExtractor {
	return &linkExtractor{
		linkRepo: linkRepo,
		oracle:   oracle,
		floor:    relevanceFloor,
	}
}

type foundLink struct {
	url    string
	anchor string
}

func (e *linkExtractor) Extract(ctx context.Context, email *emaildomain.Email, category classifydomain.Category) (int, error) {
	found := collectLinks(email)
	if len(found) == 0 {
		return 0, nil
	}

	links := make([]classifydomain.ExtractedLink, 0, len(found))
	for _, f := range found {
		host := hostOf(f.url)
		links = append(links, classifydomain.ExtractedLink{
			EmailID:        email.ID,
			URL:            f.url,
			AnchorText:     f.anchor,
			Domain:         host,
			LinkType:       linkTypeFor(host, f.url),
			PipelineStatus: classifydomain.PipelinePending,
		})
	}

	created, err := e.linkRepo.CreateBatch(links)
	if err != nil {
		return 0, err
	}
	if created > 0 {
		log.Printf("[Links] Stored %d links for email %s", created, email.ID)
	}

	// Scoring happens off the classification path; a slow or failing oracle
	// leaves the links pending and unscored.
	go e.scoreLinks(context.WithoutCancel(ctx), email, category)

	return created, nil
}

func (e *linkExtractor) scoreLinks(ctx context.Context, email *emaildomain.Email, category classifydomain.Category) {
	stored, err := e.linkRepo.ListByEmail(email.ID)
	if err != nil {
		log.Printf("[Links] Failed to load links for scoring: %v", err)
		return
	}

	byURL := map[string]classifydomain.ExtractedLink{}
	urls := make([]string, 0, len(stored))
	for _, l := range stored {
		if l.RelevanceScore != nil {
			continue
		}
		byURL[l.URL] = l
		urls = append(urls, l.URL)
	}
	if len(urls) == 0 {
		return
	}

	scores, err := e.oracle.ScoreLinks(ctx, ai.LinkBatch{
		Subject:     email.Subject,
		FromAddress: email.FromAddress,
		Category:    string(category),
		URLs:        urls,
	})
	if err != nil {
		log.Printf("[Links] Scoring failed for email %s: %v", email.ID, err)
		return
	}

	for _, s := range scores {
		link, ok := byURL[s.URL]
		if !ok {
			continue
		}
		score := clamp01(s.RelevanceScore)
		if err := e.linkRepo.SetScore(link.ID, score); err != nil {
			log.Printf("[Links] Failed to store score: %v", err)
			continue
		}
		if score < e.floor {
			if err := e.linkRepo.Transition(link.ID, classifydomain.PipelineSkipped, ""); err != nil {
				log.Printf("[Links] Failed to skip low-relevance link: %v", err)
			}
		}
	}
}

// collectLinks pulls URLs from both bodies, canonicalizes them, drops junk
// and dedupes. HTML anchors win over the same URL found in plain text because
// they carry anchor text.
func collectLinks(email *emaildomain.Email) []foundLink {
	byURL := map[string]foundLink{}

	if email.BodyText != nil {
		for _, raw := range plainURLPattern.FindAllString(*email.BodyText, -1) {
			canonical, ok := canonicalizeURL(raw)
			if !ok {
				continue
			}
			if _, seen := byURL[canonical]; !seen {
				byURL[canonical] = foundLink{url: canonical}
			}
		}
	}

	if email.BodyHTML != nil {
		for _, a := range htmlAnchors(*email.BodyHTML) {
			canonical, ok := canonicalizeURL(a.url)
			if !ok {
				continue
			}
			existing, seen := byURL[canonical]
			if !seen || existing.anchor == "" {
				byURL[canonical] = foundLink{url: canonical, anchor: a.anchor}
			}
		}
	}

	out := make([]foundLink, 0, len(byURL))
	for _, f := range byURL {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].url < out[j].url })
	return out
}

// htmlAnchors tokenizes HTML and returns every <a href> with its text.
func htmlAnchors(body string) []foundLink {
	var anchors []foundLink
	tokenizer := html.NewTokenizer(strings.NewReader(body))

	var current *foundLink
	var text strings.Builder
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return anchors
		case html.StartTagToken:
			token := tokenizer.Token()
			if token.Data != "a" {
				continue
			}
			for _, attr := range token.Attr {
				if attr.Key == "href" {
					current = &foundLink{url: attr.Val}
					text.Reset()
					break
				}
			}
		case html.TextToken:
			if current != nil {
				text.WriteString(string(tokenizer.Text()))
			}
		case html.EndTagToken:
			token := tokenizer.Token()
			if token.Data == "a" && current != nil {
				current.anchor = strings.TrimSpace(text.String())
				anchors = append(anchors, *current)
				current = nil
			}
		}
	}
}

// canonicalizeURL normalizes a URL for dedupe and rejects junk. The second
// return is false when the URL should be dropped entirely.
func canonicalizeURL(raw string) (string, bool) {
	raw = strings.TrimRight(raw, ".,;:!?")
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	u.Host = strings.ToLower(u.Host)
	if u.Host == "" {
		return "", false
	}

	// Strip default ports.
	if (u.Scheme == "http" && strings.HasSuffix(u.Host, ":80")) ||
		(u.Scheme == "https" && strings.HasSuffix(u.Host, ":443")) {
		u.Host = u.Host[:strings.LastIndex(u.Host, ":")]
	}

	u.Fragment = ""
	if len(u.Path) > 1 {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}

	if isJunk(u) {
		return "", false
	}
	return u.String(), true
}

func isJunk(u *url.URL) bool {
	host := u.Hostname()
	if junkHosts[host] {
		return true
	}
	lower := strings.ToLower(u.Path + "?" + u.RawQuery)
	for _, w := range junkPathWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// linkTypeFor is a deterministic domain/path heuristic, no oracle involved.
func linkTypeFor(host, rawURL string) classifydomain.LinkType {
	host = strings.TrimPrefix(host, "www.")
	path := ""
	if u, err := url.Parse(rawURL); err == nil {
		path = strings.ToLower(u.Path)
	}

	switch {
	case host == "github.com" || host == "gitlab.com":
		return classifydomain.LinkTypeGithub
	case host == "arxiv.org":
		return classifydomain.LinkTypeArxiv
	case host == "youtube.com" || host == "youtu.be" || host == "vimeo.com":
		return classifydomain.LinkTypeVideo
	case strings.HasPrefix(host, "docs.") || strings.Contains(path, "/docs"):
		return classifydomain.LinkTypeDocs
	case host == "medium.com" || strings.HasSuffix(host, ".substack.com") ||
		strings.Contains(path, "/blog") || strings.Contains(path, "/article"):
		return classifydomain.LinkTypeArticle
	case path == "" || path == "/":
		return classifydomain.LinkTypeTool
	}
	return classifydomain.LinkTypeOther
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
