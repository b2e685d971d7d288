package integrations

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"

	"github.com/sadopc/toki/internal/detector"
)

const SystemGitHub = "github"

// GitHub records time as issue comments on one repository.
type GitHub struct {
	client *github.Client
	owner  string
	repo   string
	retry  func() backoff.BackOff
}

// NewGitHub builds an adapter for repo ("owner/name"). A non-empty baseURL
// targets GitHub Enterprise or a test server.
func NewGitHub(ctx context.Context, token, repo, baseURL string) (*GitHub, error) {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" {
		return nil, fmt.Errorf("github repo must be owner/name, got %q", repo)
	}
	var hc *http.Client
	if token != "" {
		hc = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	}
	client := github.NewClient(hc)
	if baseURL != "" {
		var err error
		if client, err = client.WithEnterpriseURLs(baseURL, baseURL); err != nil {
			return nil, fmt.Errorf("github base url: %w", err)
		}
	}
	return &GitHub{
		client: client,
		owner:  owner,
		repo:   name,
		retry: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxElapsedTime = 10 * time.Second
			return backoff.WithMaxRetries(b, 3)
		},
	}, nil
}

func (g *GitHub) SystemName() string { return SystemGitHub }

func (g *GitHub) ValidateCredentials(ctx context.Context) error {
	_, resp, err := g.client.Repositories.Get(ctx, g.owner, g.repo)
	return classify(resp, err)
}

func (g *GitHub) FetchWorkItem(ctx context.Context, externalID string) (*WorkItemDetails, error) {
	num, err := issueNumber(externalID)
	if err != nil {
		return nil, err
	}
	issue, resp, err := g.client.Issues.Get(ctx, g.owner, g.repo, num)
	if err := classify(resp, err); err != nil {
		return nil, err
	}
	return &WorkItemDetails{
		ExternalID:  externalID,
		Title:       issue.GetTitle(),
		Description: issue.GetBody(),
		Status:      issue.GetState(),
		URL:         issue.GetHTMLURL(),
	}, nil
}

// AddTimeEntry posts the entry as a comment, retrying transient failures.
func (g *GitHub) AddTimeEntry(ctx context.Context, entry TimeEntry) error {
	num, err := issueNumber(entry.ExternalID)
	if err != nil {
		return err
	}
	comment := &github.IssueComment{Body: github.Ptr("toki: " + entry.Description())}
	op := func() error {
		_, resp, err := g.client.Issues.CreateComment(ctx, g.owner, g.repo, num, comment)
		if err := classify(resp, err); err != nil {
			if errors.Is(err, ErrUnauthorized) || (resp != nil && resp.StatusCode < 500) {
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	}
	return backoff.Retry(op, backoff.WithContext(g.retry(), ctx))
}

func (g *GitHub) BatchSync(ctx context.Context, entries []TimeEntry) SyncReport {
	var r SyncReport
	for _, e := range entries {
		if err := g.AddTimeEntry(ctx, e); err != nil {
			r.Failed++
			r.Errors = append(r.Errors, fmt.Sprintf("%s %s: %v", e.ExternalID, e.Date, err))
			continue
		}
		r.Synced++
		r.SyncedSpanIDs = append(r.SyncedSpanIDs, e.SpanIDs...)
	}
	return r
}

// issueNumber accepts "12", "#12", or "PROJ-12".
func issueNumber(externalID string) (int, error) {
	id := strings.TrimPrefix(strings.TrimSpace(externalID), "#")
	if ref, ok := detector.Parse(id); ok {
		id = ref.Number()
	}
	n, err := strconv.Atoi(id)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("github: %q is not an issue number", externalID)
	}
	return n, nil
}

func classify(resp *github.Response, err error) error {
	if err == nil {
		return nil
	}
	if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return fmt.Errorf("github: %w", err)
}
