package vocab

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Default upstream endpoints. Each fetcher accepts an override base URL so
// tests can point at an httptest server.
const (
	defaultGitHubBaseURL        = "https://api.github.com"
	defaultHackerNewsBaseURL    = "https://hacker-news.firebaseio.com"
	defaultStackOverflowBaseURL = "https://api.stackexchange.com"

	defaultFetchTimeout = 10 * time.Second

	// Hacker News is fetched item-by-item; cap the sub-requests and space
	// them out to stay under the public API's informal rate limits.
	hnTopStoriesWindow = 30
	hnMaxItemFetches   = 10
	hnItemDelay        = 100 * time.Millisecond
)

// newSourceClient returns the HTTP client used by a fetcher, applying the
// default timeout when the caller passed nil.
func newSourceClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: defaultFetchTimeout}
}

// getJSON issues a GET for url and decodes the JSON response body into v.
func getJSON(ctx context.Context, client *http.Client, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// ── GitHub trending ──────────────────────────────────────────────────────────

// GitHubTrendingSource harvests term material from recently created,
// highly starred repositories: names, descriptions, and topic lists.
type GitHubTrendingSource struct {
	BaseURL string
	Client  *http.Client
}

// NewGitHubTrendingSource creates a GitHub fetcher. client may be nil, in
// which case a client with the default fetch timeout is used.
func NewGitHubTrendingSource(client *http.Client) *GitHubTrendingSource {
	return &GitHubTrendingSource{
		BaseURL: defaultGitHubBaseURL,
		Client:  newSourceClient(client),
	}
}

// Name implements [SourceFetcher].
func (g *GitHubTrendingSource) Name() string { return "github" }

// Fetch implements [SourceFetcher]. Each repository contributes a single
// free-text line combining name, description, and topics.
func (g *GitHubTrendingSource) Fetch(ctx context.Context) (Harvest, error) {
	url := g.BaseURL + "/search/repositories?q=created:>2024-01-01&sort=stars&order=desc&per_page=50"

	var payload struct {
		Items []struct {
			Name        string   `json:"name"`
			Description string   `json:"description"`
			Topics      []string `json:"topics"`
		} `json:"items"`
	}
	if err := getJSON(ctx, g.Client, url, &payload); err != nil {
		return Harvest{}, fmt.Errorf("github trending: %w", err)
	}

	texts := make([]string, 0, len(payload.Items))
	for _, repo := range payload.Items {
		texts = append(texts, repo.Name+" "+repo.Description+" "+strings.Join(repo.Topics, " "))
	}
	return Harvest{Texts: texts}, nil
}

// ── Hacker News ──────────────────────────────────────────────────────────────

// HackerNewsSource harvests term material from front-page story titles.
type HackerNewsSource struct {
	BaseURL string
	Client  *http.Client

	// itemDelay spaces out per-story requests. Overridable in tests.
	itemDelay time.Duration
}

// NewHackerNewsSource creates a Hacker News fetcher. client may be nil.
func NewHackerNewsSource(client *http.Client) *HackerNewsSource {
	return &HackerNewsSource{
		BaseURL:   defaultHackerNewsBaseURL,
		Client:    newSourceClient(client),
		itemDelay: hnItemDelay,
	}
}

// Name implements [SourceFetcher].
func (h *HackerNewsSource) Name() string { return "hackernews" }

// Fetch implements [SourceFetcher]. It reads the top-story ID list, then
// fetches a capped number of individual items with an inter-request delay.
// A failed item fetch skips that story only.
func (h *HackerNewsSource) Fetch(ctx context.Context) (Harvest, error) {
	var ids []int64
	if err := getJSON(ctx, h.Client, h.BaseURL+"/v0/topstories.json", &ids); err != nil {
		return Harvest{}, fmt.Errorf("hackernews top stories: %w", err)
	}
	if len(ids) > hnTopStoriesWindow {
		ids = ids[:hnTopStoriesWindow]
	}
	if len(ids) > hnMaxItemFetches {
		ids = ids[:hnMaxItemFetches]
	}

	var texts []string
	for i, id := range ids {
		var item struct {
			Title string `json:"title"`
		}
		url := fmt.Sprintf("%s/v0/item/%d.json", h.BaseURL, id)
		if err := getJSON(ctx, h.Client, url, &item); err != nil {
			continue
		}
		if item.Title != "" {
			texts = append(texts, item.Title)
		}

		if i < len(ids)-1 && h.itemDelay > 0 {
			select {
			case <-ctx.Done():
				return Harvest{Texts: texts}, ctx.Err()
			case <-time.After(h.itemDelay):
			}
		}
	}
	return Harvest{Texts: texts}, nil
}

// ── Stack Overflow ───────────────────────────────────────────────────────────

// StackOverflowSource harvests popular tags together with their usage counts.
// Tags arrive pre-tokenised, so they bypass text extraction and are validated
// individually as structured tags.
type StackOverflowSource struct {
	BaseURL string
	Client  *http.Client
}

// NewStackOverflowSource creates a Stack Overflow fetcher. client may be nil.
func NewStackOverflowSource(client *http.Client) *StackOverflowSource {
	return &StackOverflowSource{
		BaseURL: defaultStackOverflowBaseURL,
		Client:  newSourceClient(client),
	}
}

// Name implements [SourceFetcher].
func (s *StackOverflowSource) Name() string { return "stackoverflow" }

// Fetch implements [SourceFetcher].
func (s *StackOverflowSource) Fetch(ctx context.Context) (Harvest, error) {
	url := s.BaseURL + "/2.3/tags?order=desc&sort=popular&site=stackoverflow&pagesize=100"

	var payload struct {
		Items []struct {
			Name  string `json:"name"`
			Count int    `json:"count"`
		} `json:"items"`
	}
	if err := getJSON(ctx, s.Client, url, &payload); err != nil {
		return Harvest{}, fmt.Errorf("stackoverflow tags: %w", err)
	}

	tags := make([]TagCount, 0, len(payload.Items))
	for _, item := range payload.Items {
		tags = append(tags, TagCount{Name: item.Name, Count: item.Count})
	}
	return Harvest{Tags: tags}, nil
}
