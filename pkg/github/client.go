// Package github is the GitHub API client used by the ghreleases backend.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Release represents a GitHub release
type Release struct {
	TagName     string    `json:"tag_name"`     // Tag name (e.g., "v1.0.0")
	Name        string    `json:"name"`         // Release name
	Assets      []Asset   `json:"assets"`       // Release assets
	PublishedAt time.Time `json:"published_at"` // When the release was published
	Body        string    `json:"body"`         // Release description
}

// Asset represents a GitHub release asset
type Asset struct {
	Name        string `json:"name"`                 // Asset name
	Size        int64  `json:"size"`                 // Asset size in bytes
	DownloadURL string `json:"browser_download_url"` // URL to download the asset
}

// SearchResult is one page-merged repository search response
type SearchResult struct {
	TotalCount int          `json:"total_count"`
	Items      []Repository `json:"items"`
}

// Repository is a repository as returned by the search API
type Repository struct {
	ID       int    `json:"id"`
	FullName string `json:"full_name"`
	Name     string `json:"name"`
	Owner    struct {
		Login string `json:"login"`
	} `json:"owner"`
	Description string `json:"description"`
	Language    string `json:"language"`
	Stars       int    `json:"stargazers_count"`
	UpdatedAt   string `json:"updated_at"`
}

// Client defines the interface for GitHub API operations
type Client interface {
	// GetLatestRelease gets the latest release for a repository
	GetLatestRelease(ctx context.Context, owner, repo string) (*Release, error)

	// DownloadAsset downloads a release asset to a specified path
	DownloadAsset(ctx context.Context, downloadURL, destPath string) error

	// SearchRepositories searches for repositories using the GitHub
	// search API, sorted by stars
	SearchRepositories(ctx context.Context, query string) (*SearchResult, error)
}

// maxSearchPages caps search pagination; browsing past this many results
// interactively is not useful.
const maxSearchPages = 3

// client implements the Client interface
type client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewClient creates a new GitHub client
func NewClient(token string) Client {
	return &client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: "https://api.github.com",
		token:   token,
	}
}

func (c *client) get(ctx context.Context, url, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if c.token != "" {
		req.Header.Set("Authorization", "token "+c.token)
	}
	req.Header.Set("Accept", accept)

	return c.httpClient.Do(req)
}

// GetLatestRelease gets the latest release for a repository
func (c *client) GetLatestRelease(ctx context.Context, owner, repo string) (*Release, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/releases/latest", c.baseURL, owner, repo)
	resp, err := c.get(ctx, url, "application/vnd.github.v3+json")
	if err != nil {
		return nil, fmt.Errorf("failed to get latest release: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to get latest release: %s", resp.Status)
	}

	var release Release
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &release, nil
}

// DownloadAsset downloads a release asset to a specified path
func (c *client) DownloadAsset(ctx context.Context, downloadURL, destPath string) error {
	resp, err := c.get(ctx, downloadURL, "application/octet-stream")
	if err != nil {
		return fmt.Errorf("failed to download asset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download asset: %s", resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

// SearchRepositories searches for repositories using the GitHub search API
func (c *client) SearchRepositories(ctx context.Context, query string) (*SearchResult, error) {
	var allResults SearchResult

	for page := 1; page <= maxSearchPages; page++ {
		searchURL := fmt.Sprintf("%s/search/repositories?q=%s&sort=stars&per_page=100&page=%d",
			c.baseURL, url.QueryEscape(query), page)
		resp, err := c.get(ctx, searchURL, "application/vnd.github.v3+json")
		if err != nil {
			return nil, fmt.Errorf("failed to search repositories: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return nil, fmt.Errorf("failed to search repositories: %s - %s", resp.Status, string(body))
		}

		var result SearchResult
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}

		linkHeader := resp.Header.Get("Link")
		resp.Body.Close()

		allResults.TotalCount = result.TotalCount
		allResults.Items = append(allResults.Items, result.Items...)

		if !strings.Contains(linkHeader, `rel="next"`) {
			break
		}
	}

	return &allResults, nil
}
