// Package arxiv is the remote paper search collaborator: a thin client
// for the arXiv Atom query API with the query normalization and pagination
// semantics the marxiv UI relies on.
//
// The only guarantee marxiv needs from arXiv is stable pagination: the
// same query with increasing offsets must not return duplicate or skipped
// records under normal operation. arXiv's API provides that as long as
// results stay sorted by submission date, which the client always requests.
package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// DefaultBaseURL is the public arXiv query endpoint.
const DefaultBaseURL = "https://export.arxiv.org/api/query"

// DefaultPageSize matches the web client's result page.
const DefaultPageSize = 10

// Paper is one search result.
type Paper struct {
	ID        string    `json:"id"`      // full id, e.g. "http://arxiv.org/abs/2103.12345v1"
	ShortID   string    `json:"shortId"` // e.g. "2103.12345"
	Title     string    `json:"title"`
	Summary   string    `json:"summary"`
	Authors   []string  `json:"authors"`
	Published time.Time `json:"published"`
	Updated   time.Time `json:"updated"`
	Category  string    `json:"category"`
	PDFLink   string    `json:"pdfLink,omitempty"`
}

// Response is one page of search results.
type Response struct {
	TotalResults int     `json:"totalResults"`
	StartIndex   int     `json:"startIndex"`
	ItemsPerPage int     `json:"itemsPerPage"`
	Papers       []Paper `json:"entries"`
}

// Client queries the arXiv API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client. An empty baseURL uses the public endpoint;
// a nil httpClient uses a 30 second timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: baseURL, http: httpClient}
}

// Search runs a free-text query with pagination. Results are sorted by
// submission date descending, newest first.
func (c *Client) Search(ctx context.Context, query string, start, maxResults int) (*Response, error) {
	if maxResults <= 0 {
		maxResults = DefaultPageSize
	}

	params := url.Values{}
	params.Set("search_query", NormalizeQuery(query))
	params.Set("start", fmt.Sprint(start))
	params.Set("max_results", fmt.Sprint(maxResults))
	params.Set("sortBy", "submittedDate")
	params.Set("sortOrder", "descending")

	feed, err := c.fetch(ctx, params)
	if err != nil {
		return nil, err
	}

	resp := &Response{
		TotalResults: feed.TotalResults,
		StartIndex:   feed.StartIndex,
		ItemsPerPage: feed.ItemsPerPage,
		Papers:       make([]Paper, 0, len(feed.Entries)),
	}
	for _, entry := range feed.Entries {
		resp.Papers = append(resp.Papers, parseEntry(entry))
	}
	return resp, nil
}

// GetByID fetches a single paper by its short arXiv id.
func (c *Client) GetByID(ctx context.Context, id string) (*Paper, error) {
	params := url.Values{}
	params.Set("id_list", id)

	feed, err := c.fetch(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(feed.Entries) == 0 {
		return nil, fmt.Errorf("paper not found: %s", id)
	}

	paper := parseEntry(feed.Entries[0])
	return &paper, nil
}

// fetch performs the HTTP request and parses the Atom feed.
func (c *Client) fetch(ctx context.Context, params url.Values) (*atomFeed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arXiv request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arXiv API error: %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}
	return &feed, nil
}

// Atom feed structures for the arXiv API.

type atomFeed struct {
	XMLName      xml.Name    `xml:"feed"`
	TotalResults int         `xml:"totalResults"`
	StartIndex   int         `xml:"startIndex"`
	ItemsPerPage int         `xml:"itemsPerPage"`
	Entries      []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID         string         `xml:"id"`
	Title      string         `xml:"title"`
	Summary    string         `xml:"summary"`
	Authors    []atomAuthor   `xml:"author"`
	Categories []atomCategory `xml:"category"`
	Links      []atomLink     `xml:"link"`
	Published  string         `xml:"published"`
	Updated    string         `xml:"updated"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomCategory struct {
	Term string `xml:"term,attr"`
}

type atomLink struct {
	Rel   string `xml:"rel,attr"`
	Href  string `xml:"href,attr"`
	Type  string `xml:"type,attr"`
	Title string `xml:"title,attr"`
}

var whitespace = regexp.MustCompile(`\s+`)

// parseEntry converts an atom entry to a Paper.
func parseEntry(entry atomEntry) Paper {
	// Titles sometimes contain embedded newlines.
	title := strings.TrimSpace(whitespace.ReplaceAllString(entry.Title, " "))

	shortID := entry.ID
	if idx := strings.Index(entry.ID, "/abs/"); idx >= 0 {
		shortID = entry.ID[idx+len("/abs/"):]
	}

	authors := make([]string, 0, len(entry.Authors))
	for _, a := range entry.Authors {
		authors = append(authors, a.Name)
	}

	category := ""
	if len(entry.Categories) > 0 {
		category = entry.Categories[0].Term
	}

	pdfLink := ""
	for _, l := range entry.Links {
		if l.Title == "pdf" || l.Type == "application/pdf" {
			pdfLink = l.Href
			break
		}
	}

	p := Paper{
		ID:       entry.ID,
		ShortID:  shortID,
		Title:    title,
		Summary:  strings.TrimSpace(entry.Summary),
		Authors:  authors,
		Category: category,
		PDFLink:  pdfLink,
	}
	p.Published, _ = time.Parse(time.RFC3339, entry.Published)
	p.Updated, _ = time.Parse(time.RFC3339, entry.Updated)
	return p
}
