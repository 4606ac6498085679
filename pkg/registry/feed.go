package registry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-regwatch/pkg/apperrors"
)

// Feed is a parsed RSS 2.0 or Atom newsroom feed.
type Feed struct {
	Title string
	Link  string
	Items []FeedItem
}

// FeedItem is one newsroom entry.
type FeedItem struct {
	GUID        string
	Title       string
	Link        string
	Description string
	Content     string
	Published   *time.Time
}

// ExternalID is the dedup key for a feed item: its GUID, or its link.
func (i *FeedItem) ExternalID() string {
	if i.GUID != "" {
		return i.GUID
	}
	return i.Link
}

// FeedFetcher fetches newsroom feeds.
type FeedFetcher interface {
	FetchFeed(ctx context.Context, feedURL string) (*Feed, error)
}

// FeedClient fetches and parses newsroom feeds.
type FeedClient struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

var _ FeedFetcher = (*FeedClient)(nil)

// NewFeedClient creates a FeedClient sharing the registry timeouts and user agent.
func NewFeedClient(cfg Config, logger *zap.Logger) *FeedClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	return &FeedClient{
		cfg:        cfg,
		httpClient: &http.Client{},
		logger:     logger.Named("feed"),
	}
}

// FetchFeed downloads and parses feedURL.
func (c *FeedClient) FetchFeed(ctx context.Context, feedURL string) (*Feed, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, apperrors.RegistryError(0, "invalid feed URL", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.RegistryError(0, "feed request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
		return nil, apperrors.RegistryError(resp.StatusCode, string(body), nil)
	}

	parsed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, apperrors.RegistryError(resp.StatusCode, "unsupported or malformed feed", err)
	}

	feed := &Feed{Title: parsed.Title, Link: parsed.Link, Items: make([]FeedItem, 0, len(parsed.Items))}
	for _, it := range parsed.Items {
		item := FeedItem{
			GUID:        it.GUID,
			Title:       strings.TrimSpace(it.Title),
			Link:        it.Link,
			Description: it.Description,
			Content:     it.Content,
			Published:   it.PublishedParsed,
		}
		if item.Published == nil {
			item.Published = it.UpdatedParsed
		}
		feed.Items = append(feed.Items, item)
	}

	c.logger.Debug("Fetched feed",
		zap.String("url", feedURL),
		zap.Int("items", len(feed.Items)))

	return feed, nil
}

// DownloadPDF fetches a PDF linked from a feed item.
func (c *FeedClient) DownloadPDF(ctx context.Context, pdfURL string) ([]byte, error) {
	cfg := c.cfg
	if cfg.PDFTimeout <= 0 {
		cfg.PDFTimeout = 2 * time.Minute
	}
	if cfg.MaxPDFBytes <= 0 {
		cfg.MaxPDFBytes = 50 << 20
	}
	return download(ctx, c.httpClient, cfg, pdfURL, c.logger)
}

var pdfURLPattern = regexp.MustCompile(`(?i)https?://[^\s<>"']+\.pdf`)

// ExtractPDFURL finds a PDF link for item: an anchor in its HTML body, then a
// bare URL in the text, then the item link itself. Returns "" when none exists.
func ExtractPDFURL(item FeedItem) string {
	body := item.Description + " " + item.Content

	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(body)); err == nil {
		var found string
		doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			href, _ := s.Attr("href")
			if isPDFLink(href) {
				found = resolve(item.Link, href)
				return false
			}
			return true
		})
		if found != "" {
			return found
		}
	}

	if m := pdfURLPattern.FindString(body); m != "" {
		return m
	}
	if isPDFLink(item.Link) {
		return item.Link
	}
	return ""
}

// SummaryText returns the item's description as plain text.
func SummaryText(item FeedItem) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(item.Description))
	if err != nil {
		return strings.TrimSpace(item.Description)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func isPDFLink(href string) bool {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(u.Path), ".pdf")
}

func resolve(base, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	if ref.IsAbs() || base == "" {
		return ref.String()
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref.String()
	}
	return b.ResolveReference(ref).String()
}

// String implements fmt.Stringer for log output.
func (i FeedItem) String() string {
	return fmt.Sprintf("%s (%s)", i.Title, i.ExternalID())
}
