// Package registry fetches publications from the Federal Register API and
// agency newsroom feeds.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-regwatch/pkg/apperrors"
)

// DefaultBaseURL is the public Federal Register API root.
const DefaultBaseURL = "https://www.federalregister.gov/api/v1"

// DefaultUserAgent is sent on every outbound request.
const DefaultUserAgent = "Mozilla/5.0 (compatible; Regulatory Monitor/1.0)"

// documentFields are the fields requested from /documents.json.
var documentFields = []string{
	"document_number",
	"title",
	"type",
	"abstract",
	"publication_date",
	"pdf_url",
	"html_url",
	"citation",
	"significant",
	"agencies",
}

// DocumentAgency is one agency attached to a registry document.
type DocumentAgency struct {
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	ParentID *int   `json:"parent_id,omitempty"`
}

// Document is one registry search result.
type Document struct {
	DocumentNumber  string           `json:"document_number"`
	Citation        string           `json:"citation"`
	Title           string           `json:"title"`
	Type            string           `json:"type"`
	Abstract        string           `json:"abstract"`
	PublicationDate string           `json:"publication_date"`
	PDFURL          string           `json:"pdf_url"`
	HTMLURL         string           `json:"html_url"`
	Significant     bool             `json:"significant"`
	Agencies        []DocumentAgency `json:"agencies"`
}

// PublicationTime parses PublicationDate (YYYY-MM-DD); nil when absent or malformed.
func (d *Document) PublicationTime() *time.Time {
	if d.PublicationDate == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", d.PublicationDate)
	if err != nil {
		return nil
	}
	return &t
}

// AgencySlugs returns the slugs of the attached agencies.
func (d *Document) AgencySlugs() []string {
	slugs := make([]string, 0, len(d.Agencies))
	for _, a := range d.Agencies {
		if a.Slug != "" {
			slugs = append(slugs, a.Slug)
		}
	}
	return slugs
}

// DocumentsResponse is the /documents.json envelope.
type DocumentsResponse struct {
	Count           int        `json:"count"`
	Results         []Document `json:"results"`
	NextPageURL     *string    `json:"next_page_url"`
	PreviousPageURL *string    `json:"previous_page_url"`
}

// FetchOptions filters a document search. Zero values are omitted.
type FetchOptions struct {
	AgencySlugs        []string
	DocumentTypes      []string
	OnlySignificant    bool
	PerPage            int
	Page               int
	PublicationDateGTE string
	PublicationDateLTE string
}

// Registry is the registry surface the pipeline depends on.
type Registry interface {
	FetchDocuments(ctx context.Context, opts FetchOptions) (*DocumentsResponse, error)
	DownloadPDF(ctx context.Context, pdfURL string) ([]byte, error)
}

// Config configures a FederalRegisterClient.
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	PDFTimeout  time.Duration
	MaxPDFBytes int64
	UserAgent   string
}

// FederalRegisterClient talks to the Federal Register JSON API.
type FederalRegisterClient struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

var _ Registry = (*FederalRegisterClient)(nil)

// NewFederalRegisterClient creates a client. Empty config fields take defaults.
func NewFederalRegisterClient(cfg Config, logger *zap.Logger) *FederalRegisterClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.PDFTimeout <= 0 {
		cfg.PDFTimeout = 2 * time.Minute
	}
	if cfg.MaxPDFBytes <= 0 {
		cfg.MaxPDFBytes = 50 << 20
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	return &FederalRegisterClient{
		cfg:        cfg,
		httpClient: &http.Client{},
		logger:     logger.Named("federal-register"),
	}
}

// buildQuery encodes opts the way the documents endpoint expects.
func buildQuery(opts FetchOptions) url.Values {
	q := url.Values{}
	for _, slug := range opts.AgencySlugs {
		q.Add("conditions[agencies][]", slug)
	}
	for _, t := range opts.DocumentTypes {
		q.Add("conditions[type][]", t)
	}
	if opts.OnlySignificant {
		q.Set("conditions[significant]", "1")
	}
	if opts.PublicationDateGTE != "" {
		q.Set("conditions[publication_date][gte]", opts.PublicationDateGTE)
	}
	if opts.PublicationDateLTE != "" {
		q.Set("conditions[publication_date][lte]", opts.PublicationDateLTE)
	}

	perPage, page := opts.PerPage, opts.Page
	if perPage <= 0 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}
	q.Set("order", "newest")
	q.Set("per_page", strconv.Itoa(perPage))
	q.Set("page", strconv.Itoa(page))
	for _, f := range documentFields {
		q.Add("fields[]", f)
	}
	return q
}

// FetchDocuments searches /documents.json.
func (c *FederalRegisterClient) FetchDocuments(ctx context.Context, opts FetchOptions) (*DocumentsResponse, error) {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/documents.json?" + buildQuery(opts).Encode()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	c.logger.Debug("Fetching registry documents",
		zap.Strings("agencies", opts.AgencySlugs),
		zap.Strings("types", opts.DocumentTypes),
		zap.Int("per_page", opts.PerPage))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.RegistryError(0, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.RegistryError(resp.StatusCode, "failed to read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("Registry returned error",
			zap.Int("status", resp.StatusCode),
			zap.String("body", truncate(string(body), 500)))
		return nil, apperrors.RegistryError(resp.StatusCode, truncate(string(body), 500), nil)
	}

	var out DocumentsResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, apperrors.RegistryError(resp.StatusCode, "malformed response", err)
	}

	c.logger.Debug("Fetched registry documents",
		zap.Int("count", out.Count),
		zap.Int("results", len(out.Results)))

	return &out, nil
}

// DownloadPDF fetches a document PDF, refusing bodies over the configured size.
func (c *FederalRegisterClient) DownloadPDF(ctx context.Context, pdfURL string) ([]byte, error) {
	return download(ctx, c.httpClient, c.cfg, pdfURL, c.logger)
}

func download(ctx context.Context, client *http.Client, cfg Config, target string, logger *zap.Logger) ([]byte, error) {
	if target == "" {
		return nil, apperrors.RegistryError(0, "document has no PDF URL", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.PDFTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, apperrors.RegistryError(0, "invalid PDF URL", err)
	}
	req.Header.Set("User-Agent", cfg.UserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, apperrors.RegistryError(0, "PDF download failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperrors.RegistryError(resp.StatusCode, "PDF download failed", nil)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, cfg.MaxPDFBytes+1))
	if err != nil {
		return nil, apperrors.RegistryError(resp.StatusCode, "failed to read PDF", err)
	}
	if int64(len(data)) > cfg.MaxPDFBytes {
		return nil, apperrors.RegistryError(0, fmt.Sprintf("PDF exceeds %d bytes", cfg.MaxPDFBytes), nil)
	}

	logger.Debug("Downloaded PDF", zap.String("url", target), zap.Int("bytes", len(data)))
	return data, nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
