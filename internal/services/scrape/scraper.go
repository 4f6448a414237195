package scrape

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"dailycast/internal/config"
	"dailycast/internal/logging"
	"dailycast/internal/services"
	"dailycast/internal/stage"
)

const maxBodyBytes = 8 << 20

// Scraper extracts readable article text. Readability extraction runs first;
// when it yields too little text a plain paragraph sweep is used as a
// fallback before giving up.
type Scraper struct {
	userAgent  string
	minChars   int
	httpClient *http.Client
	logger     *slog.Logger
}

// New builds a scraper from configuration.
func New(cfg *config.Config, logger *slog.Logger) *Scraper {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scraper{
		userAgent:  cfg.Fetch.UserAgent,
		minChars:   cfg.Fetch.MinArticleChars,
		httpClient: &http.Client{Timeout: time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second},
		logger:     logger.With(logging.String(logging.FieldStage, "scrape")),
	}
}

// Scrape implements stage.Scraper.
func (s *Scraper) Scrape(ctx context.Context, realURL string) (stage.Article, error) {
	pageURL, err := url.Parse(realURL)
	if err != nil {
		return stage.Article{}, services.Wrap(services.ErrScrape, "scrape", "parse url", realURL, err)
	}

	body, err := s.download(ctx, realURL)
	if err != nil {
		return stage.Article{}, err
	}

	text := s.extract(body, pageURL, realURL)
	text = normalizeWhitespace(text)
	if len(text) < s.minChars {
		return stage.Article{}, services.Wrap(services.ErrScrape, "scrape", "extract",
			fmt.Sprintf("%s: %d chars below minimum %d", realURL, len(text), s.minChars), nil)
	}

	return stage.Article{Text: text, CharCount: len(text)}, nil
}

func (s *Scraper) download(ctx context.Context, realURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, realURL, nil)
	if err != nil {
		return "", services.Wrap(services.ErrScrape, "scrape", "build request", realURL, err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrScrape, "scrape", "fetch", realURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", services.Wrap(services.ErrScrape, "scrape", "fetch",
			fmt.Sprintf("%s: unexpected status %d", realURL, resp.StatusCode), nil)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", services.Wrap(services.ErrScrape, "scrape", "read body", realURL, err)
	}
	return string(raw), nil
}

func (s *Scraper) extract(body string, pageURL *url.URL, realURL string) string {
	article, err := readability.FromReader(strings.NewReader(body), pageURL)
	if err == nil {
		text := strings.TrimSpace(article.TextContent)
		if len(text) >= s.minChars {
			return text
		}
	}
	if err != nil {
		s.logger.Debug("readability extraction failed, trying paragraph sweep",
			logging.String(logging.FieldURL, realURL),
			logging.Error(err))
	}
	return paragraphSweep(body)
}

// paragraphSweep concatenates all <p> text in document order.
func paragraphSweep(body string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return ""
	}
	var parts []string
	doc.Find("p").Each(func(_ int, sel *goquery.Selection) {
		if text := strings.TrimSpace(sel.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, "\n\n")
}

func normalizeWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			cleaned = append(cleaned, strings.Join(strings.Fields(line), " "))
		}
	}
	return strings.Join(cleaned, "\n")
}
