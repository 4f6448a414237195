package gnews

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/time/rate"

	"dailycast/internal/config"
	"dailycast/internal/dates"
	"dailycast/internal/logging"
	"dailycast/internal/services"
	"dailycast/internal/stage"
)

const searchEndpoint = "https://news.google.com/rss/search"

// Client discovers headlines through the Google News search feed. One feed
// query is issued per topic; results are filtered to the target publication
// date and redirect links are resolved to the article's real URL.
type Client struct {
	endpoint   string
	userAgent  string
	maxResults int
	httpClient *http.Client
	parser     *gofeed.Parser
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient builds a discovery client from configuration.
func NewClient(cfg *config.Config, limiter *rate.Limiter, logger *slog.Logger) *Client {
	if logger == nil {
		logger = logging.NewNop()
	}
	timeout := time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second
	httpClient := &http.Client{Timeout: timeout}
	parser := gofeed.NewParser()
	parser.UserAgent = cfg.Fetch.UserAgent

	return &Client{
		endpoint:   searchEndpoint,
		userAgent:  cfg.Fetch.UserAgent,
		maxResults: cfg.Fetch.MaxResultsPerTopic,
		httpClient: httpClient,
		parser:     parser,
		limiter:    limiter,
		logger:     logger.With(logging.String(logging.FieldStage, "fetch")),
	}
}

// Fetch implements stage.Fetcher.
func (c *Client) Fetch(ctx context.Context, topic, date string) ([]stage.Discovery, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	feedURL := c.searchURL(topic)
	feed, err := c.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrDiscovery, "fetch", "parse feed", topic, err)
	}

	discoveries := make([]stage.Discovery, 0, len(feed.Items))
	for _, item := range feed.Items {
		if c.maxResults > 0 && len(discoveries) >= c.maxResults {
			break
		}
		if item == nil || strings.TrimSpace(item.Link) == "" {
			continue
		}

		feedDate, published := itemDates(item)
		if published != date {
			continue
		}

		realURL, err := c.resolveURL(ctx, item.Link)
		if err != nil {
			c.logger.Warn("could not resolve article link",
				logging.String(logging.FieldTopic, topic),
				logging.String(logging.FieldURL, item.Link),
				logging.Error(err))
			realURL = item.Link
		}

		discoveries = append(discoveries, stage.Discovery{
			Topic:         topic,
			Title:         cleanTitle(item.Title),
			URL:           item.Link,
			RealURL:       realURL,
			Source:        sourceOf(realURL),
			FeedDate:      feedDate,
			PublishedDate: published,
		})
	}

	c.logger.Info("topic discovery complete",
		logging.String(logging.FieldTopic, topic),
		logging.String(logging.FieldDate, date),
		logging.Int("found", len(discoveries)))
	return discoveries, nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return services.Wrap(services.ErrDiscovery, "fetch", "rate limit", "", err)
	}
	return nil
}

func (c *Client) searchURL(topic string) string {
	query := url.Values{}
	query.Set("q", topic)
	query.Set("hl", "en-US")
	query.Set("gl", "US")
	query.Set("ceid", "US:en")
	return c.endpoint + "?" + query.Encode()
}

// resolveURL follows the aggregator's redirect chain to the article itself.
func (c *Client) resolveURL(ctx context.Context, link string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("follow redirect: %w", err)
	}
	defer resp.Body.Close()

	final := resp.Request.URL.String()
	if final == "" {
		return link, nil
	}
	return final, nil
}

func itemDates(item *gofeed.Item) (feedDate, published string) {
	feedDate = strings.TrimSpace(item.Published)
	if item.PublishedParsed != nil {
		return feedDate, item.PublishedParsed.UTC().Format(dates.DayFormat)
	}
	if day, ok := dates.ParseFeedDate(feedDate); ok {
		return feedDate, day
	}
	return feedDate, ""
}

// cleanTitle strips the trailing " - Publisher" suffix the aggregator
// appends to headlines.
func cleanTitle(title string) string {
	title = strings.TrimSpace(title)
	if idx := strings.LastIndex(title, " - "); idx > 0 {
		return strings.TrimSpace(title[:idx])
	}
	return title
}

// sourceOf derives the publisher name from the resolved article URL. The
// RSS <source> element is not exposed by the feed parser, so the host is
// the only reliable signal.
func sourceOf(realURL string) string {
	if parsed, err := url.Parse(realURL); err == nil && parsed.Host != "" {
		return strings.TrimPrefix(parsed.Host, "www.")
	}
	return ""
}
