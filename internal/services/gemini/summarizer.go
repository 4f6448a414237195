package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"dailycast/internal/config"
	"dailycast/internal/logging"
	"dailycast/internal/services"
	"dailycast/internal/stage"
	"dailycast/internal/store"
)

// generator abstracts the model call so tests can substitute a fake.
type generator interface {
	generate(ctx context.Context, prompt string) (string, error)
}

// Summarizer condenses a topic's scraped articles into one shared summary
// using the Gemini API. Every record in a batch receives the same topic
// summary.
type Summarizer struct {
	gen      generator
	client   *genai.Client
	maxChars int
	timeout  time.Duration
	logger   *slog.Logger
}

// New builds a summarizer backed by the Gemini API.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Summarizer, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	apiKey := strings.TrimSpace(cfg.Gemini.APIKey)
	if apiKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "summarize", "client", "missing Gemini API key", nil)
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "summarize", "client", "create Gemini client", err)
	}

	model := client.GenerativeModel(cfg.Gemini.Model)
	model.SetTemperature(0.3)
	model.SetTopK(40)
	model.SetTopP(0.95)
	model.SetMaxOutputTokens(1024)

	return &Summarizer{
		gen:      &modelGenerator{model: model},
		client:   client,
		maxChars: cfg.Gemini.MaxArticleChars,
		timeout:  time.Duration(cfg.Gemini.TimeoutSeconds) * time.Second,
		logger:   logger.With(logging.String(logging.FieldStage, "summarize")),
	}, nil
}

// Close releases the underlying API client.
func (s *Summarizer) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

// Summarize implements stage.Summarizer.
func (s *Summarizer) Summarize(ctx context.Context, topic string, records []*store.ContentRecord) (map[int64]stage.Summary, error) {
	if len(records) == 0 {
		return map[int64]stage.Summary{}, nil
	}

	date := records[0].PublishedDate
	prompt := s.buildPrompt(topic, date, records)

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	text, err := s.gen.generate(callCtx, prompt)
	if err != nil {
		return nil, classify("generate summary", topic, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, services.Wrap(services.ErrSummarization, "summarize", "generate summary",
			fmt.Sprintf("%s: empty model response", topic), nil)
	}

	s.logger.Info("topic summarized",
		logging.String(logging.FieldTopic, topic),
		logging.Int("articles", len(records)),
		logging.Int("summary_chars", len(text)))

	summaries := make(map[int64]stage.Summary, len(records))
	for _, record := range records {
		summaries[record.ID] = stage.Summary{Text: text}
	}
	return summaries, nil
}

func (s *Summarizer) buildPrompt(topic, date string, records []*store.ContentRecord) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are a professional news summarizer. Analyze the following articles about %q from %s and create a concise summary.\n", topic, date)

	for i, record := range records {
		content := record.CleanText
		if s.maxChars > 0 && len(content) > s.maxChars {
			content = content[:s.maxChars]
		}
		fmt.Fprintf(&sb, "\n--- Article %d ---\n", i+1)
		fmt.Fprintf(&sb, "Title: %s\n", record.Title)
		fmt.Fprintf(&sb, "Source: %s\n", record.Source)
		fmt.Fprintf(&sb, "Content: %s\n", content)
	}

	fmt.Fprintf(&sb, "\nProvide a summary with the following format:\n\n")
	fmt.Fprintf(&sb, "**%s Summary for %s**\n\n", topic, date)
	sb.WriteString("• [Key point 1 with specific facts, locations, events, and people]\n")
	sb.WriteString("• [Key point 2 with specific facts, locations, events, and people]\n")
	sb.WriteString("• [Key point 3 with specific facts, locations, events, and people]\n")
	sb.WriteString("• [Key point 4 with specific facts, locations, events, and people]\n")
	sb.WriteString("• [Key point 5 with specific facts, locations, events, and people]\n\n")
	sb.WriteString("Focus on the most important developments, specific names, locations, dates, key figures, and the impact of major events. Keep each bullet point concise but informative and grounded in the articles.")
	return sb.String()
}

func classify(operation, topic string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return services.Wrap(services.ErrConfiguration, "summarize", operation, "Gemini API rejected credentials", err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "summarize", operation, topic, err)
	}
	return services.Wrap(services.ErrSummarization, "summarize", operation, topic, err)
}

type modelGenerator struct {
	model *genai.GenerativeModel
}

func (g *modelGenerator) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String(), nil
}
