package speech

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	texttospeech "google.golang.org/api/texttospeech/v1"

	"dailycast/internal/config"
	"dailycast/internal/logging"
	"dailycast/internal/services"
)

// speechClient abstracts the synthesis call so tests can substitute a fake.
type speechClient interface {
	synthesize(ctx context.Context, text string) ([]byte, error)
}

// Synthesizer converts topic scripts into MP3 segments with the Google Cloud
// Text-to-Speech API.
type Synthesizer struct {
	client  speechClient
	tempDir string
	timeout time.Duration
	logger  *slog.Logger
}

// New builds a synthesizer from configuration. Credentials come from the
// configured service account file, falling back to application default
// credentials when none is set.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Synthesizer, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	opts := []option.ClientOption{}
	if creds := strings.TrimSpace(cfg.Speech.CredentialsFile); creds != "" {
		if _, err := os.Stat(creds); err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "synthesize", "client",
				fmt.Sprintf("credentials file %s", creds), err)
		}
		opts = append(opts, option.WithCredentialsFile(creds))
	}

	service, err := texttospeech.NewService(ctx, opts...)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "synthesize", "client", "create TTS service", err)
	}

	return &Synthesizer{
		client: &apiClient{
			service:      service,
			voice:        cfg.Speech.Voice,
			languageCode: cfg.Speech.LanguageCode,
			speakingRate: cfg.Speech.SpeakingRate,
		},
		tempDir: cfg.Paths.TempAudioDir,
		timeout: time.Duration(cfg.Speech.TimeoutSeconds) * time.Second,
		logger:  logger.With(logging.String(logging.FieldStage, "synthesize")),
	}, nil
}

// Synthesize implements stage.Synthesizer. The segment lands in the temp
// audio directory; the publisher later assembles segments into the digest.
func (s *Synthesizer) Synthesize(ctx context.Context, topic, script, date string) (string, error) {
	if strings.TrimSpace(script) == "" {
		return "", services.Wrap(services.ErrSynthesis, "synthesize", "input",
			fmt.Sprintf("%s: empty script", topic), nil)
	}

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	audio, err := s.client.synthesize(callCtx, script)
	if err != nil {
		return "", classify(topic, err)
	}

	if err := os.MkdirAll(s.tempDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrSynthesis, "synthesize", "temp dir", s.tempDir, err)
	}
	path := filepath.Join(s.tempDir, fmt.Sprintf("%s_summary_%s.mp3", SafeTopic(topic), date))
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return "", services.Wrap(services.ErrSynthesis, "synthesize", "write segment", path, err)
	}

	s.logger.Info("segment synthesized",
		logging.String(logging.FieldTopic, topic),
		logging.String("path", path),
		logging.Int("bytes", len(audio)))
	return path, nil
}

// Narrate synthesizes standalone narration (intro and outro) for a date and
// returns the segment path.
func (s *Synthesizer) Narrate(ctx context.Context, text, name, date string) (string, error) {
	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	audio, err := s.client.synthesize(callCtx, text)
	if err != nil {
		return "", classify(name, err)
	}
	if err := os.MkdirAll(s.tempDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrSynthesis, "synthesize", "temp dir", s.tempDir, err)
	}
	path := filepath.Join(s.tempDir, fmt.Sprintf("%s_%s.mp3", name, date))
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return "", services.Wrap(services.ErrSynthesis, "synthesize", "write narration", path, err)
	}
	return path, nil
}

func classify(subject string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return services.Wrap(services.ErrConfiguration, "synthesize", "tts", "TTS API rejected credentials", err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "synthesize", "tts", subject, err)
	}
	return services.Wrap(services.ErrSynthesis, "synthesize", "tts", subject, err)
}

type apiClient struct {
	service      *texttospeech.Service
	voice        string
	languageCode string
	speakingRate float64
}

func (c *apiClient) synthesize(ctx context.Context, text string) ([]byte, error) {
	req := &texttospeech.SynthesizeSpeechRequest{
		Input: &texttospeech.SynthesisInput{Text: text},
		Voice: &texttospeech.VoiceSelectionParams{
			LanguageCode: c.languageCode,
			Name:         c.voice,
		},
		AudioConfig: &texttospeech.AudioConfig{
			AudioEncoding: "MP3",
			SpeakingRate:  c.speakingRate,
		},
	}
	resp, err := c.service.Text.Synthesize(req).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	audio, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("decode audio content: %w", err)
	}
	if len(audio) == 0 {
		return nil, errors.New("empty audio content")
	}
	return audio, nil
}

// SafeTopic converts a topic into a filesystem-friendly name.
func SafeTopic(topic string) string {
	var sb strings.Builder
	for _, r := range topic {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			sb.WriteRune(r)
		case r == ' ':
			sb.WriteRune('_')
		}
	}
	cleaned := strings.Trim(sb.String(), "_")
	if cleaned == "" {
		return "topic"
	}
	return cleaned
}
