package config

const (
	defaultIndexDB         = "~/.local/share/dailycast/db/search_index.db"
	defaultContentDB       = "~/.local/share/dailycast/db/article_data.db"
	defaultAudioDir        = "~/.local/share/dailycast/audio"
	defaultTempAudioDir    = "~/.local/share/dailycast/audio/temp"
	defaultLogDir          = "~/.local/share/dailycast/logs"
	defaultTopicsFile      = "~/.config/dailycast/topics.md"
	defaultFeedTitle       = "Your Daily News Digest"
	defaultFeedDescription = "AI-generated daily news summaries delivered as audio"
	defaultFeedLanguage    = "en-US"
	defaultFeedCategory    = "News"
	defaultGeminiModel     = "gemini-1.5-flash"
	defaultGeminiTimeout   = 60
	defaultMaxArticleChars = 8000
	defaultVoice           = "en-US-Neural2-F"
	defaultVoiceLanguage   = "en-US"
	defaultSpeakingRate    = 0.9
	defaultSpeechTimeout   = 60
	defaultMaxResults      = 20
	defaultFetchTimeout    = 30
	defaultMinArticleChars = 100
	defaultUserAgent       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	defaultIndexDays       = 7
	defaultContentDays     = 3
	defaultAudioDays       = 7
	defaultLogDays         = 30
	defaultWorkers         = 4
	defaultRetryAttempts   = 3
	defaultRetryInitialMS  = 500
	defaultStageTimeout    = 600
	defaultRunTimeout      = 3600
	defaultRequestsPerMin  = 60
	defaultLogLevel        = "info"
	defaultLogFormat       = "console"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			IndexDB:      defaultIndexDB,
			ContentDB:    defaultContentDB,
			AudioDir:     defaultAudioDir,
			TempAudioDir: defaultTempAudioDir,
			LogDir:       defaultLogDir,
			TopicsFile:   defaultTopicsFile,
		},
		Feed: Feed{
			Title:       defaultFeedTitle,
			Description: defaultFeedDescription,
			Language:    defaultFeedLanguage,
			Category:    defaultFeedCategory,
		},
		Gemini: Gemini{
			Model:           defaultGeminiModel,
			TimeoutSeconds:  defaultGeminiTimeout,
			MaxArticleChars: defaultMaxArticleChars,
		},
		Speech: Speech{
			Voice:          defaultVoice,
			LanguageCode:   defaultVoiceLanguage,
			SpeakingRate:   defaultSpeakingRate,
			TimeoutSeconds: defaultSpeechTimeout,
		},
		Fetch: Fetch{
			MaxResultsPerTopic: defaultMaxResults,
			UserAgent:          defaultUserAgent,
			TimeoutSeconds:     defaultFetchTimeout,
			MinArticleChars:    defaultMinArticleChars,
		},
		Retention: Retention{
			IndexDays:   defaultIndexDays,
			ContentDays: defaultContentDays,
			AudioDays:   defaultAudioDays,
			LogDays:     defaultLogDays,
		},
		Workflow: Workflow{
			Workers:             defaultWorkers,
			RetryAttempts:       defaultRetryAttempts,
			RetryInitialDelayMS: defaultRetryInitialMS,
			StageTimeoutSeconds: defaultStageTimeout,
			RunTimeoutSeconds:   defaultRunTimeout,
			RequestsPerMinute:   defaultRequestsPerMin,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
