package config

const (
	defaultDataDir              = "~/.local/share/tubelens"
	defaultScreenshotsSubdir    = "screenshots"
	defaultAudioSubdir          = "audio"
	defaultResultsSubdir        = "results"
	defaultLogSubdir            = "logs"
	defaultAPIBind              = "127.0.0.1:7488"
	defaultPublicPrefix         = "/uploads"
	defaultNavigationTimeout    = 30
	defaultMetadataTimeout      = 15
	defaultPlayerTimeout        = 10
	defaultSettleDelayMillis    = 3000
	defaultViewportWidth        = 1280
	defaultViewportHeight       = 720
	defaultScreenshotQuality    = 80
	defaultUserAgent            = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	defaultYtDlpBinary          = "yt-dlp"
	defaultFFmpegBinary         = "ffmpeg"
	defaultFFprobeBinary        = "ffprobe"
	defaultSampleRate           = 16000
	defaultChannels             = 1
	defaultBitDepth             = 16
	defaultDownloadTimeout      = 300
	defaultTranscodeTimeout     = 120
	defaultTranscriptionBaseURL = "https://api.elevenlabs.io/v1"
	defaultTranscriptionModel   = "scribe_v1"
	defaultTranscriptionTimeout = 60
	defaultMaxUploadMB          = 1000
	defaultDetectionBaseURL     = "https://api-inference.huggingface.co/models"
	defaultDetectionModel       = "roberta-base-openai-detector"
	defaultDetectionTimeout     = 30
	defaultDetectionRPS         = 5
	defaultDetectionBurst       = 1
	defaultCaptureAttempts      = 2
	defaultAcquireAttempts      = 2
	defaultRetryBaseDelayMs     = 500
	defaultRetryMaxDelayMs      = 5000
	defaultRetentionSchedule    = "0 30 3 * * *"
	defaultRetentionMaxAgeDays  = 30
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultMetricsPath          = "/metrics"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:      defaultDataDir,
			APIBind:      defaultAPIBind,
			PublicPrefix: defaultPublicPrefix,
		},
		Browser: Browser{
			Headless:          true,
			NavigationTimeout: defaultNavigationTimeout,
			MetadataTimeout:   defaultMetadataTimeout,
			PlayerTimeout:     defaultPlayerTimeout,
			SettleDelayMillis: defaultSettleDelayMillis,
			ViewportWidth:     defaultViewportWidth,
			ViewportHeight:    defaultViewportHeight,
			UserAgent:         defaultUserAgent,
			ScreenshotQuality: defaultScreenshotQuality,
		},
		Audio: Audio{
			YtDlpBinary:      defaultYtDlpBinary,
			FFmpegBinary:     defaultFFmpegBinary,
			FFprobeBinary:    defaultFFprobeBinary,
			SampleRate:       defaultSampleRate,
			Channels:         defaultChannels,
			BitDepth:         defaultBitDepth,
			DownloadTimeout:  defaultDownloadTimeout,
			TranscodeTimeout: defaultTranscodeTimeout,
		},
		Transcription: Transcription{
			BaseURL:        defaultTranscriptionBaseURL,
			ModelID:        defaultTranscriptionModel,
			TimeoutSeconds: defaultTranscriptionTimeout,
			MaxUploadMB:    defaultMaxUploadMB,
		},
		Detection: Detection{
			BaseURL:           defaultDetectionBaseURL,
			Model:             defaultDetectionModel,
			TimeoutSeconds:    defaultDetectionTimeout,
			RequestsPerSecond: defaultDetectionRPS,
			Burst:             defaultDetectionBurst,
		},
		Pipeline: Pipeline{
			CaptureAttempts:  defaultCaptureAttempts,
			AcquireAttempts:  defaultAcquireAttempts,
			RetryBaseDelayMs: defaultRetryBaseDelayMs,
			RetryMaxDelayMs:  defaultRetryMaxDelayMs,
		},
		Retention: Retention{
			Schedule:   defaultRetentionSchedule,
			MaxAgeDays: defaultRetentionMaxAgeDays,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Metrics: Metrics{
			Path: defaultMetricsPath,
		},
	}
}
