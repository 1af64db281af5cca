package config

const (
	defaultOrganizedDir         = "Organized"
	defaultDuplicatesDir        = "Duplicates"
	defaultTaggedDir            = "Tagged"
	defaultLogDir               = "logs"
	defaultStateDir             = "logs/checkpoints"
	defaultTagsDir              = "config"
	defaultIgnoreFile           = ".mediaignore"
	defaultMinFileSizeKB        = 1
	defaultHashWorkers          = 1
	defaultConfidenceThreshold  = 0.3
	defaultBatchSize            = 2
	defaultTaggingWorkers       = 1
	defaultTaggingTimeout       = 60
	defaultFrameIntervalSeconds = 1
	defaultMaxVideoFrames       = 8
	defaultFFmpegBinary         = "ffmpeg"
	defaultFFprobeBinary        = "ffprobe"
	defaultUnsafeThreshold      = 0.8
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultLogRetentionDays     = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OrganizedDir:  defaultOrganizedDir,
			DuplicatesDir: defaultDuplicatesDir,
			TaggedDir:     defaultTaggedDir,
			LogDir:        defaultLogDir,
			StateDir:      defaultStateDir,
			TagsDir:       defaultTagsDir,
		},
		Scan: Scan{
			IgnoreFile: defaultIgnoreFile,
		},
		Dedup: Dedup{
			MinFileSizeKB: defaultMinFileSizeKB,
			HashWorkers:   defaultHashWorkers,
		},
		Tagging: Tagging{
			Enabled:              true,
			ConfidenceThreshold:  defaultConfidenceThreshold,
			BatchSize:            defaultBatchSize,
			Workers:              defaultTaggingWorkers,
			TimeoutSeconds:       defaultTaggingTimeout,
			FrameIntervalSeconds: defaultFrameIntervalSeconds,
			MaxVideoFrames:       defaultMaxVideoFrames,
			FFmpegBinary:         defaultFFmpegBinary,
		},
		NSFW: NSFW{
			UnsafeThreshold: defaultUnsafeThreshold,
		},
		Dates: Dates{
			FFprobeBinary: defaultFFprobeBinary,
		},
		Pipeline: Pipeline{
			Resume: true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
