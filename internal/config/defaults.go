package config

const (
	defaultDataDir            = "~/.local/share/faultscope"
	defaultLogDir             = "~/.local/share/faultscope/logs"
	defaultAPIBind            = "127.0.0.1:7519"
	defaultOKLabel            = "OK"
	defaultKOLabel            = "KO"
	defaultLLMBaseURL         = "http://localhost:11434/v1/chat/completions"
	defaultLLMModel           = "llama3.1:8b-instruct-q3_K_M"
	defaultLLMTimeoutSeconds  = 120
	defaultAlgorithm          = "rf"
	defaultTrees              = 50
	defaultCVFolds            = 3
	defaultSeed               = 42
	defaultTopN               = 10
	defaultMinSamples         = 8
	defaultMaxTargets         = 6
	defaultTurnTimeoutSeconds = 300
	defaultExtractWorkers     = 4
	defaultHistoryTurns       = 6
	defaultMinRequestSeconds  = 3
	defaultNotifyTimeout      = 10
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Dataset: Dataset{
			OKLabel: defaultOKLabel,
			KOLabel: defaultKOLabel,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Analysis: Analysis{
			Algorithm:  defaultAlgorithm,
			Trees:      defaultTrees,
			CVFolds:    defaultCVFolds,
			Seed:       defaultSeed,
			TopN:       defaultTopN,
			MinSamples: defaultMinSamples,
			MaxTargets: defaultMaxTargets,
		},
		Workflow: Workflow{
			TurnTimeoutSeconds: defaultTurnTimeoutSeconds,
			ExtractWorkers:     defaultExtractWorkers,
			HistoryTurns:       defaultHistoryTurns,
			MinRequestSeconds:  defaultMinRequestSeconds,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Analysis:       true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
