package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeDataset(); err != nil {
		return err
	}
	c.normalizeLLM()
	c.normalizeAnalysis()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizeDataset() error {
	c.Dataset.Root = strings.TrimSpace(c.Dataset.Root)
	if c.Dataset.Root != "" {
		expanded, err := expandPath(c.Dataset.Root)
		if err != nil {
			return fmt.Errorf("dataset.root: %w", err)
		}
		c.Dataset.Root = expanded
	}
	c.Dataset.OKLabel = strings.TrimSpace(c.Dataset.OKLabel)
	if c.Dataset.OKLabel == "" {
		c.Dataset.OKLabel = defaultOKLabel
	}
	c.Dataset.KOLabel = strings.TrimSpace(c.Dataset.KOLabel)
	if c.Dataset.KOLabel == "" {
		c.Dataset.KOLabel = defaultKOLabel
	}
	return nil
}

func (c *Config) normalizeLLM() {
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("FAULTSCOPE_LLM_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	c.LLM.RouterModel = strings.TrimSpace(c.LLM.RouterModel)
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
}

func (c *Config) normalizeAnalysis() {
	c.Analysis.Algorithm = strings.ToLower(strings.TrimSpace(c.Analysis.Algorithm))
	if c.Analysis.Algorithm == "" {
		c.Analysis.Algorithm = defaultAlgorithm
	}
	if c.Analysis.Trees <= 0 {
		c.Analysis.Trees = defaultTrees
	}
	if c.Analysis.CVFolds <= 0 {
		c.Analysis.CVFolds = defaultCVFolds
	}
	if c.Analysis.TopN <= 0 {
		c.Analysis.TopN = defaultTopN
	}
	if c.Analysis.MinSamples < 2 {
		c.Analysis.MinSamples = defaultMinSamples
	}
	if c.Analysis.MaxTargets <= 0 {
		c.Analysis.MaxTargets = defaultMaxTargets
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.TurnTimeoutSeconds <= 0 {
		c.Workflow.TurnTimeoutSeconds = defaultTurnTimeoutSeconds
	}
	if c.Workflow.ExtractWorkers <= 0 {
		c.Workflow.ExtractWorkers = defaultExtractWorkers
	}
	if c.Workflow.HistoryTurns < 0 {
		c.Workflow.HistoryTurns = defaultHistoryTurns
	}
	if c.Workflow.MinRequestSeconds < 0 {
		c.Workflow.MinRequestSeconds = 0
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
