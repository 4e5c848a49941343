package config

import (
	"errors"
	"fmt"
)

var supportedAlgorithms = map[string]struct{}{
	"rf": {},
	"dt": {},
	"lr": {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDataset(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateAnalysis(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateDataset() error {
	// An empty root is allowed; the assistant reports the missing dataset
	// conversationally instead of refusing to start.
	if c.Dataset.OKLabel == c.Dataset.KOLabel {
		return fmt.Errorf("dataset.ok_label and dataset.ko_label must differ (both %q)", c.Dataset.OKLabel)
	}
	return nil
}

func (c *Config) validateLLM() error {
	if c.LLM.BaseURL == "" {
		return errors.New("llm.base_url must be set")
	}
	if c.LLM.Model == "" {
		return errors.New("llm.model must be set")
	}
	if c.LLM.TimeoutSeconds <= 0 {
		return errors.New("llm.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateAnalysis() error {
	if _, ok := supportedAlgorithms[c.Analysis.Algorithm]; !ok {
		return fmt.Errorf("analysis.algorithm must be one of rf, dt, lr (got %q)", c.Analysis.Algorithm)
	}
	if err := ensurePositiveMap(map[string]int{
		"analysis.trees":       c.Analysis.Trees,
		"analysis.top_n":       c.Analysis.TopN,
		"analysis.max_targets": c.Analysis.MaxTargets,
	}); err != nil {
		return err
	}
	if c.Analysis.CVFolds < 2 {
		return errors.New("analysis.cv_folds must be at least 2")
	}
	if c.Analysis.MinSamples < 2 {
		return errors.New("analysis.min_samples must be at least 2")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	return ensurePositiveMap(map[string]int{
		"workflow.turn_timeout_seconds": c.Workflow.TurnTimeoutSeconds,
		"workflow.extract_workers":      c.Workflow.ExtractWorkers,
	})
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
