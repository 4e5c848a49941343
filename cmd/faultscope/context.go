package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"faultscope/internal/catalog"
	"faultscope/internal/config"
	"faultscope/internal/logging"
	"faultscope/internal/narrator"
	"faultscope/internal/router"
	"faultscope/internal/services/llm"
	"faultscope/internal/store"
	"faultscope/internal/turn"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// session bundles the collaborators one CLI invocation needs: the
// catalog snapshot, the SQLite store, and an orchestrator wired to the
// configured language model endpoints.
type session struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	catalog  *catalog.Catalog
	warnings []catalog.Warning
	orch     *turn.Orchestrator
}

// openSession builds a session for one command. A nil logger logs to
// the configured log file only, keeping stdout clean for command
// output. When requireDataset is set, a missing or empty dataset is an
// error instead of a degraded session.
func (c *commandContext) openSession(requireDataset bool, logger *slog.Logger) (*session, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger, err = fileLogger(cfg)
		if err != nil {
			return nil, err
		}
	}

	st, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	var (
		cat      *catalog.Catalog
		warnings []catalog.Warning
	)
	if root := strings.TrimSpace(cfg.Dataset.Root); root != "" {
		if _, statErr := os.Stat(root); statErr == nil {
			cat, warnings, err = catalog.Index(root)
			if err != nil {
				st.Close()
				return nil, fmt.Errorf("index dataset: %w", err)
			}
		} else if requireDataset {
			st.Close()
			return nil, fmt.Errorf("dataset root %s: %w", root, statErr)
		}
	}
	if requireDataset && (cat == nil || cat.SessionCount() == 0) {
		st.Close()
		return nil, fmt.Errorf("no sessions indexed under [dataset].root; run `faultscope index` to inspect the tree")
	}

	rtr := router.New(llm.NewClient(clientConfig(cfg.RouterLLM())), logger)
	narr := narrator.New(llm.NewClient(clientConfig(cfg.NarratorLLM())), logger)
	orch := turn.New(cfg, st, rtr, narr, cat, logger)

	return &session{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		catalog:  cat,
		warnings: warnings,
		orch:     orch,
	}, nil
}

func (s *session) Close() {
	if s.store != nil {
		s.store.Close()
	}
}

func clientConfig(cfg config.LLMConfig) llm.Config {
	return llm.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Referer: cfg.Referer,
		Title:   cfg.Title,
		Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
	}
}

// fileLogger logs to the configured log file only; interactive commands
// keep stdout for their own output.
func fileLogger(cfg *config.Config) (*slog.Logger, error) {
	if cfg.Paths.LogDir == "" {
		return logging.NewNop(), nil
	}
	return logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{filepath.Join(cfg.Paths.LogDir, "faultscope.log")},
	})
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
