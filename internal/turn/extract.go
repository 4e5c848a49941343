package turn

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"faultscope/internal/catalog"
	"faultscope/internal/features"
	"faultscope/internal/router"
	"faultscope/internal/services"
	"faultscope/internal/timeseries"
)

const lockRetryDelay = 250 * time.Millisecond

// ExtractFeatures returns the feature vectors for the current catalog
// snapshot, served from the store when a cache exists for its
// fingerprint and extracted otherwise. Cache fills are serialized
// across processes through the configured lock file; whoever loses the
// race reads the winner's rows.
func (o *Orchestrator) ExtractFeatures(ctx context.Context) ([]*features.Vector, error) {
	if !o.datasetReady() {
		return nil, services.Wrap(services.ErrNotFound, "turn", "extract", "no dataset indexed", nil)
	}
	fingerprint := o.catalog.Fingerprint()

	if vectors, err := o.store.CachedVectors(ctx, fingerprint); err != nil {
		o.logger.Warn("feature cache read failed, re-extracting", "error", err)
	} else if len(vectors) > 0 {
		o.logger.Debug("feature cache hit", "vectors", len(vectors))
		return vectors, nil
	}

	lock := flock.New(o.cfg.LockPath())
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "turn", "extract", "acquire cache lock", err)
	}
	if !locked {
		return nil, services.Wrap(services.ErrTransient, "turn", "extract", "cache lock unavailable", nil)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			o.logger.Warn("release cache lock", "error", err)
		}
	}()

	// Another process may have filled the cache while we waited.
	if vectors, err := o.store.CachedVectors(ctx, fingerprint); err == nil && len(vectors) > 0 {
		return vectors, nil
	}

	vectors, err := o.extractAll(ctx)
	if err != nil {
		return nil, err
	}
	if err := o.store.StoreVectors(ctx, fingerprint, vectors); err != nil {
		return nil, services.Wrap(services.ErrTransient, "turn", "extract", "persist feature cache", err)
	}
	o.logger.Info("feature cache filled", "vectors", len(vectors), "fingerprint", fingerprint)
	return vectors, nil
}

type extractJob struct {
	session *catalog.Session
	stream  *catalog.SensorStream
}

// extractAll loads and extracts every stream in the catalog with a
// bounded worker pool. Streams that fail to load or are too short are
// skipped with a warning; extraction only fails when nothing at all
// could be extracted or the context ends.
func (o *Orchestrator) extractAll(ctx context.Context) ([]*features.Vector, error) {
	workers := o.cfg.Workflow.ExtractWorkers
	if workers <= 0 {
		workers = 1
	}

	var (
		mu      sync.Mutex
		vectors []*features.Vector
		skipped int
	)

	jobs := make(chan extractJob)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				if ctx.Err() != nil {
					continue
				}
				vector, err := o.extractOne(job)
				if err != nil {
					o.logger.Warn("stream skipped during extraction",
						"session", job.session.ID,
						"sensor", job.stream.Key,
						"error", err)
					mu.Lock()
					skipped++
					mu.Unlock()
					continue
				}
				mu.Lock()
				vectors = append(vectors, vector)
				mu.Unlock()
			}
		}()
	}

feed:
	for _, session := range o.catalog.AllSessions() {
		for _, stream := range session.Streams {
			select {
			case jobs <- extractJob{session: session, stream: stream}:
			case <-ctx.Done():
				break feed
			}
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, services.Wrap(services.ErrInsufficientData, "turn", "extract",
			"no stream produced a feature vector", nil)
	}
	if skipped > 0 {
		o.logger.Warn("extraction finished with skipped streams", "extracted", len(vectors), "skipped", skipped)
	}

	sort.Slice(vectors, func(i, j int) bool {
		if vectors[i].SessionID != vectors[j].SessionID {
			return vectors[i].SessionID < vectors[j].SessionID
		}
		if vectors[i].SensorName != vectors[j].SensorName {
			return vectors[i].SensorName < vectors[j].SensorName
		}
		return vectors[i].SensorType < vectors[j].SensorType
	})
	return vectors, nil
}

func (o *Orchestrator) extractOne(job extractJob) (*features.Vector, error) {
	series, err := timeseries.LoadStream(job.session, job.stream)
	if err != nil {
		return nil, err
	}
	return features.Extract(series, o.cfg.Analysis.MinSamples)
}

// rectangularVectors narrows the vector set to sensors present in every
// session, so the analysis table is rectangular even when some streams
// were skipped during extraction or indexing.
func rectangularVectors(vectors []*features.Vector, logger *slog.Logger) []*features.Vector {
	keysBySession := map[string]map[string]struct{}{}
	for _, vector := range vectors {
		key := vector.SensorName + "_" + vector.SensorType
		set, ok := keysBySession[vector.SessionID]
		if !ok {
			set = map[string]struct{}{}
			keysBySession[vector.SessionID] = set
		}
		set[key] = struct{}{}
	}
	sessionCount := len(keysBySession)
	if sessionCount == 0 {
		return vectors
	}

	keyCounts := map[string]int{}
	for _, set := range keysBySession {
		for key := range set {
			keyCounts[key]++
		}
	}

	shared := map[string]struct{}{}
	dropped := make([]string, 0)
	for key, count := range keyCounts {
		if count == sessionCount {
			shared[key] = struct{}{}
		} else {
			dropped = append(dropped, key)
		}
	}
	if len(dropped) == 0 {
		return vectors
	}
	sort.Strings(dropped)
	if logger != nil {
		logger.Warn("sensors excluded from analysis, not present in every session",
			"sensors", strings.Join(dropped, ","))
	}

	kept := make([]*features.Vector, 0, len(vectors))
	for _, vector := range vectors {
		if _, ok := shared[vector.SensorName+"_"+vector.SensorType]; ok {
			kept = append(kept, vector)
		}
	}
	return kept
}

// filterVectors keeps vectors matching any of the requested sensor
// targets. A target without a type matches every type of that sensor.
func filterVectors(vectors []*features.Vector, targets []router.SensorTarget) []*features.Vector {
	kept := make([]*features.Vector, 0, len(vectors))
	for _, vector := range vectors {
		for _, target := range targets {
			if !strings.EqualFold(vector.SensorName, target.Name) {
				continue
			}
			if target.Type != "" && !strings.EqualFold(vector.SensorType, target.Type) {
				continue
			}
			kept = append(kept, vector)
			break
		}
	}
	return kept
}
