package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Catalog is an immutable snapshot of one indexed dataset root: every
// label directory, every well-formed session under it, and the sensor
// streams those sessions expose. Rebuild it with Index to pick up
// filesystem changes; existing snapshots are never mutated.
type Catalog struct {
	root        string
	labels      []string
	sessions    map[string][]*Session
	vocabulary  Vocabulary
	fingerprint string
}

// Session is one bounded recording: a folder tagged with a condition
// label and fault detail, holding one data file per sensor stream. ID is
// the folder name; AcquisitionID is the metadata-declared identifier,
// which may differ.
type Session struct {
	ID            string
	AcquisitionID string
	Label         string
	Condition     string
	FaultDetail   string
	Path          string
	Streams       []*SensorStream
}

// SensorStream describes one sensor's recording within a session,
// derived from metadata.json and the SensorName_SensorType file naming
// convention.
type SensorStream struct {
	Key            string
	SensorName     string
	SensorType     string
	Units          string
	Columns        []string
	SamplingRateHz float64
	FilePath       string
}

// Warning records a session or stream excluded during indexing. Indexing
// never fails wholesale on one bad session; callers decide whether the
// collected warnings are worth surfacing.
type Warning struct {
	SessionPath string
	Sensor      string
	Reason      string
}

func (w Warning) String() string {
	if w.Sensor != "" {
		return fmt.Sprintf("%s: sensor %s: %s", w.SessionPath, w.Sensor, w.Reason)
	}
	return fmt.Sprintf("%s: %s", w.SessionPath, w.Reason)
}

// Vocabulary lists the distinct identifiers discovered during indexing.
// The router uses it to ground prompt construction and to validate
// extracted parameters.
type Vocabulary struct {
	SensorNames  []string
	SensorTypes  []string
	Conditions   []string
	FaultDetails []string
}

// Root returns the dataset root this snapshot was built from.
func (c *Catalog) Root() string { return c.root }

// Labels returns the label directory names in sorted order.
func (c *Catalog) Labels() []string {
	out := make([]string, len(c.labels))
	copy(out, c.labels)
	return out
}

// Sessions returns the sessions indexed under the given label, in
// session-ID order.
func (c *Catalog) Sessions(label string) []*Session {
	return c.sessions[label]
}

// AllSessions returns every session in label order then session order.
func (c *Catalog) AllSessions() []*Session {
	var out []*Session
	for _, label := range c.labels {
		out = append(out, c.sessions[label]...)
	}
	return out
}

// SessionCount reports the number of indexed sessions across all labels.
func (c *Catalog) SessionCount() int {
	total := 0
	for _, sessions := range c.sessions {
		total += len(sessions)
	}
	return total
}

// SessionByID looks a session up by its folder name. When the same ID
// exists under several labels the first in label order wins.
func (c *Catalog) SessionByID(id string) (*Session, bool) {
	for _, label := range c.labels {
		for _, session := range c.sessions[label] {
			if session.ID == id {
				return session, true
			}
		}
	}
	return nil, false
}

// Vocabulary returns the identifiers discovered during indexing.
func (c *Catalog) Vocabulary() Vocabulary { return c.vocabulary }

// Fingerprint returns a stable digest of the catalog's structural
// content. Identical root contents produce identical fingerprints, which
// keys the feature cache.
func (c *Catalog) Fingerprint() string { return c.fingerprint }

// ResolveSensorName matches raw user input against indexed sensor names,
// ignoring case. Returns the canonical name.
func (c *Catalog) ResolveSensorName(raw string) (string, bool) {
	return resolveFold(c.vocabulary.SensorNames, raw)
}

// ResolveSensorType matches raw user input against indexed sensor types,
// ignoring case.
func (c *Catalog) ResolveSensorType(raw string) (string, bool) {
	return resolveFold(c.vocabulary.SensorTypes, raw)
}

// ResolveCondition matches raw user input against indexed conditions,
// ignoring case.
func (c *Catalog) ResolveCondition(raw string) (string, bool) {
	return resolveFold(c.vocabulary.Conditions, raw)
}

// ResolveFaultDetail matches raw user input against indexed fault
// details, ignoring case.
func (c *Catalog) ResolveFaultDetail(raw string) (string, bool) {
	return resolveFold(c.vocabulary.FaultDetails, raw)
}

// ResolveLabel matches raw user input against label directory names,
// ignoring case.
func (c *Catalog) ResolveLabel(raw string) (string, bool) {
	return resolveFold(c.labels, raw)
}

func resolveFold(candidates []string, raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	for _, candidate := range candidates {
		if strings.EqualFold(candidate, raw) {
			return candidate, true
		}
	}
	return "", false
}

// Stream returns the stream with the exact key (SensorName_SensorType).
func (s *Session) Stream(key string) (*SensorStream, bool) {
	for _, stream := range s.Streams {
		if stream.Key == key {
			return stream, true
		}
	}
	return nil, false
}

// StreamByNameType returns the stream matching the sensor name and,
// when non-empty, the sensor type. Matching ignores case.
func (s *Session) StreamByNameType(name, sensorType string) (*SensorStream, bool) {
	for _, stream := range s.Streams {
		if !strings.EqualFold(stream.SensorName, name) {
			continue
		}
		if sensorType == "" || strings.EqualFold(stream.SensorType, sensorType) {
			return stream, true
		}
	}
	return nil, false
}

// StreamsNamed returns every stream of the given sensor name, covering
// sensors that expose several types (e.g. an IMU with ACC and GYRO).
func (s *Session) StreamsNamed(name string) []*SensorStream {
	var out []*SensorStream
	for _, stream := range s.Streams {
		if strings.EqualFold(stream.SensorName, name) {
			out = append(out, stream)
		}
	}
	return out
}

func buildVocabulary(sessions map[string][]*Session) Vocabulary {
	names := map[string]struct{}{}
	types := map[string]struct{}{}
	conditions := map[string]struct{}{}
	faults := map[string]struct{}{}
	for _, list := range sessions {
		for _, session := range list {
			if session.Condition != "" {
				conditions[session.Condition] = struct{}{}
			}
			if session.FaultDetail != "" {
				faults[session.FaultDetail] = struct{}{}
			}
			for _, stream := range session.Streams {
				names[stream.SensorName] = struct{}{}
				types[stream.SensorType] = struct{}{}
			}
		}
	}
	return Vocabulary{
		SensorNames:  sortedKeys(names),
		SensorTypes:  sortedKeys(types),
		Conditions:   sortedKeys(conditions),
		FaultDetails: sortedKeys(faults),
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for key := range set {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

func computeFingerprint(labels []string, sessions map[string][]*Session) string {
	h := sha256.New()
	for _, label := range labels {
		fmt.Fprintf(h, "label\x00%s\n", label)
		for _, session := range sessions[label] {
			fmt.Fprintf(h, "session\x00%s\x00%s\x00%s\n", session.ID, session.Condition, session.FaultDetail)
			for _, stream := range session.Streams {
				fmt.Fprintf(h, "stream\x00%s\x00%s\x00%s\n",
					stream.Key, stream.Units, strconv.FormatFloat(stream.SamplingRateHz, 'g', -1, 64))
			}
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
