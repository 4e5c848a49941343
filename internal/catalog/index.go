package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"faultscope/internal/services"
)

// Index walks a dataset root laid out as root/{label}/{session} and
// returns an immutable catalog snapshot plus warnings for everything it
// had to skip. Sessions missing usable metadata are excluded with exactly
// one warning each; streams whose metadata or data file is unusable are
// skipped individually while the session survives. Only an unreadable
// root is an error.
func Index(root string) (*Catalog, []Warning, error) {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, services.Wrap(services.ErrNotFound, "catalog", "index",
				fmt.Sprintf("dataset root %s does not exist", root), nil)
		}
		return nil, nil, services.Wrap(services.ErrValidation, "catalog", "index",
			fmt.Sprintf("stat dataset root %s", root), err)
	}
	if !info.IsDir() {
		return nil, nil, services.Wrap(services.ErrValidation, "catalog", "index",
			fmt.Sprintf("dataset root %s is not a directory", root), nil)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, nil, services.Wrap(services.ErrValidation, "catalog", "index",
			fmt.Sprintf("read dataset root %s", root), err)
	}

	var warnings []Warning
	labels := make([]string, 0, len(entries))
	sessions := make(map[string][]*Session)
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		label := entry.Name()
		labelSessions, labelWarnings := indexLabel(root, label)
		labels = append(labels, label)
		sessions[label] = labelSessions
		warnings = append(warnings, labelWarnings...)
	}
	sort.Strings(labels)

	return &Catalog{
		root:        root,
		labels:      labels,
		sessions:    sessions,
		vocabulary:  buildVocabulary(sessions),
		fingerprint: computeFingerprint(labels, sessions),
	}, warnings, nil
}

func indexLabel(root, label string) ([]*Session, []Warning) {
	labelPath := filepath.Join(root, label)
	entries, err := os.ReadDir(labelPath)
	if err != nil {
		return nil, []Warning{{SessionPath: labelPath, Reason: fmt.Sprintf("unreadable label directory: %v", err)}}
	}

	var sessions []*Session
	var warnings []Warning
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		sessionPath := filepath.Join(labelPath, entry.Name())
		session, sessionWarnings := indexSession(sessionPath, label, entry.Name())
		warnings = append(warnings, sessionWarnings...)
		if session != nil {
			sessions = append(sessions, session)
		}
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].ID < sessions[j].ID })
	return sessions, warnings
}

func indexSession(sessionPath, label, dirName string) (*Session, []Warning) {
	doc, reason := readMetadata(sessionPath)
	if doc == nil {
		return nil, []Warning{{SessionPath: sessionPath, Reason: reason}}
	}

	keys := make([]string, 0, len(doc.Sensors))
	for key := range doc.Sensors {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var warnings []Warning
	streams := make([]*SensorStream, 0, len(keys))
	for _, key := range keys {
		stream, streamReason := buildStream(sessionPath, key, doc.Sensors[key])
		if stream == nil {
			warnings = append(warnings, Warning{SessionPath: sessionPath, Sensor: key, Reason: streamReason})
			continue
		}
		streams = append(streams, stream)
	}

	return &Session{
		ID:            dirName,
		AcquisitionID: doc.SessionInfo.AcquisitionID,
		Label:         label,
		Condition:     doc.SessionInfo.Condition,
		FaultDetail:   doc.SessionInfo.FaultDetail,
		Path:          sessionPath,
		Streams:       streams,
	}, warnings
}
