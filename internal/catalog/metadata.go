package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const metadataFileName = "metadata.json"

// dataExtensions lists accepted stream file formats in preference order.
var dataExtensions = []string{".parquet", ".csv"}

type metadataDocument struct {
	SessionInfo *sessionInfo           `json:"session_info"`
	Sensors     map[string]sensorEntry `json:"sensors"`
}

type sessionInfo struct {
	Condition     string `json:"condition"`
	FaultDetail   string `json:"fault_detail"`
	AcquisitionID string `json:"acquisition_id"`
}

type sensorEntry struct {
	FileName       string   `json:"file_name"`
	SensorName     string   `json:"sensor_name"`
	SensorType     string   `json:"sensor_type"`
	Units          string   `json:"units"`
	Columns        []string `json:"columns"`
	SamplingRateHz *float64 `json:"sampling_rate_hz"`
}

// readMetadata parses and validates a session's metadata.json. A nil
// document with a non-empty reason means the session must be excluded.
func readMetadata(sessionPath string) (*metadataDocument, string) {
	path := filepath.Join(sessionPath, metadataFileName)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "missing metadata.json"
		}
		return nil, fmt.Sprintf("unreadable metadata.json: %v", err)
	}

	var doc metadataDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Sprintf("malformed metadata.json: %v", err)
	}
	if doc.SessionInfo == nil {
		return nil, "metadata.json missing session_info"
	}
	if doc.Sensors == nil {
		return nil, "metadata.json missing sensors"
	}
	return &doc, ""
}

// buildStream validates one sensor entry against the session directory.
// A nil stream with a non-empty reason means the stream is skipped while
// the rest of the session stays usable.
func buildStream(sessionPath, key string, entry sensorEntry) (*SensorStream, string) {
	name, sensorType := entry.SensorName, entry.SensorType
	if name == "" || sensorType == "" {
		parsedName, parsedType, ok := splitStreamKey(key)
		if !ok {
			return nil, "sensor key does not follow the Name_Type convention"
		}
		if name == "" {
			name = parsedName
		}
		if sensorType == "" {
			sensorType = parsedType
		}
	}

	if entry.SamplingRateHz == nil || *entry.SamplingRateHz <= 0 {
		return nil, "missing or non-positive sampling_rate_hz"
	}

	filePath, ok := locateStreamFile(sessionPath, key, entry.FileName)
	if !ok {
		return nil, "data file not found"
	}

	return &SensorStream{
		Key:            key,
		SensorName:     name,
		SensorType:     sensorType,
		Units:          entry.Units,
		Columns:        append([]string(nil), entry.Columns...),
		SamplingRateHz: *entry.SamplingRateHz,
		FilePath:       filePath,
	}, ""
}

// splitStreamKey parses SensorName_SensorType file stems. The sensor
// type is everything after the first underscore, so IIS3DWB_ACC yields
// (IIS3DWB, ACC).
func splitStreamKey(key string) (name, sensorType string, ok bool) {
	name, sensorType, found := strings.Cut(key, "_")
	if !found || name == "" || sensorType == "" {
		return "", "", false
	}
	return name, sensorType, true
}

func locateStreamFile(sessionPath, key, fileName string) (string, bool) {
	if fileName != "" {
		path := filepath.Join(sessionPath, fileName)
		if fileExists(path) {
			return path, true
		}
		return "", false
	}
	for _, ext := range dataExtensions {
		path := filepath.Join(sessionPath, key+ext)
		if fileExists(path) {
			return path, true
		}
	}
	return "", false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
