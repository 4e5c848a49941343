package router

import (
	"bytes"
	"encoding/json"
)

// routerPayload mirrors the JSON contract the routing prompt asks the
// model to produce.
type routerPayload struct {
	Category   string            `json:"category"`
	IsVague    bool              `json:"is_vague"`
	Reasoning  string            `json:"reasoning"`
	Parameters *routerParameters `json:"parameters"`
}

type routerParameters struct {
	Analysis *analysisConfig `json:"analysis_config"`
	Visual   *visualConfig   `json:"visual_config"`
}

type analysisConfig struct {
	Global    *bool        `json:"global"`
	Targets   []sensorPair `json:"target_sensors"`
	Algorithm string       `json:"algorithm"`
}

type visualConfig struct {
	Targets     []sensorPair `json:"target_sensors"`
	Subset      string       `json:"subset"`
	Condition   string       `json:"condition"`
	FaultDetail string       `json:"label_detail"`
	SessionID   string       `json:"acquisition_id"`
	// Earlier prompt revisions misspelled the key; some models echo it.
	AltSessionID string `json:"acqusition_id"`
}

func (p *routerPayload) analysisConfig() *analysisConfig {
	if p.Parameters == nil {
		return nil
	}
	return p.Parameters.Analysis
}

func (p *routerPayload) visualConfig() *visualConfig {
	if p.Parameters == nil {
		return nil
	}
	return p.Parameters.Visual
}

func (v *visualConfig) sessionID() string {
	if v.SessionID != "" {
		return v.SessionID
	}
	return v.AltSessionID
}

// sensorPair decodes the model's ["NAME", "TYPE"] pairs while tolerating
// the other shapes small models emit: ["NAME", null], a bare "NAME"
// string, or {"name": ..., "type": ...} objects.
type sensorPair struct {
	Name string
	Type string
}

func (p *sensorPair) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}

	switch data[0] {
	case '"':
		return json.Unmarshal(data, &p.Name)
	case '{':
		var obj struct {
			Name string `json:"name"`
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		p.Name = obj.Name
		p.Type = obj.Type
		return nil
	default:
		var parts []*string
		if err := json.Unmarshal(data, &parts); err != nil {
			return err
		}
		if len(parts) > 0 && parts[0] != nil {
			p.Name = *parts[0]
		}
		if len(parts) > 1 && parts[1] != nil {
			p.Type = *parts[1]
		}
		return nil
	}
}
