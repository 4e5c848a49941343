package analysis

import (
	"fmt"
	"sort"
	"strings"

	"faultscope/internal/features"
	"faultscope/internal/services"
)

// Table is the rectangular feature matrix one analysis runs on: one row
// per session, one block of canonical feature columns per sensor. Tables
// are built once per request and never mutated afterwards.
type Table struct {
	Sensors    []string
	Features   []string
	SessionIDs []string
	Labels     []string
	Classes    []int
	matrices   map[string][][]float64
}

// QualifiedColumn names one (sensor, feature) column the way rankings
// and reports refer to it, e.g. "IIS3DWB_ACC_rms".
func QualifiedColumn(sensor, feature string) string {
	return sensor + "_" + feature
}

// BuildTable assembles extracted vectors into a rectangular table.
// Sessions whose label is neither okLabel nor koLabel are ignored. Every
// kept session must cover the same sensor set and every vector the full
// canonical feature set; ragged input is a hard error rather than a
// silent fill.
func BuildTable(vectors []*features.Vector, okLabel, koLabel string) (*Table, error) {
	type sessionEntry struct {
		label   string
		class   int
		sensors map[string]*features.Vector
	}

	sessions := map[string]*sessionEntry{}
	sensorSet := map[string]struct{}{}
	for _, vector := range vectors {
		var class int
		switch {
		case strings.EqualFold(vector.Label, okLabel):
			class = 0
		case strings.EqualFold(vector.Label, koLabel):
			class = 1
		default:
			continue
		}

		sensor := vector.SensorName + "_" + vector.SensorType
		sensorSet[sensor] = struct{}{}

		entry, ok := sessions[vector.SessionID]
		if !ok {
			entry = &sessionEntry{label: vector.Label, class: class, sensors: map[string]*features.Vector{}}
			sessions[vector.SessionID] = entry
		}
		if _, dup := entry.sensors[sensor]; dup {
			return nil, services.Wrap(services.ErrValidation, "analysis", "build-table",
				fmt.Sprintf("duplicate vector for sensor %s in session %s", sensor, vector.SessionID), nil)
		}
		entry.sensors[sensor] = vector
	}
	if len(sessions) == 0 {
		return nil, services.Wrap(services.ErrValidation, "analysis", "build-table",
			fmt.Sprintf("no sessions labelled %s or %s", okLabel, koLabel), nil)
	}

	sensors := make([]string, 0, len(sensorSet))
	for sensor := range sensorSet {
		sensors = append(sensors, sensor)
	}
	sort.Strings(sensors)

	sessionIDs := make([]string, 0, len(sessions))
	for id := range sessions {
		sessionIDs = append(sessionIDs, id)
	}
	sort.Strings(sessionIDs)

	names := features.Names()
	table := &Table{
		Sensors:    sensors,
		Features:   names,
		SessionIDs: sessionIDs,
		Labels:     make([]string, len(sessionIDs)),
		Classes:    make([]int, len(sessionIDs)),
		matrices:   make(map[string][][]float64, len(sensors)),
	}
	for _, sensor := range sensors {
		table.matrices[sensor] = make([][]float64, len(sessionIDs))
	}

	for i, id := range sessionIDs {
		entry := sessions[id]
		table.Labels[i] = entry.label
		table.Classes[i] = entry.class
		for _, sensor := range sensors {
			vector, ok := entry.sensors[sensor]
			if !ok {
				return nil, services.Wrap(services.ErrValidation, "analysis", "build-table",
					fmt.Sprintf("session %s lacks sensor %s present in other sessions", id, sensor), nil)
			}
			row := make([]float64, len(names))
			for j, name := range names {
				value, ok := vector.Value(name)
				if !ok {
					return nil, services.Wrap(services.ErrValidation, "analysis", "build-table",
						fmt.Sprintf("vector for %s in session %s lacks feature %s", sensor, id, name), nil)
				}
				row[j] = value
			}
			table.matrices[sensor][i] = row
		}
	}
	return table, nil
}

// Value returns one cell by row index, sensor, and feature name. Unknown
// names read as zero; rankings only ever ask for columns the table
// declared.
func (t *Table) Value(row int, sensor, feature string) float64 {
	for j, name := range t.Features {
		if name == feature {
			return t.matrices[sensor][row][j]
		}
	}
	return 0
}

// SensorMatrix returns the rows-by-features block for one sensor, in
// session order.
func (t *Table) SensorMatrix(sensor string) [][]float64 {
	return t.matrices[sensor]
}

// ClassCounts reports how many sessions carry each class.
func (t *Table) ClassCounts() (ok, ko int) {
	for _, class := range t.Classes {
		if class == 0 {
			ok++
		} else {
			ko++
		}
	}
	return ok, ko
}

// NumRows reports the number of sessions in the table.
func (t *Table) NumRows() int { return len(t.SessionIDs) }
