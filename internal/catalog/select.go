package catalog

import "strings"

// SessionFilter narrows session selection. Empty fields match anything.
type SessionFilter struct {
	SessionID   string
	Label       string
	Condition   string
	FaultDetail string
}

// SelectSession picks one session for the given filter. An explicit
// SessionID takes priority and matches either the folder name or the
// metadata acquisition ID. Otherwise the filter is applied in catalog
// order (labels sorted, sessions sorted by ID) and the first match wins,
// so repeated calls over the same snapshot return the same session.
func (c *Catalog) SelectSession(filter SessionFilter) (*Session, bool) {
	if filter.SessionID != "" {
		for _, session := range c.AllSessions() {
			if strings.EqualFold(session.ID, filter.SessionID) ||
				strings.EqualFold(session.AcquisitionID, filter.SessionID) {
				return session, true
			}
		}
		return nil, false
	}

	for _, session := range c.AllSessions() {
		if filter.Label != "" && !strings.EqualFold(session.Label, filter.Label) {
			continue
		}
		if filter.Condition != "" && !strings.EqualFold(session.Condition, filter.Condition) {
			continue
		}
		if filter.FaultDetail != "" && !strings.EqualFold(session.FaultDetail, filter.FaultDetail) {
			continue
		}
		return session, true
	}
	return nil, false
}
