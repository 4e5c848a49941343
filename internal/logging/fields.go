package logging

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldTurnID is the standardized structured logging key for turn identifiers.
	FieldTurnID = "turn_id"
	// FieldConversationID is the standardized structured logging key for conversation identifiers.
	FieldConversationID = "conversation_id"
	// FieldOperation is the standardized structured logging key for routed operation names.
	FieldOperation = "operation"
	// FieldState is the standardized structured logging key for turn states.
	FieldState = "state"
	// FieldSession is the standardized structured logging key for recording session IDs.
	FieldSession = "session"
	// FieldSensor is the standardized structured logging key for sensor names.
	FieldSensor = "sensor"
	// FieldAlgorithm is the standardized structured logging key for classifier algorithms.
	FieldAlgorithm = "algorithm"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
)
