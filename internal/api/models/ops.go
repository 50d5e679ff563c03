package models

// Health represents the health status of the service.
type Health struct {
	Status  HealthStatus           `json:"status"`
	Time    Timestamp              `json:"time"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SystemStatus represents the overall system status.
type SystemStatus struct {
	Status       HealthStatus           `json:"status"`
	Time         Timestamp              `json:"time"`
	Subsystems   []SubsystemStatus      `json:"subsystems"`
	Backends     []BackendStatus        `json:"backends"`
	ActiveFlags  []string               `json:"activeFlags,omitempty"`
	LiveSessions int                    `json:"liveSessions"`
	Refresh      map[string]interface{} `json:"refresh,omitempty"`
}

// SubsystemStatus represents the status of a subsystem.
type SubsystemStatus struct {
	Name   string       `json:"name"`
	Status HealthStatus `json:"status"`
	Detail *string      `json:"detail,omitempty"`
}

// BackendStatus represents the status of an upstream MetaMapa backend.
type BackendStatus struct {
	Backend             string       `json:"backend"`
	Status              HealthStatus `json:"status"`
	CircuitState        string       `json:"circuitState"`
	ConsecutiveFailures uint32       `json:"consecutiveFailures"`
	LastSuccessAt       *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt       *Timestamp   `json:"lastFailureAt,omitempty"`
	Message             *string      `json:"message,omitempty"`
}
