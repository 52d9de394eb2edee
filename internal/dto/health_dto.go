package dto

type HealthResponse struct {
	Status   string         `json:"status"` // "healthy" | "degraded"
	Services HealthServices `json:"services"`
}

type HealthServices struct {
	Postgres ServiceStatus `json:"postgres"`
	Neo4j    ServiceStatus `json:"neo4j"`
	Qdrant   ServiceStatus `json:"qdrant"`
	InfluxDB ServiceStatus `json:"influxdb"`
	Redis    ServiceStatus `json:"redis"`
	Ollama   ServiceStatus `json:"ollama"`
}

type ServiceStatus struct {
	Status string  `json:"status"` // "up" | "down"
	Error  *string `json:"error,omitempty"`
}
