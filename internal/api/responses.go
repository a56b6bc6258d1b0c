package api

type ErrorResponse struct {
	Error string `json:"error" example:"something went wrong"`
}

type MessageResponse struct {
	Message string `json:"message" example:"ok"`
}

type HealthResponse struct {
	Status string `json:"status" example:"ok"`
}

// ListResponse is the envelope for paginated list endpoints.
type ListResponse struct {
	Items interface{} `json:"items"`
	Total int64       `json:"total"`
}
