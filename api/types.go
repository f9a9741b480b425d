package api

// ErrorResponse represents an error response from the API
// @Description Error response structure
type ErrorResponse struct {
	Error   string `json:"error" example:"Internal Server Error"`
	Status  string `json:"status" example:"error"`
	Field   string `json:"field,omitempty" example:"title"`
	Details string `json:"details,omitempty" example:"Missing required field: title"`
}

// MessageResponse confirms an action that has no resource to return
type MessageResponse struct {
	Message string `json:"message" example:"project deleted"`
}

// UploadResponse carries the public URL of an uploaded image
type UploadResponse struct {
	URL string `json:"url" example:"https://apol-static.s3.ap-northeast-2.amazonaws.com/uploads/1b9d_cover.png"`
}

type LoginRequest struct {
	Password string `json:"password"`
}

// SessionResponse describes the caller's admin session
type SessionResponse struct {
	Token            string `json:"token,omitempty"`
	ExpiresAt        string `json:"expiresAt"`
	RemainingSeconds int64  `json:"remainingSeconds"`
}

// HealthResponse is returned by the health check
type HealthResponse struct {
	Status   string `json:"status" example:"ok"`
	Database string `json:"database" example:"ok"`
	Uptime   string `json:"uptime" example:"1h2m3s"`
}
