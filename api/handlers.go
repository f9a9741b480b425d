package api

import "time"

// routeHandlers contains all the handlers for different route types
type routeHandlers struct {
	projectHandler   projectHandler
	uploadHandler    uploadHandler
	accessLogHandler accessLogHandler
	authHandler      authHandler
	healthHandler    healthHandler
}

// initializeHandlers creates and returns all handlers organized in a routeHandlers struct
func initializeHandlers(deps Dependencies, maxUploadBytes int64, startupTime time.Time) *routeHandlers {
	return &routeHandlers{
		projectHandler:   newProjectHandler(deps.Projects),
		uploadHandler:    newUploadHandler(deps.Blobs, maxUploadBytes),
		accessLogHandler: newAccessLogHandler(deps.AccessLogs),
		authHandler:      newAuthHandler(deps.Auth),
		healthHandler:    newHealthHandler(deps.DB, startupTime),
	}
}
