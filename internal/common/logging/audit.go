package logging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AuditLogger provides audit trail logging functionality for state-changing
// operator actions (settings changes, manual run triggers).
type AuditLogger struct {
	logger *Logger
	db     *gorm.DB
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *Logger, db *gorm.DB) *AuditLogger {
	return &AuditLogger{
		logger: logger,
		db:     db,
	}
}

// AuditEvent represents an audit event
type AuditEvent struct {
	Action     string                 `json:"action"`
	Resource   string                 `json:"resource"`
	ResourceID string                 `json:"resource_id"`
	IPAddress  string                 `json:"ip_address"`
	UserAgent  string                 `json:"user_agent"`
	Changes    map[string]interface{} `json:"changes,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

// LogUpdate logs update of a resource (e.g. scheduling settings)
func (al *AuditLogger) LogUpdate(ctx context.Context, resource, resourceID string, oldData, newData interface{}) {
	event := AuditEvent{
		Action:     "update",
		Resource:   resource,
		ResourceID: resourceID,
		Timestamp:  time.Now(),
	}

	changes := make(map[string]interface{})
	if oldData != nil && newData != nil {
		oldBytes, _ := json.Marshal(oldData)
		newBytes, _ := json.Marshal(newData)

		var oldMap, newMap map[string]interface{}
		json.Unmarshal(oldBytes, &oldMap)
		json.Unmarshal(newBytes, &newMap)

		for key, newValue := range newMap {
			if oldValue, exists := oldMap[key]; !exists || oldValue != newValue {
				changes[key] = map[string]interface{}{
					"old": oldValue,
					"new": newValue,
				}
			}
		}
	}

	event.Changes = changes
	al.logEvent(ctx, &event)
}

// LogAccess logs access to a resource
func (al *AuditLogger) LogAccess(ctx context.Context, resource, resourceID string) {
	event := AuditEvent{
		Action:     "access",
		Resource:   resource,
		ResourceID: resourceID,
		Timestamp:  time.Now(),
	}

	al.logEvent(ctx, &event)
}

// LogRunTriggered logs a manually-triggered pipeline run (POST /run-now).
func (al *AuditLogger) LogRunTriggered(ctx context.Context, ipAddress string) {
	event := AuditEvent{
		Action:    "run_triggered",
		Resource:  "scheduler",
		IPAddress: ipAddress,
		Timestamp: time.Now(),
	}

	al.logger.Info("Manual run triggered", "ip_address", ipAddress)
	al.logEvent(ctx, &event)
}

// logEvent persists audit event to the structured logger and, best-effort,
// to the database.
func (al *AuditLogger) logEvent(_ context.Context, event *AuditEvent) {
	fields := map[string]interface{}{
		"action":      event.Action,
		"resource":    event.Resource,
		"resource_id": event.ResourceID,
		"ip_address":  event.IPAddress,
		"timestamp":   event.Timestamp,
	}

	if event.Changes != nil {
		fields["changes"] = event.Changes
	}
	if event.Metadata != nil {
		fields["metadata"] = event.Metadata
	}

	al.logger.WithFields(fields).Info("Audit event recorded")

	go func() {
		if al.db != nil {
			changesJSON, _ := json.Marshal(event.Changes)
			metadataJSON, _ := json.Marshal(event.Metadata)

			auditLog := map[string]interface{}{
				"action":      event.Action,
				"resource":    event.Resource,
				"resource_id": event.ResourceID,
				"ip_address":  event.IPAddress,
				"user_agent":  event.UserAgent,
				"details": map[string]interface{}{
					"changes":  string(changesJSON),
					"metadata": string(metadataJSON),
				},
			}

			al.db.Table("audit_logs").Create(auditLog)
		}
	}()
}

// AuditMiddleware creates audit logs for state-changing operator requests.
func AuditMiddleware(auditLogger *AuditLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == "GET" || c.Request.Method == "OPTIONS" {
			c.Next()
			return
		}

		resource := extractResource(c.Request.URL.Path)
		resourceID := c.Param("id")

		c.Next()

		if c.Writer.Status() >= 200 && c.Writer.Status() < 300 {
			action := getActionFromMethod(c.Request.Method)

			auditLogger.logger.LogAudit(
				action,
				resource,
				resourceID,
				"admin",
				map[string]interface{}{
					"ip_address": c.ClientIP(),
					"user_agent": c.Request.UserAgent(),
				},
			)
		}
	}
}

// Helper functions

func extractResource(path string) string {
	parts := splitPath(path)
	for i, part := range parts {
		if part == "api" || part == "v1" || part == "admin" {
			if i+1 < len(parts) {
				return parts[i+1]
			}
		}
	}
	return "unknown"
}

func splitPath(path string) []string {
	result := []string{}
	current := ""
	for _, char := range path {
		if char == '/' {
			if current != "" {
				result = append(result, current)
				current = ""
			}
		} else {
			current += string(char)
		}
	}
	if current != "" {
		result = append(result, current)
	}
	return result
}

func getActionFromMethod(method string) string {
	switch method {
	case "POST":
		return "create"
	case "PUT", "PATCH":
		return "update"
	case "DELETE":
		return "delete"
	default:
		return "unknown"
	}
}
