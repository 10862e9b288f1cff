package httputil

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// UserIDHeader carries the authenticated caller id set by the upstream gateway.
const UserIDHeader = "X-User-Id"

// UserID returns the caller id from UserIDHeader, or nil for anonymous requests.
func UserID(c *gin.Context) *string {
	userID := strings.TrimSpace(c.GetHeader(UserIDHeader))
	if userID == "" {
		return nil
	}
	return &userID
}

// ParseUUIDParam parses a path parameter as a UUID.
func ParseUUIDParam(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s parameter: must be a valid UUID", name)
	}
	return id, nil
}

// ParseTimeQuery parses an optional RFC3339 query parameter and converts it to UTC.
func ParseTimeQuery(c *gin.Context, name string) (*time.Time, error) {
	value := c.Query(name)
	if value == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s format: must be RFC3339 (e.g., 2026-02-01T00:00:00Z)", name)
	}
	utc := parsed.UTC()
	return &utc, nil
}

// ParseBoolQuery parses an optional boolean query parameter.
func ParseBoolQuery(c *gin.Context, name string) (*bool, error) {
	value := c.Query(name)
	if value == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s parameter: must be a boolean", name)
	}
	return &parsed, nil
}
