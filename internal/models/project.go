package models

import (
	"strings"
	"time"
)

// Project groups issues under a short unique key.
type Project struct {
	ID          string
	Key         string // unique, stored upper-cased
	Name        string
	Description string
	LeadID      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NormalizeProjectKey upper-cases and trims a project key.
func NormalizeProjectKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}
