package models

import (
	"github.com/google/uuid"
)

// ensureID gives a record a UUID primary key unless one was set by the caller.
func ensureID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}
