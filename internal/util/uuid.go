package util

import (
	"log"

	"github.com/google/uuid"
)

func GenerateUUID() string {
	newUUID, err := uuid.NewRandom()
	if err != nil {
		log.Fatalf("Failed to generate UUID: %v", err)
	}
	return newUUID.String()
}

// IsUUID reports whether s parses as a UUID. Path ids are checked with it
// before reaching Postgres so malformed ids read as not found.
func IsUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
