package models

import (
	"fmt"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// RecordIDString extracts the string part of a SurrealDB record id.
// The store always assigns string ids, so a non-string id is a bug.
func RecordIDString(id surrealmodels.RecordID) (string, error) {
	s, ok := id.ID.(string)
	if !ok {
		return "", fmt.Errorf("unexpected record id type: %T", id.ID)
	}
	return s, nil
}

// MustRecordIDString extracts the string id, panicking on a non-string id.
// Only for values that came back from the store.
func MustRecordIDString(id surrealmodels.RecordID) string {
	s, err := RecordIDString(id)
	if err != nil {
		panic(err)
	}
	return s
}
