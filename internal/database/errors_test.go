package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	t.Run("Success_PostgresUniqueViolation", func(t *testing.T) {
		err := fmt.Errorf("insert: %w", &pq.Error{Code: "23505"})
		assert.True(t, IsUniqueViolation(err))
	})

	t.Run("Success_MySQLDuplicateEntry", func(t *testing.T) {
		assert.True(t, IsUniqueViolation(&mysql.MySQLError{Number: 1062}))
	})

	t.Run("Success_OtherPostgresError", func(t *testing.T) {
		assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}))
	})

	t.Run("Success_PlainError", func(t *testing.T) {
		assert.False(t, IsUniqueViolation(errors.New("boom")))
		assert.False(t, IsUniqueViolation(nil))
	})
}
