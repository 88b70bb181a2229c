package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestPostgresErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
		unique    bool
	}{
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true, false},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true, false},
		{"wrapped serialization failure", fmt.Errorf("commit transaction: %w", &pgconn.PgError{Code: "40001"}), true, false},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false, true},
		{"wrapped unique violation", fmt.Errorf("insert vehicle: %w", &pgconn.PgError{Code: "23505"}), false, true},
		{"foreign key violation", &pgconn.PgError{Code: "23503"}, false, false},
		{"undefined table", &pgconn.PgError{Code: "42P01"}, false, false},
		{"plain error", errors.New("connection refused"), false, false},
		{"nil", nil, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryable(tt.err); got != tt.retryable {
				t.Errorf("isRetryable = %v, want %v", got, tt.retryable)
			}
			if got := isUniqueViolation(tt.err); got != tt.unique {
				t.Errorf("isUniqueViolation = %v, want %v", got, tt.unique)
			}
		})
	}
}
