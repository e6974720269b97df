package postgres

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/samber/mo"
)

// PgtextToString converts pgtype.Text to string, NULL becomes ""
func PgtextToString(t pgtype.Text) string {
	if !t.Valid {
		return ""
	}
	return t.String
}

// PgtextToOption converts pgtype.Text to mo.Option[string]
// NULL and blank values become None
func PgtextToOption(t pgtype.Text) mo.Option[string] {
	if !t.Valid || t.String == "" {
		return mo.None[string]()
	}
	return mo.Some(t.String)
}

// PgtimestamptzOr converts pgtype.Timestamptz to time.Time, NULL becomes fallback
func PgtimestamptzOr(t pgtype.Timestamptz, fallback time.Time) time.Time {
	if !t.Valid {
		return fallback
	}
	return t.Time
}
