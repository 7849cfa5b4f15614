package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Report is a flattened view of an error chain for logs and debug bodies.
type Report struct {
	Message  string    `json:"message"`
	Code     Code      `json:"code,omitempty"`
	Chain    []string  `json:"chain,omitempty"`
	Postgres *PGReport `json:"postgres,omitempty"`
}

// PGReport holds the server-side fields of a postgres error, from either
// the pgx or the lib/pq driver.
type PGReport struct {
	SQLState   string `json:"sqlstate"`
	Message    string `json:"message,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Table      string `json:"table,omitempty"`
	Column     string `json:"column,omitempty"`
	Constraint string `json:"constraint,omitempty"`
}

func Inspect(err error) Report {
	if err == nil {
		return Report{}
	}
	r := Report{Message: err.Error(), Postgres: postgresReport(err)}
	if typed := As(err); typed != nil {
		r.Code = typed.code
	}
	for link := err; link != nil; link = stdErrors.Unwrap(link) {
		r.Chain = append(r.Chain, fmt.Sprintf("%T", link))
	}
	return r
}

func postgresReport(err error) *PGReport {
	var pgErr *pgconn.PgError
	if stdErrors.As(err, &pgErr) {
		return &PGReport{
			SQLState:   pgErr.Code,
			Message:    pgErr.Message,
			Detail:     pgErr.Detail,
			Table:      pgErr.TableName,
			Column:     pgErr.ColumnName,
			Constraint: pgErr.ConstraintName,
		}
	}
	var pqErr *pq.Error
	if stdErrors.As(err, &pqErr) {
		return &PGReport{
			SQLState:   string(pqErr.Code),
			Message:    pqErr.Message,
			Detail:     pqErr.Detail,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Constraint: pqErr.Constraint,
		}
	}
	return nil
}

// Fields returns the non-empty parts of r as structured log fields.
func (r Report) Fields() map[string]any {
	fields := map[string]any{"error": r.Message}
	if r.Code != "" {
		fields["error_code"] = r.Code
	}
	if len(r.Chain) > 1 {
		fields["error_chain"] = r.Chain
	}
	if pg := r.Postgres; pg != nil {
		fields["pg_sqlstate"] = pg.SQLState
		for k, v := range map[string]string{
			"pg_message":    pg.Message,
			"pg_detail":     pg.Detail,
			"pg_table":      pg.Table,
			"pg_column":     pg.Column,
			"pg_constraint": pg.Constraint,
		} {
			if v != "" {
				fields[k] = v
			}
		}
	}
	return fields
}
