package errors

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/multierr"
)

// maxChainDepth bounds the unwrap walk so a cyclic wrapper cannot spin forever.
const maxChainDepth = 16

// ErrorDump is the log-only view of an error. None of it reaches API clients.
type ErrorDump struct {
	TopMessage string `json:"top_message"`
	Code       Code   `json:"code,omitempty"`

	Chain []string `json:"chain,omitempty"`

	// Causes lists the members of a combined error, e.g. a fan-out step set or an admin batch.
	Causes   []string `json:"causes,omitempty"`
	Canceled bool     `json:"canceled,omitempty"`
	Timeout  bool     `json:"timeout,omitempty"`

	PGCode       string `json:"pg_code,omitempty"`
	PGConstraint string `json:"pg_constraint,omitempty"`
	PGTable      string `json:"pg_table,omitempty"`
	PGDetail     string `json:"pg_detail,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{
		TopMessage: err.Error(),
		Canceled:   errors.Is(err, context.Canceled),
		Timeout:    errors.Is(err, context.DeadlineExceeded),
	}
	if te := As(err); te != nil {
		d.Code = te.Code()
	}

	for e, depth := err, 0; e != nil && depth < maxChainDepth; e, depth = errors.Unwrap(e), depth+1 {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var root error = err
	if te := As(err); te != nil && te.Unwrap() != nil {
		root = te.Unwrap()
	}
	if members := multierr.Errors(root); len(members) > 1 {
		for _, m := range members {
			d.Causes = append(d.Causes, m.Error())
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		d.PGCode = pgErr.Code
		d.PGConstraint = pgErr.ConstraintName
		d.PGTable = pgErr.TableName
		d.PGDetail = pgErr.Detail
	}

	return d
}
