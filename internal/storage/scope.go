// Package storage holds the pgx repositories for both schemas and the single
// place where a principal's data scope becomes SQL.
package storage

import (
	"fmt"

	"github.com/homelend/platform/pkg/auth"
)

// ScopeFilter translates a DataScope into SQL fragments for a query over the
// applications table aliased as alias. Every list/get path on applications
// and their joins composes scope through this function, so there is exactly
// one place to audit.
//
// The returned join is appended after the FROM clause, the where fragment is
// ANDed into the WHERE clause, and args extends the caller's argument list.
// Placeholders start at startArg.
func ScopeFilter(scope auth.DataScope, alias string, startArg int) (join, where string, args []any) {
	switch {
	case scope.FullPipeline:
		return "", "TRUE", nil
	case scope.OwnDataOnly:
		join = fmt.Sprintf(
			"JOIN application_borrowers sc_ab ON sc_ab.application_id = %s.id "+
				"JOIN borrowers sc_b ON sc_b.id = sc_ab.borrower_id", alias)
		where = fmt.Sprintf("sc_b.subject_id = $%d", startArg)
		return join, where, []any{scope.UserID}
	case scope.AssignedTo != "":
		where = fmt.Sprintf("%s.assigned_to = $%d", alias, startArg)
		return "", where, []any{scope.AssignedTo}
	default:
		// No scope (prospect): matches no rows.
		return "", "FALSE", nil
	}
}
