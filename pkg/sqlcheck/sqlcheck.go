// Package sqlcheck parses generated SQL with the PostgreSQL parser to catch
// fragments that would not be accepted by the server.
package sqlcheck

import (
	"errors"
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v5"
)

var (
	ErrSyntax       = errors.New("invalid sql")
	ErrNotSelect    = errors.New("statement is not a plain SELECT")
	ErrMultipleStmt = errors.New("expected exactly one statement")
)

// Where checks that fragment is a valid WHERE condition. An empty fragment is
// valid.
func Where(fragment string) error {
	if strings.TrimSpace(fragment) == "" {
		return nil
	}
	sel, err := selectStmt("SELECT 1 WHERE " + fragment)
	if err != nil {
		return err
	}
	if sel.GetWhereClause() == nil {
		return fmt.Errorf("%w: no condition", ErrSyntax)
	}
	return nil
}

// Select checks that sql is a single SELECT without set operations.
func Select(sql string) error {
	_, err := selectStmt(sql)
	return err
}

func selectStmt(sql string) (*pg_query.SelectStmt, error) {
	tree, err := pg_query.Parse(sql)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	if len(tree.Stmts) != 1 {
		return nil, fmt.Errorf("%w: got %d", ErrMultipleStmt, len(tree.Stmts))
	}

	sel := tree.Stmts[0].Stmt.GetSelectStmt()
	if sel == nil || sel.Op != pg_query.SetOperation_SETOP_NONE {
		return nil, ErrNotSelect
	}
	return sel, nil
}
