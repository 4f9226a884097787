package engine

import (
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// SplitPostgres parses sql with the PostgreSQL parser and returns its
// statements in order. A parse error means the change would fail on the
// server, so it is reported before anything runs.
func SplitPostgres(sql string) ([]string, error) {
	tree, err := pg_query.Parse(sql)
	if err != nil {
		return nil, fmt.Errorf("invalid PostgreSQL in sql change: %w", err)
	}

	var stmts []string
	for _, raw := range tree.Stmts {
		start := int(raw.StmtLocation)
		end := len(sql)
		if raw.StmtLen > 0 {
			end = start + int(raw.StmtLen)
		}
		if start < 0 || start > end || end > len(sql) {
			return nil, fmt.Errorf("invalid statement bounds %d..%d in sql change", start, end)
		}
		if stmt := strings.TrimSpace(sql[start:end]); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	if len(stmts) == 0 {
		return nil, fmt.Errorf("sql change has no statements")
	}
	return stmts, nil
}
