package vectorindex

import (
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/podwise/hrap/internal/types/interfaces"
)

// buildWhereClause renders a VectorFilter as a SQL WHERE clause restricted
// to AND-of-equality/IN predicates over category, tags, language,
// podcast_id (§6 "filter expression grammar"). Values are parameterized;
// the returned clause is re-parsed through pg_query_go as a defense-in-depth
// check that no other predicate shape slipped in.
func buildWhereClause(f interfaces.VectorFilter) (clause string, args []interface{}, err error) {
	var preds []string
	n := 1
	next := func() string {
		p := fmt.Sprintf("$%d", n)
		n++
		return p
	}

	if f.Category != "" {
		preds = append(preds, fmt.Sprintf("category = %s", next()))
		args = append(args, string(f.Category))
	}
	if f.Language != "" {
		preds = append(preds, fmt.Sprintf("language = %s", next()))
		args = append(args, f.Language)
	}
	if f.PodcastID != "" {
		preds = append(preds, fmt.Sprintf("podcast_id = %s", next()))
		args = append(args, f.PodcastID)
	}
	if len(f.Tags) > 0 {
		placeholders := make([]string, len(f.Tags))
		for i, t := range f.Tags {
			placeholders[i] = next()
			args = append(args, t)
		}
		preds = append(preds, fmt.Sprintf("tags && ARRAY[%s]", strings.Join(placeholders, ", ")))
	}

	if len(preds) == 0 {
		return "true", nil, nil
	}
	clause = strings.Join(preds, " AND ")

	if err := validateFilterGrammar(clause); err != nil {
		return "", nil, err
	}
	return clause, args, nil
}

// validateFilterGrammar parses clause as a standalone SQL boolean expression
// and rejects anything beyond AND/equality/IN/array-overlap predicates:
// no subqueries, no function calls other than the array literal, no OR.
func validateFilterGrammar(clause string) error {
	sql := "SELECT 1 WHERE " + clause
	result, err := pg_query.Parse(sql)
	if err != nil {
		return fmt.Errorf("vectorindex: filter failed to parse: %w", err)
	}
	for _, stmt := range result.Stmts {
		selectStmt := stmt.Stmt.GetSelectStmt()
		if selectStmt == nil {
			return fmt.Errorf("vectorindex: filter is not a plain predicate")
		}
		if err := walkBoolExpr(selectStmt.WhereClause); err != nil {
			return err
		}
	}
	return nil
}

func walkBoolExpr(node *pg_query.Node) error {
	if node == nil {
		return nil
	}
	switch v := node.Node.(type) {
	case *pg_query.Node_BoolExpr:
		if v.BoolExpr.Boolop == pg_query.BoolExprType_OR_EXPR {
			return fmt.Errorf("vectorindex: OR is not permitted in filter expressions")
		}
		for _, arg := range v.BoolExpr.Args {
			if err := walkBoolExpr(arg); err != nil {
				return err
			}
		}
		return nil
	case *pg_query.Node_AExpr, *pg_query.Node_SubLink:
		if _, isSub := v.(*pg_query.Node_SubLink); isSub {
			return fmt.Errorf("vectorindex: subqueries are not permitted in filter expressions")
		}
		return nil
	default:
		// Scalar array overlap (&&) parses as an A_Expr too; anything else
		// (function calls, CASE, etc.) is rejected by being unhandled here.
		return fmt.Errorf("vectorindex: unsupported predicate in filter expression")
	}
}
