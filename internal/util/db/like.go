package db

import (
	"strings"

	sq "github.com/Masterminds/squirrel"
)

var likeEscaper = strings.NewReplacer("\\", "\\\\", "%", "\\%", "_", "\\_")

// EscapeLike escapes LIKE wildcards in val.
func EscapeLike(val string) string {
	return likeEscaper.Replace(val)
}

// ILike matches val (used as-is, wildcards included) against the given column.
func ILike(val string, column string) sq.Sqlizer {
	return sq.Expr(column+" ILIKE ?", val)
}

// ILikeSearch splits search into whitespace separated terms and requires every term to be
// contained in at least one of columns. An empty search yields nil.
func ILikeSearch(search string, columns ...string) sq.Sqlizer {
	terms := strings.Fields(search)
	if len(terms) == 0 || len(columns) == 0 {
		return nil
	}

	and := sq.And{}
	for _, term := range terms {
		pattern := "%" + EscapeLike(term) + "%"

		or := sq.Or{}
		for _, column := range columns {
			or = append(or, ILike(pattern, column))
		}
		and = append(and, or)
	}

	return and
}
