package pagination

import (
	"gorm.io/gorm"
)

// Apply attaches cursor predicates, ordering, and the lookahead limit to a
// query. Callers compare len(results) against params.Limit to decide whether
// a next cursor exists; Apply fetches one extra row for that check.
func Apply(query *gorm.DB, params Params) (*gorm.DB, error) {
	cursor, err := ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	if cursor != nil {
		query = query.Where(
			"(created_at, id) < (?, ?)",
			cursor.CreatedAt, cursor.ID,
		)
	}
	return query.
		Order("created_at DESC, id DESC").
		Limit(LimitWithBuffer(params.Limit)), nil
}
