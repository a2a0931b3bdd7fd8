package postgres

import (
	"fmt"
	"strings"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// where accumulates positional conditions for list queries.
type where struct {
	conds []string
	args  []any
}

// add appends a condition whose %d verbs all refer to arg's position.
func (w *where) add(format string, arg any) {
	w.args = append(w.args, arg)
	n := len(w.args)
	verbs := strings.Count(format, "%d")
	idx := make([]any, verbs)
	for i := range idx {
		idx[i] = n
	}
	w.conds = append(w.conds, fmt.Sprintf(format, idx...))
}

func (w *where) raw(cond string) {
	w.conds = append(w.conds, cond)
}

func (w *where) clause() string {
	if len(w.conds) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(w.conds, " AND ")
}

// page appends LIMIT/OFFSET placeholders and returns the SQL suffix.
func (w *where) page(page, pageSize int) string {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	if page < 1 {
		page = 1
	}
	w.args = append(w.args, pageSize, (page-1)*pageSize)
	return fmt.Sprintf("LIMIT $%d OFFSET $%d", len(w.args)-1, len(w.args))
}
