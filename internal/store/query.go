package store

import (
	"strconv"
	"strings"
)

// Where accumulates AND-ed predicates with positional ($n) arguments.
// Predicates are written with "?" for each argument.
type Where struct {
	clauses []string
	args    []any
}

// And appends a predicate. Each "?" in expr is bound to the next arg.
func (w *Where) And(expr string, args ...any) *Where {
	var b strings.Builder
	i := 0
	for _, r := range expr {
		if r == '?' && i < len(args) {
			w.args = append(w.args, args[i])
			b.WriteString("$" + strconv.Itoa(len(w.args)))
			i++
			continue
		}
		b.WriteRune(r)
	}
	w.clauses = append(w.clauses, b.String())
	return w
}

// Bind adds a standalone argument (e.g. LIMIT) and returns its placeholder.
func (w *Where) Bind(arg any) string {
	w.args = append(w.args, arg)
	return "$" + strconv.Itoa(len(w.args))
}

// SQL renders " WHERE a AND b", or "" when no predicate was added.
func (w *Where) SQL() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// Args returns the bound arguments in placeholder order.
func (w *Where) Args() []any { return w.args }

// Len is the number of predicates.
func (w *Where) Len() int { return len(w.clauses) }

// Contains wraps s for a LIKE/ILIKE substring match, escaping wildcards.
func Contains(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

// Page converts a 1-indexed page and size into LIMIT/OFFSET values.
func Page(page, size, defSize, maxSize int) (limit, offset int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = defSize
	}
	if maxSize > 0 && size > maxSize {
		size = maxSize
	}
	return size, (page - 1) * size
}
