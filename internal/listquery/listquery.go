package listquery

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Op is a filter operator accepted in list queries.
type Op string

const (
	OpEq       Op = "eq"
	OpNe       Op = "ne"
	OpGt       Op = "gt"
	OpLt       Op = "lt"
	OpGe       Op = "ge"
	OpLe       Op = "le"
	OpLike     Op = "like"
	OpContains Op = "contains"
	OpIn       Op = "in"
)

var (
	ErrUnknownField    = errors.New("unknown filter field")
	ErrUnknownOperator = errors.New("operator not allowed for field")
	ErrBadOrderDir     = errors.New("order_dir must be asc or desc")
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// Field describes one filterable/sortable field of an entity.
type Field struct {
	Column string
	Ops    []Op
}

// Spec is the per-entity allow-list: exposed field name -> column and
// permitted operators. Anything outside the allow-list is rejected, not
// ignored.
type Spec map[string]Field

type Filter struct {
	Column string
	Op     Op
	Value  string
}

type Query struct {
	Filters  []Filter
	OrderBy  string // column, already validated
	OrderDir string
	Page     int
	PageSize int
}

// Parse reads filters from query parameters. A filter key is either a plain
// field name (implies eq) or "field:op", e.g. created_at:ge=2026-01-01.
// Reserved keys: order_by, order_dir, page, page_size.
func Parse(values url.Values, spec Spec) (*Query, error) {
	q := &Query{
		OrderDir: "desc",
		Page:     1,
		PageSize: DefaultPageSize,
	}

	for key, vals := range values {
		if len(vals) == 0 {
			continue
		}
		value := vals[0]

		switch key {
		case "order_by":
			field, ok := spec[value]
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrUnknownField, value)
			}
			q.OrderBy = field.Column
			continue
		case "order_dir":
			dir := strings.ToLower(value)
			if dir != "asc" && dir != "desc" {
				return nil, ErrBadOrderDir
			}
			q.OrderDir = dir
			continue
		case "page":
			if n, err := strconv.Atoi(value); err == nil && n > 0 {
				q.Page = n
			}
			continue
		case "page_size":
			if n, err := strconv.Atoi(value); err == nil && n > 0 {
				if n > MaxPageSize {
					n = MaxPageSize
				}
				q.PageSize = n
			}
			continue
		}

		fieldName := key
		op := OpEq
		if idx := strings.IndexByte(key, ':'); idx >= 0 {
			fieldName = key[:idx]
			op = Op(key[idx+1:])
		}

		field, ok := spec[fieldName]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownField, fieldName)
		}
		if !opAllowed(field.Ops, op) {
			return nil, fmt.Errorf("%w: %q on %q", ErrUnknownOperator, op, fieldName)
		}

		q.Filters = append(q.Filters, Filter{
			Column: field.Column,
			Op:     op,
			Value:  value,
		})
	}

	return q, nil
}

func opAllowed(allowed []Op, op Op) bool {
	for _, a := range allowed {
		if a == op {
			return true
		}
	}
	return false
}

// SQL appends WHERE/ORDER BY/LIMIT clauses to base and returns positional
// args. base must be a complete SELECT without a WHERE clause.
func (q *Query) SQL(base string) (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString(base)

	args := q.writeWhere(&sb)

	if q.OrderBy != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(q.OrderBy)
		if q.OrderDir == "asc" {
			sb.WriteString(" ASC")
		} else {
			sb.WriteString(" DESC")
		}
	}

	sb.WriteString(fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2))
	args = append(args, q.PageSize, (q.Page-1)*q.PageSize)

	return sb.String(), args
}

// CountSQL builds the matching COUNT query with the same filters.
func (q *Query) CountSQL(baseCount string) (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString(baseCount)
	args := q.writeWhere(&sb)
	return sb.String(), args
}

func (q *Query) writeWhere(sb *strings.Builder) []interface{} {
	args := []interface{}{}
	if len(q.Filters) == 0 {
		return args
	}

	sb.WriteString(" WHERE 1=1")
	for _, f := range q.Filters {
		switch f.Op {
		case OpIn:
			parts := strings.Split(f.Value, ",")
			placeholders := make([]string, 0, len(parts))
			for _, p := range parts {
				args = append(args, strings.TrimSpace(p))
				placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
			}
			sb.WriteString(fmt.Sprintf(" AND %s IN (%s)", f.Column, strings.Join(placeholders, ", ")))
		case OpLike:
			args = append(args, f.Value)
			sb.WriteString(fmt.Sprintf(" AND %s LIKE $%d", f.Column, len(args)))
		case OpContains:
			args = append(args, "%"+f.Value+"%")
			sb.WriteString(fmt.Sprintf(" AND %s ILIKE $%d", f.Column, len(args)))
		default:
			args = append(args, f.Value)
			sb.WriteString(fmt.Sprintf(" AND %s %s $%d", f.Column, sqlOp(f.Op), len(args)))
		}
	}
	return args
}

func sqlOp(op Op) string {
	switch op {
	case OpNe:
		return "!="
	case OpGt:
		return ">"
	case OpLt:
		return "<"
	case OpGe:
		return ">="
	case OpLe:
		return "<="
	default:
		return "="
	}
}
