package store

import (
	"slices"
	"sort"
)

// Op - оператор фильтра, строки совпадают с операторами Firestore
type Op string

const (
	Equal          Op = "=="
	NotEqual       Op = "!="
	Less           Op = "<"
	LessOrEqual    Op = "<="
	Greater        Op = ">"
	GreaterOrEqual Op = ">="
	ArrayContains  Op = "array-contains"
)

type Direction int

const (
	Asc Direction = iota
	Desc
)

type Filter struct {
	Field string
	Op    Op
	Value any
}

type Order struct {
	Field string
	Dir   Direction
}

// Query - запрос к одной коллекции: where + orderBy + limit
type Query struct {
	Collection string
	Filters    []Filter
	Orders     []Order
	Max        int
}

func (q Query) Where(field string, op Op, value any) Query {
	q.Filters = append(slices.Clone(q.Filters), Filter{Field: field, Op: op, Value: Normalize(value)})
	return q
}

func (q Query) OrderBy(field string, dir Direction) Query {
	q.Orders = append(slices.Clone(q.Orders), Order{Field: field, Dir: dir})
	return q
}

func (q Query) Limit(n int) Query {
	q.Max = n
	return q
}

// Matches проверяет фильтры запроса на данных документа.
// Документы без поля сортировки не попадают в выборку (как в Firestore).
func (q Query) Matches(data map[string]any) bool {
	for _, f := range q.Filters {
		if !f.matches(data) {
			return false
		}
	}
	for _, o := range q.Orders {
		if _, ok := Lookup(data, o.Field); !ok {
			return false
		}
	}
	return true
}

func (f Filter) matches(data map[string]any) bool {
	v, ok := Lookup(data, f.Field)
	if !ok {
		return false
	}
	switch f.Op {
	case Equal:
		return ValuesEqual(v, f.Value)
	case NotEqual:
		return v != nil && !ValuesEqual(v, f.Value)
	case ArrayContains:
		arr, ok := v.([]any)
		if !ok {
			return false
		}
		for _, e := range arr {
			if ValuesEqual(e, f.Value) {
				return true
			}
		}
		return false
	}
	c, ok := Compare(v, f.Value)
	if !ok {
		return false
	}
	switch f.Op {
	case Less:
		return c < 0
	case LessOrEqual:
		return c <= 0
	case Greater:
		return c > 0
	case GreaterOrEqual:
		return c >= 0
	}
	return false
}

// Apply фильтрует, сортирует и обрезает документы по запросу.
// При равенстве ключей порядок определяется ID документа.
func (q Query) Apply(docs []Document) []Document {
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		if d.Collection == q.Collection && q.Matches(d.Data) {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return q.less(out[i], out[j])
	})
	if q.Max > 0 && len(out) > q.Max {
		out = out[:q.Max]
	}
	return out
}

func (q Query) less(a, b Document) bool {
	for _, o := range q.Orders {
		av, _ := Lookup(a.Data, o.Field)
		bv, _ := Lookup(b.Data, o.Field)
		c, ok := Compare(av, bv)
		if !ok || c == 0 {
			continue
		}
		if o.Dir == Desc {
			return c > 0
		}
		return c < 0
	}
	return a.ID < b.ID
}
