package store

import "time"

// Трансформы записи, которые бэкенд вычисляет на своей стороне

type serverTimestamp struct{}

// ServerTimestamp заменяется временем сервера в момент записи
var ServerTimestamp = serverTimestamp{}

// IsServerTimestamp сообщает, является ли v маркером ServerTimestamp
func IsServerTimestamp(v any) bool {
	_, ok := v.(serverTimestamp)
	return ok
}

type IncrementOp struct {
	By int64
}

// Increment атомарно прибавляет n к числовому полю (отсутствующее поле = 0)
func Increment(n int64) IncrementOp {
	return IncrementOp{By: n}
}

type ArrayUnionOp struct {
	Values []any
}

// ArrayUnion добавляет в массив значения, которых там еще нет
func ArrayUnion(values ...any) ArrayUnionOp {
	return ArrayUnionOp{Values: normalizeAll(values)}
}

type ArrayRemoveOp struct {
	Values []any
}

// ArrayRemove удаляет из массива все вхождения значений
func ArrayRemove(values ...any) ArrayRemoveOp {
	return ArrayRemoveOp{Values: normalizeAll(values)}
}

func normalizeAll(values []any) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = Normalize(v)
	}
	return out
}

// ApplySet вычисляет данные документа для Create/Set
func ApplySet(data map[string]any, now time.Time) map[string]any {
	return ApplyUpdate(nil, data, now)
}

// ApplyUpdate накладывает обновления (с трансформами) на существующие данные.
// Ключи трактуются буквально, вложенные map заменяются целиком.
func ApplyUpdate(existing, updates map[string]any, now time.Time) map[string]any {
	out := CloneMap(existing)
	if out == nil {
		out = make(map[string]any, len(updates))
	}
	for k, v := range updates {
		out[k] = resolve(out[k], v, now)
	}
	return out
}

func resolve(current, v any, now time.Time) any {
	switch x := v.(type) {
	case serverTimestamp:
		return now.UTC()
	case IncrementOp:
		switch c := current.(type) {
		case int64:
			return c + x.By
		case float64:
			return c + float64(x.By)
		default:
			return x.By
		}
	case ArrayUnionOp:
		arr, _ := CloneValue(current).([]any)
		for _, add := range x.Values {
			found := false
			for _, e := range arr {
				if ValuesEqual(e, add) {
					found = true
					break
				}
			}
			if !found {
				arr = append(arr, add)
			}
		}
		if arr == nil {
			arr = []any{}
		}
		return arr
	case ArrayRemoveOp:
		arr, _ := current.([]any)
		out := make([]any, 0, len(arr))
		for _, e := range arr {
			keep := true
			for _, rm := range x.Values {
				if ValuesEqual(e, rm) {
					keep = false
					break
				}
			}
			if keep {
				out = append(out, CloneValue(e))
			}
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = resolve(nil, e, now)
		}
		return out
	default:
		return CloneValue(Normalize(v))
	}
}
