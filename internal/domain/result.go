package domain

import "encoding/json"

// Result is the uniform operation envelope returned over the API: either
// {"success": true, "value": ...} or {"success": false, "error": code}.
type Result[T any] struct {
	Success bool `json:"success"`
	Value   T    `json:"value"`
	Error   Code `json:"error"`
}

// OK wraps a successful value.
func OK[T any](v T) Result[T] {
	return Result[T]{Success: true, Value: v}
}

// Fail builds a failed result carrying code.
func Fail[T any](code Code) Result[T] {
	return Result[T]{Error: code}
}

// ResultOf builds a Result from a value/error pair using the rich taxonomy.
func ResultOf[T any](v T, err error) Result[T] {
	if err != nil {
		return Fail[T](CodeOf(err))
	}
	return OK(v)
}

// MarshalJSON emits value only on success and error only on failure, so a
// zero value such as market ID 0 is still present.
func (r Result[T]) MarshalJSON() ([]byte, error) {
	if r.Success {
		return json.Marshal(struct {
			Success bool `json:"success"`
			Value   T    `json:"value"`
		}{true, r.Value})
	}
	return json.Marshal(struct {
		Success bool `json:"success"`
		Error   Code `json:"error"`
	}{false, r.Error})
}
