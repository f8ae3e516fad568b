// Package envelope defines the response wrapper shared by every API
// endpoint. Expected failures (missing entity, ineligible state) travel as
// Success=false with a human-readable message instead of an error value, so
// handlers can map them onto 404/400 without unwinding the stack.
package envelope

// Response is the uniform payload wrapper: {data, success, message}.
type Response[T any] struct {
	Data    T      `json:"data"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// OK wraps data in a successful response.
func OK[T any](data T) Response[T] {
	return Response[T]{Data: data, Success: true}
}

// OKMsg wraps data in a successful response with an informational message.
func OKMsg[T any](data T, msg string) Response[T] {
	return Response[T]{Data: data, Success: true, Message: msg}
}

// Fail builds a failed response carrying the zero value for T.
func Fail[T any](msg string) Response[T] {
	return Response[T]{Success: false, Message: msg}
}
