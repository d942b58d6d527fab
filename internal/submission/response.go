package submission

import "errors"

// Response is the normalised envelope every call can be reduced to
type Response[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Normalize folds a call result into the envelope. Transient failures get
// a generic message since their detail is meant for logs.
func Normalize[T any](data T, err error) Response[T] {
	if err == nil {
		return Response[T]{Success: true, Data: data}
	}

	var rej *RejectedError
	if errors.As(err, &rej) {
		return Response[T]{Error: rej.Message}
	}
	return Response[T]{Error: "Erreur de connexion au serveur"}
}

// IsRejected reports whether err is a backend rejection
func IsRejected(err error) bool {
	var rej *RejectedError
	return errors.As(err, &rej)
}
