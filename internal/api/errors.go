package api

import "encoding/json"

type Kind string

// Закрытый набор видов ошибок, чтобы вызывающий код ветвился по полю,
// а не по подстроке сообщения.
const (
	KindNetwork Kind = "network"
	KindServer  Kind = "server"
	KindShape   Kind = "shape"
	KindGuard   Kind = "guard"
)

const msgNetworkError = "network error"

type Error struct {
	Kind       Kind
	Message    string
	HTTPStatus int

	cause error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// IsKind сообщает, является ли err ошибкой клиента заданного вида.
func IsKind(err error, kind Kind) bool {
	apiErr, ok := err.(*Error)
	return ok && apiErr.Kind == kind
}

func networkError(cause error) *Error {
	return &Error{Kind: KindNetwork, Message: msgNetworkError, cause: cause}
}

func guardError(message string) *Error {
	return &Error{Kind: KindGuard, Message: message}
}

func shapeError(message string) *Error {
	return &Error{Kind: KindShape, Message: message}
}

// serverError достаёт человекочитаемое сообщение из тела ответа:
// JSON-поле message, затем msg, иначе сырой текст тела.
func serverError(status int, body []byte) *Error {
	return &Error{
		Kind:       KindServer,
		Message:    extractMessage(body),
		HTTPStatus: status,
	}
}

func extractMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Msg     string `json:"msg"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Msg != "" {
			return payload.Msg
		}
	}
	if len(body) > 0 {
		return string(body)
	}
	return "server error"
}
