// Package apperr define a taxonomia de erros exposta pelas operações do jogo.
//
// Os tipos reaproveitam os códigos gRPC: InvalidArgument para entrada malformada,
// FailedPrecondition para estado de jogo incompatível, NotFound para referências
// ausentes e Internal para falhas de infraestrutura.
package apperr

import (
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Error carrega o tipo estável e a mensagem legível do erro
type Error struct {
	Kind    codes.Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is compara apenas pelo tipo, para uso com errors.Is(err, apperr.ErrNotFound)
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && e.Kind == t.Kind
}

// GRPCStatus permite que status.FromError reconheça o erro
func (e *Error) GRPCStatus() *status.Status {
	return status.New(e.Kind, e.Message)
}

// Alvos para errors.Is
var (
	ErrInvalidArgument    = &Error{Kind: codes.InvalidArgument}
	ErrFailedPrecondition = &Error{Kind: codes.FailedPrecondition}
	ErrNotFound           = &Error{Kind: codes.NotFound}
	ErrInternal           = &Error{Kind: codes.Internal}
)

func InvalidArgument(msg string) *Error    { return &Error{Kind: codes.InvalidArgument, Message: msg} }
func FailedPrecondition(msg string) *Error { return &Error{Kind: codes.FailedPrecondition, Message: msg} }
func NotFound(msg string) *Error           { return &Error{Kind: codes.NotFound, Message: msg} }

// Internal embrulha falhas de store (indisponível, escrita parcial)
func Internal(msg string, cause error) *Error {
	return &Error{Kind: codes.Internal, Message: msg, Cause: cause}
}

// KindOf devolve o tipo do erro; erros desconhecidos são Internal
func KindOf(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return codes.Internal
}

// HTTPStatus traduz o tipo para o status HTTP da API REST
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case codes.OK:
		return http.StatusOK
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.FailedPrecondition:
		return http.StatusConflict
	case codes.NotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// KindName é o nome estável usado no corpo das respostas de erro
func KindName(err error) string {
	switch KindOf(err) {
	case codes.InvalidArgument:
		return "INVALID_ARGUMENT"
	case codes.FailedPrecondition:
		return "FAILED_PRECONDITION"
	case codes.NotFound:
		return "NOT_FOUND"
	case codes.OK:
		return "OK"
	default:
		return "INTERNAL"
	}
}
