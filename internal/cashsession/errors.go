package cashsession

import "errors"

var (
	ErrSessionAlreadyOpen   = errors.New("bu şubede zaten açık bir kasa var")
	ErrSessionNotOpen       = errors.New("kasa oturumu açık değil")
	ErrInvalidOpening       = errors.New("geçersiz kasa açılışı")
	ErrInvalidClosing       = errors.New("geçersiz kasa kapanışı")
	ErrAggregateUnavailable = errors.New("satış/gider özeti alınamadı, kasa açık bırakıldı")

	// Both are ErrSessionNotOpen; callers that care can tell them apart.
	ErrSessionNotFound      error = &notOpenError{msg: "kasa oturumu bulunamadı"}
	ErrSessionAlreadyClosed error = &notOpenError{msg: "kasa oturumu zaten kapatılmış"}
)

type notOpenError struct{ msg string }

func (e *notOpenError) Error() string { return e.msg }

func (e *notOpenError) Is(target error) bool { return target == ErrSessionNotOpen }
