package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration: неверная конфигурация вызова (неизвестная модель, TLS и т.п.).
	ErrConfiguration = errors.New("ошибка конфигурации")
	// ErrAuthentication: нет учётных данных или сервис их отверг.
	ErrAuthentication = errors.New("ошибка аутентификации")
	// ErrTransient: таймаут или обрыв соединения.
	ErrTransient = errors.New("временная сетевая ошибка")
	// ErrHTTPStatus: сервис ответил статусом вне 2xx.
	ErrHTTPStatus = errors.New("неуспешный HTTP статус")
	// ErrMalformedResponse: ответ модели не разбирается или имеет неверную форму.
	ErrMalformedResponse = errors.New("некорректный ответ модели")
	// ErrPromptTooLarge: отрендеренный промпт превышает допустимый размер.
	ErrPromptTooLarge = errors.New("промпт превышает допустимый размер")
	// ErrInvalidWindow: начало окна позже конца.
	ErrInvalidWindow = errors.New("некорректное окно дат")
	// ErrChannelNotFound: канал отсутствует в справочнике.
	ErrChannelNotFound = errors.New("канал не найден")
)

// TransientError оборачивает таймаут или ошибку соединения, которую имеет смысл повторить.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() []error { return []error{ErrTransient, e.Err} }

// StatusError описывает ответ сервиса с кодом вне 2xx.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%d: %s", e.Code, e.Body)
}

// Is относит 401/403 к ошибкам аутентификации, остальные коды к ErrHTTPStatus.
func (e *StatusError) Is(target error) bool {
	if target == ErrHTTPStatus {
		return true
	}
	return target == ErrAuthentication && (e.Code == 401 || e.Code == 403)
}

// MalformedResponseError хранит сырой ответ модели, который не удалось разобрать.
type MalformedResponseError struct {
	Raw string
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%v: %v", ErrMalformedResponse, e.Err)
}

func (e *MalformedResponseError) Unwrap() []error { return []error{ErrMalformedResponse, e.Err} }
