package reply

import "tg-digester/internal/domain"

// Outcome хранит результат разбора ответа модели: значение либо сырой текст с причиной отказа.
type Outcome[T any] struct {
	value T
	raw   string
	cause error
}

// Ok оборачивает успешно разобранное значение.
func Ok[T any](v T) Outcome[T] {
	return Outcome[T]{value: v}
}

// Malformed фиксирует ответ, который не удалось привести к ожидаемой форме.
func Malformed[T any](raw string, cause error) Outcome[T] {
	return Outcome[T]{raw: raw, cause: cause}
}

// IsOk сообщает, что ответ разобран.
func (o Outcome[T]) IsOk() bool { return o.cause == nil }

// Value возвращает значение и признак успеха.
func (o Outcome[T]) Value() (T, bool) { return o.value, o.cause == nil }

// Raw возвращает исходный текст отвергнутого ответа.
func (o Outcome[T]) Raw() string { return o.raw }

// Err возвращает *domain.MalformedResponseError для отвергнутого ответа и nil для успешного.
func (o Outcome[T]) Err() error {
	if o.cause == nil {
		return nil
	}
	return &domain.MalformedResponseError{Raw: o.raw, Err: o.cause}
}

// Unpack превращает Outcome в пару значение/ошибка.
func (o Outcome[T]) Unpack() (T, error) {
	return o.value, o.Err()
}
