package fields

import "errors"

// Ошибки реестра полей и компиляции.
var (
	// ErrUnknownField — шаг ссылается на поле, которого нет в реестре.
	ErrUnknownField = errors.New("unknown field")

	// ErrDuplicateField — поле объявлено в реестре дважды.
	ErrDuplicateField = errors.New("duplicate field")

	// ErrDuplicateRef — шаг ссылается на одно поле дважды.
	ErrDuplicateRef = errors.New("duplicate field reference")

	// ErrEmptyFieldName — пустое имя поля.
	ErrEmptyFieldName = errors.New("empty field name")

	// ErrResolve — кастомный резолвер вернул ошибку.
	ErrResolve = errors.New("field resolve failed")
)
