package tasks

import "errors"

// Ошибки обработчиков шагов.
var (
	// ErrUnknownTaskType — обработчик для типа шага не зарегистрирован.
	ErrUnknownTaskType = errors.New("unknown task type")

	// ErrMissingInput — во входных данных шага нет обязательного поля.
	ErrMissingInput = errors.New("missing step input")

	// ErrEmptyResult — модель вернула пустой результат.
	ErrEmptyResult = errors.New("empty model result")

	// ErrBadModelOutput — ответ текстовой модели не удалось разобрать.
	ErrBadModelOutput = errors.New("unparseable model output")
)
