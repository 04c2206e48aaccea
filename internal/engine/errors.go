package engine

import "errors"

// Ошибки условий.
var (
	// ErrConditionSyntax — условие не удалось разобрать.
	ErrConditionSyntax = errors.New("condition syntax error")

	// ErrUnknownVariable — условие ссылается на переменную вне набора полей.
	ErrUnknownVariable = errors.New("unknown condition variable")
)

// Ошибки извлечения.
var (
	// ErrEmptyPath — пустой путь в маппинге.
	ErrEmptyPath = errors.New("empty extraction path")
)
