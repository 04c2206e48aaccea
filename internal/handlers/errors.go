package handlers

import "errors"

// Ошибки реестра кастомных обработчиков.
var (
	// ErrHandlerNotFound — обработчик с таким именем не зарегистрирован.
	ErrHandlerNotFound = errors.New("custom handler not found")

	// ErrIllegalHandlerName — имя пустое или содержит разделители пути / "..".
	ErrIllegalHandlerName = errors.New("illegal custom handler name")

	// ErrBadCredentials — ключ API не подходит для обработчика.
	ErrBadCredentials = errors.New("bad provider credentials")
)
