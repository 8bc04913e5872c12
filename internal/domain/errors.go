package domain

import "errors"

var (
	// ErrNotFound возвращается когда запись не найдена
	ErrNotFound = errors.New("not found")

	// ErrInvalidAction возвращается для структурно некорректного действия
	ErrInvalidAction = errors.New("invalid action")

	// ErrIrreversibleAction возвращается при попытке создать чекпоинт для необратимого действия
	ErrIrreversibleAction = errors.New("irreversible action")

	// ErrCheckpointNotFound возвращается когда чекпоинт не найден
	ErrCheckpointNotFound = errors.New("checkpoint not found")

	// ErrRequestNotFound возвращается когда запрос не найден в очереди
	ErrRequestNotFound = errors.New("approval request not found")

	// ErrUnauthorized возвращается при ошибке авторизации
	ErrUnauthorized = errors.New("unauthorized")

	// ErrKillSwitchEngaged возвращается когда выполнение остановлено
	ErrKillSwitchEngaged = errors.New("kill switch engaged")

	// ErrNoExecutor возвращается когда для типа действия нет исполнителя
	ErrNoExecutor = errors.New("no executor registered")

	// ErrNotApproved возвращается при попытке выполнить неутвержденное решение
	ErrNotApproved = errors.New("decision not approved for execution")

	// ErrDatabaseConnection возвращается при ошибке подключения к БД
	ErrDatabaseConnection = errors.New("database connection error")
)
