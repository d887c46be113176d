// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import "errors"

var (
	// ErrNotFound — ресурс не найден.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrInvalidFileType — недопустимый тип файла.
	ErrInvalidFileType = errors.New("недопустимый тип файла: допустимые значения — csv, json, txt")
	// ErrFileTooLarge — файл превышает лимит размера загрузки.
	ErrFileTooLarge = errors.New("файл превышает максимальный размер загрузки")
	// ErrEmptyFile — загружен пустой файл.
	ErrEmptyFile = errors.New("загружен пустой файл")
	// ErrQueueFull — очередь обработки переполнена.
	ErrQueueFull = errors.New("очередь обработки переполнена")
	// ErrNotFixed — операция доступна только для исправленных файлов.
	ErrNotFixed = errors.New("файл ещё не исправлен")
)
