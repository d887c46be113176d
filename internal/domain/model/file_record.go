package model

import "time"

// FileStatus — статус обработки файла.
type FileStatus string

const (
	// StatusProcessing — файл загружен, исправление ещё выполняется.
	// Единственный начальный статус.
	StatusProcessing FileStatus = "processing"
	// StatusFixed — исправление завершено успешно (терминальный).
	StatusFixed FileStatus = "fixed"
	// StatusFailed — исправление завершилось ошибкой (терминальный).
	StatusFailed FileStatus = "failed"
)

// FileType — тип содержимого файла.
type FileType string

const (
	// FileTypeCSV — CSV-файл.
	FileTypeCSV FileType = "csv"
	// FileTypeJSON — JSON-файл.
	FileTypeJSON FileType = "json"
	// FileTypeTXT — текстовый файл.
	FileTypeTXT FileType = "txt"
)

// FileChange — одно исправление, сообщённое сервисом коррекции.
// Порядок изменений сохраняется в том виде, в котором его вернул сервис.
type FileChange struct {
	// Line — номер строки (1-based).
	Line int `json:"line"`
	// Description — описание исправления.
	Description string `json:"description"`
	// Before — строка до исправления.
	Before string `json:"before"`
	// After — строка после исправления.
	After string `json:"after"`
}

// FileRecord — запись загруженного файла и результата его исправления.
// Хранится в таблице file_records.
//
// Инварианты жизненного цикла:
//   - status переходит из processing ровно один раз в fixed или failed;
//   - FixedRef != nil тогда и только тогда, когда status = fixed;
//   - ErrorMessage != nil тогда и только тогда, когда status = failed;
//   - ProcessingTime != nil тогда и только тогда, когда status != processing;
//   - Changes непусто только при status = fixed.
type FileRecord struct {
	// ID — UUID записи (задаётся при загрузке)
	ID string
	// Owner — идентификатор владельца (sub из JWT)
	Owner string
	// OriginalName — оригинальное имя файла
	OriginalName string
	// FileType — тип файла (csv, json, txt)
	FileType FileType
	// FileSize — размер оригинала в байтах
	FileSize int64
	// OriginalRef — путь оригинального содержимого в blob-хранилище
	OriginalRef string
	// FixedRef — путь исправленного содержимого (только при status = fixed)
	FixedRef *string
	// Status — статус обработки
	Status FileStatus
	// Changes — упорядоченный список исправлений от сервиса коррекции
	Changes []FileChange
	// ErrorMessage — сообщение об ошибке (только при status = failed)
	ErrorMessage *string
	// ProcessingTime — длительность исправления в секундах
	ProcessingTime *float64
	// ClaimedAt — время захвата записи диспетчером (защита от двойной обработки)
	ClaimedAt *time.Time
	// CreatedAt — время создания записи
	CreatedAt time.Time
}

// Terminal сообщает, достигла ли запись терминального статуса.
func (f *FileRecord) Terminal() bool {
	return f.Status == StatusFixed || f.Status == StatusFailed
}

// ValidFileType проверяет, входит ли тип в допустимое множество.
func ValidFileType(t FileType) bool {
	switch t {
	case FileTypeCSV, FileTypeJSON, FileTypeTXT:
		return true
	}
	return false
}
