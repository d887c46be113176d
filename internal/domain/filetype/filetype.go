// Пакет filetype — определение типа файла из заявленного значения и имени.
// Чистая функция без глобального состояния: вынесена отдельно, чтобы
// валидация и инференс тестировались независимо от HTTP-слоя.
package filetype

import (
	"strings"

	"github.com/bigkaa/datafixer/internal/domain/model"
)

// DeclaredAuto — специальное заявленное значение: тип выводится из имени файла.
const DeclaredAuto = "auto"

// Resolve определяет тип файла.
//
// Правила:
//   - declared = "auto" (или пустое) → вывод из суффикса имени:
//     .csv → csv, .json → json, иначе → txt;
//   - любое другое declared используется как есть, если входит в допустимое
//     множество {csv, json, txt};
//   - содержимое файла не анализируется.
//
// Возвращает (тип, true) при успехе или ("", false), если заявленное
// значение недопустимо.
func Resolve(declared, filename string) (model.FileType, bool) {
	if declared == "" || declared == DeclaredAuto {
		return fromFilename(filename), true
	}

	t := model.FileType(strings.ToLower(declared))
	if !model.ValidFileType(t) {
		return "", false
	}
	return t, true
}

// fromFilename выводит тип файла из суффикса имени.
func fromFilename(filename string) model.FileType {
	name := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(name, ".csv"):
		return model.FileTypeCSV
	case strings.HasSuffix(name, ".json"):
		return model.FileTypeJSON
	default:
		return model.FileTypeTXT
	}
}
