// Пакет diff — построчное сравнение оригинального и исправленного текста.
//
// Алгоритм позиционный: строки сравниваются по индексу, без выравнивания
// вставок/удалений (это не LCS-diff). Два режима:
//   - split — парные строки по каждому индексу оригинала;
//   - unified — плоский список context/removed/added с контекстным окном.
//
// Функции чистые и детерминированные, безопасны для конкурентного вызова.
package diff

import "strings"

// ContextLines — размер контекстного окна unified-режима: количество
// неизменённых строк до и после блока изменений.
const ContextLines = 3

// LineKind — тип строки в unified-режиме.
type LineKind string

const (
	// KindContext — неизменённая строка внутри блока.
	KindContext LineKind = "context"
	// KindRemoved — строка оригинала, отличающаяся от исправленной.
	KindRemoved LineKind = "removed"
	// KindAdded — исправленная строка на той же позиции.
	KindAdded LineKind = "added"
)

// SplitSide — одна сторона парной строки split-режима.
type SplitSide struct {
	// Text — текст строки.
	Text string `json:"text"`
	// Changed — строки по этому индексу различаются.
	Changed bool `json:"changed"`
}

// SplitRow — парная строка split-режима: оригинал слева, исправление справа.
type SplitRow struct {
	Original SplitSide `json:"original"`
	Fixed    SplitSide `json:"fixed"`
}

// UnifiedLine — одна строка unified-режима.
type UnifiedLine struct {
	// Kind — context, removed или added.
	Kind LineKind `json:"type"`
	// LineNumber — номер строки (1-based).
	LineNumber int `json:"lineNumber"`
	// Text — текст строки.
	Text string `json:"text"`
}

// splitLines разбивает текст на строки по символу новой строки.
// Пустой текст даёт одну пустую строку — та же конвенция, что и у
// позиционных индексов остального алгоритма.
func splitLines(text string) []string {
	return strings.Split(text, "\n")
}

// Split строит split-представление: ровно одна строка результата на каждую
// строку оригинала. Исправленная сторона по индексу i — fixedLines[i], если
// она существует, иначе пустая строка. Строка помечается изменённой с обеих
// сторон при строгом неравенстве текстов.
func Split(original, fixed string) []SplitRow {
	originalLines := splitLines(original)
	fixedLines := splitLines(fixed)

	rows := make([]SplitRow, len(originalLines))
	for i, line := range originalLines {
		fixedLine := ""
		if i < len(fixedLines) {
			fixedLine = fixedLines[i]
		}
		changed := line != fixedLine

		rows[i] = SplitRow{
			Original: SplitSide{Text: line, Changed: changed},
			Fixed:    SplitSide{Text: fixedLine, Changed: changed},
		}
	}
	return rows
}

// Unified строит unified-представление: только изменённые участки с
// контекстным окном ContextLines.
//
// Проход по i в [0, max(len(original), len(fixed))); позиция за пределами
// текста считается пустой строкой. Первая отличающаяся строка открывает блок
// и добавляет до ContextLines предшествующих строк контекста (с отсечкой по
// индексу 0). Отличающаяся позиция даёт removed-строку оригинала и, если
// исправленная строка непуста, added-строку: удаление без замены не рождает
// пустую добавленную строку. Блок закрывается, когда индекс уходит на
// 2*ContextLines за начало блока, поэтому изменения, разделённые меньшим
// числом неизменённых строк, попадают в один непрерывный блок.
func Unified(original, fixed string) []UnifiedLine {
	originalLines := splitLines(original)
	fixedLines := splitLines(fixed)

	total := len(originalLines)
	if len(fixedLines) > total {
		total = len(fixedLines)
	}

	var result []UnifiedLine
	inChangeBlock := false
	changeBlockStart := 0

	for i := 0; i < total; i++ {
		originalLine := ""
		if i < len(originalLines) {
			originalLine = originalLines[i]
		}
		fixedLine := ""
		if i < len(fixedLines) {
			fixedLine = fixedLines[i]
		}

		if originalLine != fixedLine {
			if !inChangeBlock {
				inChangeBlock = true
				changeBlockStart = i - ContextLines
				if changeBlockStart < 0 {
					changeBlockStart = 0
				}

				// Контекст перед изменением. Позиция за пределами
				// оригинала — пустая строка, как и в основном цикле.
				for j := changeBlockStart; j < i; j++ {
					contextLine := ""
					if j < len(originalLines) {
						contextLine = originalLines[j]
					}
					result = append(result, UnifiedLine{
						Kind:       KindContext,
						LineNumber: j + 1,
						Text:       contextLine,
					})
				}
			}

			result = append(result, UnifiedLine{
				Kind:       KindRemoved,
				LineNumber: i + 1,
				Text:       originalLine,
			})

			if fixedLine != "" {
				result = append(result, UnifiedLine{
					Kind:       KindAdded,
					LineNumber: i + 1,
					Text:       fixedLine,
				})
			}
		} else if inChangeBlock {
			// Контекст после изменения
			result = append(result, UnifiedLine{
				Kind:       KindContext,
				LineNumber: i + 1,
				Text:       originalLine,
			})

			if i >= changeBlockStart+ContextLines*2 {
				inChangeBlock = false
			}
		}
	}

	return result
}
