package diff

import (
	"strings"
	"testing"
)

// --- Split-режим ---

func TestSplit_IdenticalTexts(t *testing.T) {
	text := "a\nb\nc"
	rows := Split(text, text)

	if len(rows) != 3 {
		t.Fatalf("len(rows) = %d, ожидается 3", len(rows))
	}
	for i, row := range rows {
		if row.Original.Changed || row.Fixed.Changed {
			t.Errorf("строка %d помечена изменённой для идентичных текстов", i)
		}
		if row.Original.Text != row.Fixed.Text {
			t.Errorf("строка %d: original %q != fixed %q", i, row.Original.Text, row.Fixed.Text)
		}
	}
}

func TestSplit_ScenarioSingleChange(t *testing.T) {
	rows := Split("a\nb\nc", "a\nx\nc")

	if len(rows) != 3 {
		t.Fatalf("len(rows) = %d, ожидается 3", len(rows))
	}
	if rows[0].Original.Changed || rows[2].Original.Changed {
		t.Error("строки 0 и 2 не должны быть помечены изменёнными")
	}
	if !rows[1].Original.Changed || !rows[1].Fixed.Changed {
		t.Error("строка 1 должна быть помечена изменённой с обеих сторон")
	}
	if rows[1].Original.Text != "b" || rows[1].Fixed.Text != "x" {
		t.Errorf("строка 1 = (%q, %q), ожидается (b, x)", rows[1].Original.Text, rows[1].Fixed.Text)
	}
}

func TestSplit_FixedShorterThanOriginal(t *testing.T) {
	// Исправленная сторона за пределами своего текста — пустая строка,
	// строк результата ровно столько, сколько строк в оригинале.
	rows := Split("a\nb\nc", "a")

	if len(rows) != 3 {
		t.Fatalf("len(rows) = %d, ожидается 3", len(rows))
	}
	if rows[0].Original.Changed {
		t.Error("строка 0 не должна быть изменённой")
	}
	for i := 1; i < 3; i++ {
		if rows[i].Fixed.Text != "" {
			t.Errorf("строка %d: fixed = %q, ожидается пустая", i, rows[i].Fixed.Text)
		}
		if !rows[i].Original.Changed {
			t.Errorf("строка %d должна быть помечена изменённой", i)
		}
	}
}

func TestSplit_FixedLongerThanOriginal(t *testing.T) {
	// Лишние строки исправления не порождают дополнительных строк результата.
	rows := Split("a", "a\nb\nc")
	if len(rows) != 1 {
		t.Fatalf("len(rows) = %d, ожидается 1", len(rows))
	}
	if rows[0].Original.Changed {
		t.Error("единственная строка не должна быть изменённой")
	}
}

func TestSplit_EmptyTexts(t *testing.T) {
	// Разбиение пустого текста даёт одну пустую строку (конвенция split("\n")).
	rows := Split("", "")
	if len(rows) != 1 {
		t.Fatalf("len(rows) = %d, ожидается 1", len(rows))
	}
	if rows[0].Original.Changed {
		t.Error("пустые тексты идентичны, строка не должна быть изменённой")
	}
}

// --- Unified-режим ---

func TestUnified_IdenticalTexts(t *testing.T) {
	text := "a\nb\nc\nd"
	lines := Unified(text, text)
	if len(lines) != 0 {
		t.Fatalf("идентичные тексты дали %d строк, ожидается 0", len(lines))
	}
}

func TestUnified_ScenarioSingleChange(t *testing.T) {
	lines := Unified("a\nb\nc", "a\nx\nc")

	want := []UnifiedLine{
		{Kind: KindContext, LineNumber: 1, Text: "a"},
		{Kind: KindRemoved, LineNumber: 2, Text: "b"},
		{Kind: KindAdded, LineNumber: 2, Text: "x"},
		{Kind: KindContext, LineNumber: 3, Text: "c"},
	}

	if len(lines) != len(want) {
		t.Fatalf("len(lines) = %d, ожидается %d: %+v", len(lines), len(want), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("lines[%d] = %+v, ожидается %+v", i, lines[i], want[i])
		}
	}
}

func TestUnified_RemovalWithoutAddition(t *testing.T) {
	// Удаление без замены: removed есть, added нет.
	lines := Unified("a", "")

	if len(lines) != 1 {
		t.Fatalf("len(lines) = %d, ожидается 1: %+v", len(lines), lines)
	}
	if lines[0].Kind != KindRemoved || lines[0].Text != "a" || lines[0].LineNumber != 1 {
		t.Errorf("lines[0] = %+v, ожидается removed 'a' (строка 1)", lines[0])
	}
}

func TestUnified_FixedLongerThanOriginal(t *testing.T) {
	// Лишняя строка исправления: за пределами оригинала сравнивается с пустой.
	lines := Unified("a", "a\nb")

	var removed, added int
	for _, l := range lines {
		switch l.Kind {
		case KindRemoved:
			removed++
			if l.Text != "" || l.LineNumber != 2 {
				t.Errorf("removed = %+v, ожидается пустой текст на строке 2", l)
			}
		case KindAdded:
			added++
			if l.Text != "b" || l.LineNumber != 2 {
				t.Errorf("added = %+v, ожидается 'b' на строке 2", l)
			}
		}
	}
	if removed != 1 || added != 1 {
		t.Errorf("removed=%d, added=%d, ожидается по 1", removed, added)
	}
}

func TestUnified_ContextBackfillBeyondOriginal(t *testing.T) {
	// Первое изменение далеко за концом оригинала: back-fill контекста
	// захватывает позиции, которых в оригинале нет, — они считаются
	// пустыми строками, как и в основном цикле.
	lines := Unified("a", "a\n\n\n\nx")

	want := []UnifiedLine{
		{Kind: KindContext, LineNumber: 2, Text: ""},
		{Kind: KindContext, LineNumber: 3, Text: ""},
		{Kind: KindContext, LineNumber: 4, Text: ""},
		{Kind: KindRemoved, LineNumber: 5, Text: ""},
		{Kind: KindAdded, LineNumber: 5, Text: "x"},
	}

	if len(lines) != len(want) {
		t.Fatalf("len(lines) = %d, ожидается %d: %+v", len(lines), len(want), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("lines[%d] = %+v, ожидается %+v", i, lines[i], want[i])
		}
	}
}

// makeLines строит тексты из count нумерованных строк: l00, l01, ...
// Строки оригинала с индексами из changed в исправленном тексте
// заменяются на "X<строка>".
func makeLines(count int, changed map[int]bool) (original, fixed string) {
	origLines := make([]string, count)
	fixedLines := make([]string, count)
	for i := 0; i < count; i++ {
		origLines[i] = "l" + string(rune('0'+i/10)) + string(rune('0'+i%10))
		fixedLines[i] = origLines[i]
		if changed[i] {
			fixedLines[i] = "X" + origLines[i]
		}
	}
	return strings.Join(origLines, "\n"), strings.Join(fixedLines, "\n")
}

func TestUnified_CloseChangesMergeIntoOneBlock(t *testing.T) {
	// Изменения на позициях 5 и 8: две неизменённые строки между ними —
	// блок не закрывается, back-fill контекста второй раз не выполняется.
	original, fixed := makeLines(20, map[int]bool{5: true, 8: true})
	lines := Unified(original, fixed)

	if len(lines) == 0 {
		t.Fatal("diff пуст")
	}

	// Контекстные строки не дублируются, номера не убывают
	seen := map[int]int{}
	prev := 0
	for _, l := range lines {
		if l.LineNumber < prev {
			t.Fatalf("номер строки %d после %d — блок перезапустился", l.LineNumber, prev)
		}
		if l.Kind == KindContext {
			seen[l.LineNumber]++
			if seen[l.LineNumber] > 1 {
				t.Errorf("контекстная строка %d продублирована — блоки не слились", l.LineNumber)
			}
		}
		if l.LineNumber > prev {
			prev = l.LineNumber
		}
	}

	// Пропусков между первой и последней строкой блока нет
	first, last := lines[0].LineNumber, lines[len(lines)-1].LineNumber
	present := map[int]bool{}
	for _, l := range lines {
		present[l.LineNumber] = true
	}
	for n := first; n <= last; n++ {
		if !present[n] {
			t.Errorf("строка %d отсутствует внутри непрерывного блока", n)
		}
	}
}

func TestUnified_DistantChangesProduceTwoBlocks(t *testing.T) {
	// Изменения на позициях 2 и 12: девять неизменённых строк между ними —
	// два отдельных блока с разрывом номеров строк между ними.
	original, fixed := makeLines(20, map[int]bool{2: true, 12: true})
	lines := Unified(original, fixed)

	present := map[int]bool{}
	for _, l := range lines {
		present[l.LineNumber] = true
	}

	// Первый блок закрывается контекстом до строки 7, второй начинается
	// с контекста строки 10. Строки 8 и 9 — в разрыве между блоками.
	for _, n := range []int{8, 9} {
		if present[n] {
			t.Errorf("строка %d присутствует, ожидается разрыв между блоками", n)
		}
	}
	if !present[2] || !present[3] {
		t.Error("ожидается removed строки 3 с контекстом перед ней в первом блоке")
	}
	if !present[10] || !present[13] {
		t.Error("ожидается второй блок с контекстом от строки 10 и removed строки 13")
	}
}

func TestUnified_ContextClampedAtStart(t *testing.T) {
	// Изменение в первой строке: back-fill контекста отсекается по индексу 0.
	lines := Unified("x\nb\nc", "y\nb\nc")

	if len(lines) == 0 || lines[0].Kind != KindRemoved || lines[0].LineNumber != 1 {
		t.Fatalf("lines[0] = %+v, ожидается removed строки 1 без контекста перед ней", lines)
	}
}

func TestUnified_EmptyFixedText(t *testing.T) {
	// Пустой исправленный текст — одна пустая строка: все строки оригинала
	// становятся removed, added не возникает.
	lines := Unified("a\nb", "")

	for _, l := range lines {
		if l.Kind == KindAdded {
			t.Errorf("added = %+v, пустые исправленные строки не должны порождать added", l)
		}
	}
}
