package analyzer

import (
	"strings"
	"testing"
)

func TestSanitizeResponseAllowList(t *testing.T) {
	in := "Проверьте CPU: 85% нагрузки! 🔥🔥 <script>alert</script>"
	out := SanitizeResponse(in)

	if strings.ContainsAny(out, "🔥<>") {
		t.Errorf("disallowed characters survived: %q", out)
	}
	if !strings.Contains(out, "Проверьте CPU: 85% нагрузки!") {
		t.Errorf("allowed text mangled: %q", out)
	}
}

func TestSanitizeResponseCollapsesWhitespace(t *testing.T) {
	out := SanitizeResponse("высокая    нагрузка\t\tна сервере")
	if out != "высокая нагрузка на сервере" {
		t.Errorf("whitespace not collapsed: %q", out)
	}
}

func TestSanitizeResponseDropsShortLines(t *testing.T) {
	in := "Первая осмысленная строка\nок\n- -\nВторая осмысленная строка"
	out := SanitizeResponse(in)

	lines := strings.Split(out, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), out)
	}
	if lines[0] != "Первая осмысленная строка" || lines[1] != "Вторая осмысленная строка" {
		t.Errorf("unexpected lines: %q", lines)
	}
}

func TestSanitizeResponseCapsLines(t *testing.T) {
	in := strings.Repeat("строка ответа достаточной длины\n", 40)
	out := SanitizeResponse(in)

	if got := len(strings.Split(out, "\n")); got != maxResponseLines {
		t.Errorf("expected %d lines, got %d", maxResponseLines, got)
	}
}

func TestSanitizeResponseIdempotent(t *testing.T) {
	inputs := []string{
		"Проверьте CPU: 85% нагрузки! 🔥 Рекомендуется перезапуск.",
		"многострочный\n\n\nответ  с   пробелами\nи 中文 символами",
		"",
		"уже чистый текст без лишнего",
	}
	for _, in := range inputs {
		once := SanitizeResponse(in)
		twice := SanitizeResponse(once)
		if once != twice {
			t.Errorf("not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}

func TestUsableBoundary(t *testing.T) {
	exactly := strings.Repeat("аб", 25) // 50 runes
	if Usable(exactly, MinUsableLength) {
		t.Error("exactly MinUsableLength runes must be rejected")
	}
	if !Usable(exactly+"в", MinUsableLength) {
		t.Error("MinUsableLength+1 runes must be accepted")
	}
	if Usable("", MinUsableLength) {
		t.Error("empty string must be rejected")
	}
}

func TestUsableCountsRunesNotBytes(t *testing.T) {
	// 30 Cyrillic runes are 60 bytes; must still be rejected.
	s := strings.Repeat("ж", 30)
	if Usable(s, MinUsableLength) {
		t.Error("byte length leaked into the usability predicate")
	}
}
