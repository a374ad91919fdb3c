package utils

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// PlateLength длина номера в формате Меркосул (LLL N L NN)
const PlateLength = 7

// true - на позиции ожидается буква, false - цифра
var mercosulLayout = [PlateLength]bool{true, true, true, false, true, false, false}

// Типичные ошибки OCR: цифра, прочитанная вместо буквы
var letterForDigit = map[byte]byte{
	'0': 'O',
	'1': 'I',
	'2': 'Z',
	'5': 'S',
	'6': 'G',
	'8': 'B',
	'4': 'A',
	'7': 'T',
}

// и наоборот: буква вместо цифры
var digitForLetter = map[byte]byte{
	'O': '0',
	'Q': '0',
	'D': '0',
	'I': '1',
	'L': '1',
	'Z': '2',
	'S': '5',
	'B': '8',
	'G': '6',
	'A': '4',
	'T': '7',
}

// PlateCandidate сырой результат OCR вместе с нормализованной формой
type PlateCandidate struct {
	Raw       string
	Canonical string
	// LowConfidence выставляется, когда цифру пришлось подставить ('0'),
	// потому что символ не удалось сопоставить ни с одной цифрой
	LowConfidence bool
}

// Valid сообщает, получилось ли собрать полный номер из 7 символов
func (c PlateCandidate) Valid() bool {
	return len(c.Canonical) == PlateLength
}

// CleanPlate удаляет диакритику и все символы кроме [A-Za-z0-9], приводит к верхнему регистру
func CleanPlate(raw string) string {
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	decomposed, _, err := transform.String(stripMarks, raw)
	if err != nil {
		decomposed = raw
	}

	var b strings.Builder
	b.Grow(len(decomposed))
	for i := 0; i < len(decomposed); i++ {
		c := decomposed[i]
		switch {
		case c >= 'a' && c <= 'z':
			b.WriteByte(c - 'a' + 'A')
		case c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteByte(c)
		}
	}
	return b.String()
}

// NormalizePlate приводит распознанный текст к формату Меркосул.
// Если после очистки осталось меньше 7 символов, возвращается очищенная строка как есть:
// вызывающий сам решает, принимать ли частичный номер.
func NormalizePlate(raw string) string {
	return NormalizePlateCandidate(raw).Canonical
}

// NormalizePlateCandidate то же, что NormalizePlate, но дополнительно сообщает о подставленных цифрах
func NormalizePlateCandidate(raw string) PlateCandidate {
	cleaned := CleanPlate(raw)
	candidate := PlateCandidate{Raw: raw, Canonical: cleaned}
	if len(cleaned) < PlateLength || IsMercosulPlate(cleaned) {
		return candidate
	}

	out := []byte(cleaned[:PlateLength])
	for i, wantLetter := range mercosulLayout {
		if wantLetter {
			out[i] = asLetter(out[i])
			continue
		}
		digit, ok := asDigit(out[i])
		if !ok {
			candidate.LowConfidence = true
		}
		out[i] = digit
	}
	candidate.Canonical = string(out)
	return candidate
}

// IsMercosulPlate проверяет структуру LLL N L NN без исправлений
func IsMercosulPlate(plate string) bool {
	if len(plate) != PlateLength {
		return false
	}
	for i, wantLetter := range mercosulLayout {
		c := plate[i]
		if wantLetter && (c < 'A' || c > 'Z') {
			return false
		}
		if !wantLetter && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

func asLetter(c byte) byte {
	if mapped, ok := letterForDigit[c]; ok {
		return mapped
	}
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}

// asDigit возвращает false, если символ пришлось заменить на '0'
func asDigit(c byte) (byte, bool) {
	if c >= 'a' && c <= 'z' {
		c = c - 'a' + 'A'
	}
	if mapped, ok := digitForLetter[c]; ok {
		c = mapped
	}
	if c < '0' || c > '9' {
		return '0', false
	}
	return c, true
}
