package ocr

import (
	"regexp"

	"yard-service/internal/utils"
)

var (
	mercosulPattern = regexp.MustCompile(`[A-Z]{3}[0-9][A-Z][0-9]{2}`)
	legacyPattern   = regexp.MustCompile(`[A-Z]{3}[0-9]{4}`)
)

// ExtractPlateText ищет в тексте OCR фрагмент, похожий на номер.
// Сначала формат Меркосул, потом старый формат LLLNNNN; если ничего не нашлось, возвращается очищенный текст целиком.
func ExtractPlateText(raw string) string {
	cleaned := utils.CleanPlate(raw)
	if match := mercosulPattern.FindString(cleaned); match != "" {
		return match
	}
	if match := legacyPattern.FindString(cleaned); match != "" {
		return match
	}
	return cleaned
}
