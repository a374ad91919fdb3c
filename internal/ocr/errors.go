package ocr

import "errors"

var (
	// ErrNoPlate движок отработал, но номер на изображении не найден
	ErrNoPlate = errors.New("no plate found")
	// ErrEngineUnavailable движок не собран в бинарник или не установлен
	ErrEngineUnavailable = errors.New("ocr engine unavailable")
)
