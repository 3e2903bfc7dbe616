package reader

import "errors"

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrNotFound            = errors.New("not found")
	ErrNoImages            = errors.New("no input images available")
	ErrInvalidChoice       = errors.New("invalid choice")
	ErrImageUnreadable     = errors.New("image could not be read")
	ErrDetectorUnavailable = errors.New("plate detector unavailable")
	ErrNoPlate             = errors.New("no plates detected")
	ErrOCRUnavailable      = errors.New("ocr engine unavailable")
	ErrOCROutputMissing    = errors.New("ocr output missing")
	ErrHistoryDisabled     = errors.New("run history is not configured")
)
