package apiutil

import (
	"strconv"
	"strings"

	"github.com/codr1/crease/internal/cricket"
)

// ParseOptionalIntField returns 0 when raw is empty.
func ParseOptionalIntField(raw string, field string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, cricket.Validationf("%s must be 0 or greater", field)
	}
	return value, nil
}

func ParsePositiveIntField(raw string, field string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, cricket.Validationf("%s is required", field)
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return 0, cricket.Validationf("%s must be greater than 0", field)
	}
	return value, nil
}
