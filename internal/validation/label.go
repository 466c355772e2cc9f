package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// LabelPattern определяет допустимый формат отображаемого имени участника
// Буквы любого алфавита, цифры, пробел, нижнее подчеркивание, дефис и точка
var LabelPattern = regexp.MustCompile(`^[\p{L}\p{N} _.\-]+$`)

const (
	// MaxLabelLen максимальная длина имени в символах
	MaxLabelLen = 32
)

// ErrInvalidLabel имя участника не прошло проверку
var ErrInvalidLabel = errors.New("invalid label")

// ValidateLabel проверяет отображаемое имя участника.
// Имя приходит и от соседей, поэтому проверяется на обеих сторонах.
func ValidateLabel(label string) error {
	if label == "" {
		return fmt.Errorf("%w: label cannot be empty", ErrInvalidLabel)
	}

	if strings.TrimSpace(label) != label {
		return fmt.Errorf("%w: label must not start or end with spaces", ErrInvalidLabel)
	}

	if utf8.RuneCountInString(label) > MaxLabelLen {
		return fmt.Errorf("%w: label must not exceed %d characters", ErrInvalidLabel, MaxLabelLen)
	}

	if !LabelPattern.MatchString(label) {
		return fmt.Errorf("%w: label can only contain letters, numbers, spaces, '_', '-' and '.'", ErrInvalidLabel)
	}

	return nil
}
