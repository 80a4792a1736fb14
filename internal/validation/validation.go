// Package validation содержит функции валидации входных данных.
package validation

import (
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
)

// ErrInvalidParameter — базовая ошибка нарушения бизнес-правила. Конкретные
// нарушения оборачивают её вместе с текстом причины, пригодным для показа
// пользователю.
var ErrInvalidParameter = errors.New("invalid parameter")

// specialChars — фиксированный набор спецсимволов, один из которых обязан
// присутствовать в пароле.
const specialChars = "~`!@#$%^&*()_-+={[}]|\\:;\"'<,>.?/"

// Первая буква канадского почтового индекса; в последующих позициях
// дополнительно допускаются W и Z.
var postalCodeRe = regexp.MustCompile(
	`^[ABCEGHJKLMNPRSTVXY][0-9][ABCEGHJKLMNPRSTVWXYZ] ?[0-9][ABCEGHJKLMNPRSTVWXYZ][0-9]$`)

func isAlnumOrSpace(r rune) bool {
	return r == ' ' ||
		(r >= '0' && r <= '9') ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z')
}

// ValidateUsername проверяет имя пользователя: длина от 3 до 20 символов,
// только буквы, цифры и пробелы, пробел не может быть первым или последним
// символом.
func ValidateUsername(username string) error {
	if len(username) < 3 {
		return fmt.Errorf("%w: username must be at least 3 characters", ErrInvalidParameter)
	}
	if len(username) > 20 {
		return fmt.Errorf("%w: username must be at most 20 characters", ErrInvalidParameter)
	}
	for _, r := range username {
		if !isAlnumOrSpace(r) {
			return fmt.Errorf("%w: username must be alphanumeric", ErrInvalidParameter)
		}
	}
	if username[0] == ' ' || username[len(username)-1] == ' ' {
		return fmt.Errorf("%w: username cannot begin or end with a space", ErrInvalidParameter)
	}
	return nil
}

// ValidatePassword проверяет сложность пароля: минимум 6 символов, хотя бы
// одна заглавная буква, одна строчная и один спецсимвол из фиксированного
// набора.
func ValidatePassword(password string) error {
	if len(password) < 6 {
		return fmt.Errorf("%w: password must be at least 6 characters", ErrInvalidParameter)
	}

	var hasUpper, hasLower, hasSpecial bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case strings.ContainsRune(specialChars, r):
			hasSpecial = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("%w: password must contain at least one uppercase letter", ErrInvalidParameter)
	}
	if !hasLower {
		return fmt.Errorf("%w: password must contain at least one lowercase letter", ErrInvalidParameter)
	}
	if !hasSpecial {
		return fmt.Errorf("%w: password must contain at least one special character", ErrInvalidParameter)
	}
	return nil
}

// ValidateEmail проверяет синтаксис email по addr-spec из RFC 5322.
// Уникальность адреса проверяется отдельно на уровне хранилища.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("%w: email cannot be empty", ErrInvalidParameter)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("%w: invalid email %s", ErrInvalidParameter, email)
	}
	return nil
}

// ValidateShippingAddress проверяет адрес доставки: непустой, только буквы,
// цифры и пробелы.
func ValidateShippingAddress(address string) error {
	if strings.ReplaceAll(address, " ", "") == "" {
		return fmt.Errorf("%w: invalid shipping address", ErrInvalidParameter)
	}
	for _, r := range address {
		if !isAlnumOrSpace(r) {
			return fmt.Errorf("%w: invalid shipping address", ErrInvalidParameter)
		}
	}
	return nil
}

// ValidatePostalCode проверяет соответствие стандартному канадскому
// почтовому индексу, с необязательным пробелом между триадами.
func ValidatePostalCode(postalCode string) error {
	if !postalCodeRe.MatchString(postalCode) {
		return fmt.Errorf("%w: invalid postal code", ErrInvalidParameter)
	}
	return nil
}
