package validation

import (
	"fmt"
	"strings"
	"time"
)

// Границы допустимой цены товара, включительно.
const (
	MinPrice = 10.0
	MaxPrice = 10000.0
)

// Границы допустимой длины описания товара, включительно.
const (
	MinDescriptionLen = 20
	MaxDescriptionLen = 2000
)

// MaxProductNameLen — максимальная длина названия товара.
const MaxProductNameLen = 80

// Границы допустимой даты изменения товара, обе не включаются.
var (
	MinLastModifiedDate = time.Date(2021, 1, 2, 0, 0, 0, 0, time.UTC)
	MaxLastModifiedDate = time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
)

// ProductParams — параметры товара, проходящие составную проверку при
// создании и обновлении.
type ProductParams struct {
	ProductName      string
	Description      string
	Price            float64
	LastModifiedDate time.Time
	OwnerEmail       string
}

// ValidateProductName проверяет название товара: непустое без учёта
// пробелов, только буквы, цифры и внутренние пробелы, не длиннее 80
// символов.
func ValidateProductName(name string) error {
	if strings.ReplaceAll(name, " ", "") == "" {
		return fmt.Errorf("%w: invalid name %s", ErrInvalidParameter, name)
	}
	for _, r := range name {
		if !isAlnumOrSpace(r) {
			return fmt.Errorf("%w: invalid name %s", ErrInvalidParameter, name)
		}
	}
	if name[0] == ' ' || name[len(name)-1] == ' ' {
		return fmt.Errorf("%w: invalid name %s", ErrInvalidParameter, name)
	}
	if len(name) > MaxProductNameLen {
		return fmt.Errorf("%w: invalid name %s", ErrInvalidParameter, name)
	}
	return nil
}

// ValidateDescription проверяет описание товара: длина в пределах
// [20, 2000] и строго больше длины названия.
func ValidateDescription(description, productName string) error {
	if len(description) < MinDescriptionLen || len(description) > MaxDescriptionLen ||
		len(description) <= len(productName) {
		return fmt.Errorf("%w: invalid description length", ErrInvalidParameter)
	}
	return nil
}

// ValidateProductParams выполняет составную проверку параметров товара.
// Проверки, требующие обращения к хранилищу (существование владельца,
// дубликат названия у того же владельца), выполняются сервисным слоем.
func ValidateProductParams(p ProductParams) error {
	if err := ValidateProductName(p.ProductName); err != nil {
		return err
	}
	if err := ValidateDescription(p.Description, p.ProductName); err != nil {
		return err
	}
	if p.Price < MinPrice || p.Price > MaxPrice {
		return fmt.Errorf("%w: invalid price %v", ErrInvalidParameter, p.Price)
	}
	if !p.LastModifiedDate.After(MinLastModifiedDate) ||
		!p.LastModifiedDate.Before(MaxLastModifiedDate) {
		return fmt.Errorf("%w: invalid last modified date %s",
			ErrInvalidParameter, p.LastModifiedDate.Format(time.RFC3339))
	}
	if p.OwnerEmail == "" {
		return fmt.Errorf("%w: invalid owner email", ErrInvalidParameter)
	}
	return nil
}
