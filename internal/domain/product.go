package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product — товар каталога. Инвариант: Stock >= 0 в любой момент времени;
// декремент, нарушающий его, никогда не применяется.
type Product struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int32
	CategoryID  string
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ValidateInvariants проверяет базовые инварианты товара и возвращает список замечаний.
func (p *Product) ValidateInvariants() []error {
	var errs []error

	if p.Name == "" {
		errs = append(errs, ErrProductNameRequired)
	}
	if p.Price.IsNegative() {
		errs = append(errs, ErrPriceNegative)
	}
	// Колонки price/subtotal в хранилище имеют scale 2; более точную цену
	// нельзя сохранить без потери, поэтому она отклоняется на входе.
	if !p.Price.Equal(p.Price.Round(2)) {
		errs = append(errs, ErrPriceScale)
	}
	if p.Stock < 0 {
		errs = append(errs, ErrStockNegative)
	}
	if p.CategoryID == "" {
		errs = append(errs, ErrCategoryRequired)
	}

	return errs
}
