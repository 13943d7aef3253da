package domain

import "github.com/shopspring/decimal"

// PlanLine — одна провалидированная позиция будущего заказа: снапшот товара,
// количество и посчитанный subtotal.
type PlanLine struct {
	Product  Product
	Quantity int32
	Price    decimal.Decimal
	Subtotal decimal.Decimal
}

// OrderPlan — провалидированный и оценённый, но ещё не записанный заказ.
// Сборщик считает Total одним округлением по сумме subtotal-ов, а не построчно,
// чтобы не накапливать ошибку округления.
type OrderPlan struct {
	Lines []PlanLine
	Total decimal.Decimal
}

// ComputeTotal суммирует subtotal-ы строк и округляет результат до 2 знаков.
func (p *OrderPlan) ComputeTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, line := range p.Lines {
		sum = sum.Add(line.Subtotal)
	}
	return sum.Round(2)
}
