// Package cart содержит операции над списками товаров и корзиной пользователя.
package cart

import "github.com/vladislavdragonenkov/orderprovider/internal/domain"

// DeleteProductFromList возвращает новый список без первых amount вхождений productID.
// Удаляется min(amount, число вхождений); порядок остальных элементов сохраняется.
// Входной срез не изменяется.
func DeleteProductFromList(list []domain.Product, productID string, amount int) []domain.Product {
	out := make([]domain.Product, 0, len(list))
	remaining := amount
	for _, p := range list {
		if remaining > 0 && p.ID == productID {
			remaining--
			continue
		}
		out = append(out, p)
	}
	return out
}

// CountProduct возвращает число вхождений товара в список.
func CountProduct(list []domain.Product, productID string) int {
	n := 0
	for _, p := range list {
		if p.ID == productID {
			n++
		}
	}
	return n
}
