package crdt

import "onestore/internal/recipe"

// For returns the Algorithm implementation registered under id.
func For(id recipe.AlgorithmId) Algorithm {
	switch id {
	case recipe.AlgoRegister:
		return Register{}
	case recipe.AlgoSet:
		return Set{}
	case recipe.AlgoOptionalValue:
		return OptionalValue{}
	case recipe.AlgoReferenceToObject:
		return ReferenceToObject{}
	default:
		return NotAvailable{}
	}
}
