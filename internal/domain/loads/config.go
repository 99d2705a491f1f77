package loads

import "millstock/pkg/numerator"

const (
	// NumeratorStrategy defines the numbering strategy for load documents.
	// Loads are handed to a person on paper, so gaps in numbering are not
	// acceptable and we use Strict strategy.
	NumeratorStrategy = numerator.StrategyStrict
)
