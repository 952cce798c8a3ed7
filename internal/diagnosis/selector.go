// Package diagnosis contains the pure domain logic of the service: choosing
// the best prediction from an inference result and localizing disease labels
// for display.
package diagnosis

import (
	"github.com/Phusssss/plant-disease-detection/internal/inference"
)

// Category identifies which specialized inference endpoint a diagnosis
// targeted.
type Category string

const (
	CategoryPlant Category = "plant" // general plant disease model
	CategoryRice  Category = "rice"  // rice-specific disease model
)

// SelectionPolicy determines which prediction of a set is reported as the
// diagnosis result.
type SelectionPolicy int

const (
	// PolicyFirst returns the first prediction in API order, used by the
	// general plant endpoint.
	PolicyFirst SelectionPolicy = iota
	// PolicyMaxConfidence returns the highest-confidence prediction, ties
	// broken by first occurrence, used by the rice endpoint.
	PolicyMaxConfidence
)

// PolicyFor returns the selection policy of a category.
func PolicyFor(category Category) SelectionPolicy {
	if category == CategoryRice {
		return PolicyMaxConfidence
	}
	return PolicyFirst
}

// EndpointFor maps a category to its inference endpoint.
func EndpointFor(category Category) inference.Endpoint {
	if category == CategoryRice {
		return inference.EndpointRice
	}
	return inference.EndpointPlant
}

// Select picks a prediction from the set according to the policy. Returns
// nil when the set is empty.
func Select(predictions inference.PredictionSet, policy SelectionPolicy) *inference.Prediction {
	if len(predictions) == 0 {
		return nil
	}

	if policy == PolicyFirst {
		selected := predictions[0]
		return &selected
	}

	best := predictions[0]
	for _, p := range predictions[1:] {
		if p.Confidence > best.Confidence {
			best = p
		}
	}
	return &best
}
