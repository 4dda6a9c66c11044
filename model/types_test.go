package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProductClone(t *testing.T) {
	category := "shoes"
	price := 59.99
	p := Product{
		ID:       "prod_0",
		Name:     "Red Sneaker",
		Category: &category,
		Price:    &price,
		Metadata: map[string]any{"color": "red"},
	}

	clone := p.Clone()
	*clone.Category = "jackets"
	*clone.Price = 1.0
	clone.Metadata["color"] = "blue"

	assert.Equal(t, "shoes", *p.Category)
	assert.Equal(t, 59.99, *p.Price)
	assert.Equal(t, "red", p.Metadata["color"])
}

func TestPositionString(t *testing.T) {
	assert.Equal(t, "back", PositionBack.String())
	assert.Equal(t, "front", PositionFront.String())
	assert.Equal(t, "unknown", Position(9).String())
}
