package models

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewOrderNumber(t *testing.T) {
	now := time.Date(2025, 1, 14, 10, 30, 0, 0, time.UTC)

	pattern := regexp.MustCompile(`^HS-250114-[A-Z0-9]{4}$`)
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		number := NewOrderNumber(now)
		assert.Regexp(t, pattern, number)
		seen[number] = true
	}
	assert.Greater(t, len(seen), 1, "suffix must be random")
}

func TestOrderFingerprint(t *testing.T) {
	items := []OrderItem{
		{ProductID: "fabric-1", Quantity: 2, Price: 10.00},
		{ProductID: "fabric-2", Quantity: 1, Price: 5.50},
	}
	reversed := []OrderItem{items[1], items[0]}

	base := OrderFingerprint("erika@example.com", 25.50, items)

	assert.Equal(t, base, OrderFingerprint("erika@example.com", 25.50, reversed),
		"item order must not change the fingerprint")
	assert.Equal(t, base, OrderFingerprint(" Erika@Example.COM ", 25.50, items),
		"email casing and whitespace must not change the fingerprint")

	assert.NotEqual(t, base, OrderFingerprint("max@example.com", 25.50, items))
	assert.NotEqual(t, base, OrderFingerprint("erika@example.com", 30.00, items))

	changedQty := []OrderItem{
		{ProductID: "fabric-1", Quantity: 3, Price: 10.00},
		{ProductID: "fabric-2", Quantity: 1, Price: 5.50},
	}
	assert.NotEqual(t, base, OrderFingerprint("erika@example.com", 25.50, changedQty))
}
