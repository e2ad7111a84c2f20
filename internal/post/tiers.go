package post

import (
	"fmt"
	"strings"
)

// PriceTier is a book-count range with its listing price.
type PriceTier struct {
	From     int    `yaml:"from"`
	To       int    `yaml:"to"`
	Price    int    `yaml:"price"`
	Currency string `yaml:"currency"`
}

// DefaultPriceTiers is the price list used when the config does not set one.
var DefaultPriceTiers = []PriceTier{
	{From: 1, To: 4, Price: 5, Currency: "UAH"},
	{From: 5, To: 9, Price: 10, Currency: "UAH"},
	{From: 10, To: 14, Price: 15, Currency: "UAH"},
	{From: 15, To: 19, Price: 20, Currency: "UAH"},
	{From: 20, To: 24, Price: 25, Currency: "UAH"},
	{From: 25, To: 30, Price: 30, Currency: "UAH"},
}

// Key is the callback key of the tier button.
func (t PriceTier) Key() string {
	return fmt.Sprintf("books_%d_%d", t.From, t.To)
}

// Range renders the book-count range, e.g. "1-4".
func (t PriceTier) Range() string {
	return fmt.Sprintf("%d-%d", t.From, t.To)
}

// PriceLabel renders the price, e.g. "5 UAH".
func (t PriceTier) PriceLabel() string {
	return strings.TrimSpace(fmt.Sprintf("%d %s", t.Price, t.Currency))
}

// Label is the button text.
func (t PriceTier) Label() string {
	return fmt.Sprintf("%s books - %s", t.Range(), t.PriceLabel())
}

// ValidateTiers checks that tiers are non-empty, ordered and non-overlapping.
func ValidateTiers(tiers []PriceTier) error {
	if len(tiers) == 0 {
		return fmt.Errorf("no price tiers")
	}
	prev := 0
	for i, t := range tiers {
		if t.From <= 0 || t.To < t.From {
			return fmt.Errorf("price tier %d: invalid range %d-%d", i, t.From, t.To)
		}
		if t.From <= prev {
			return fmt.Errorf("price tier %d: range %s overlaps the previous tier", i, t.Range())
		}
		if t.Price <= 0 {
			return fmt.Errorf("price tier %d: price must be > 0", i)
		}
		prev = t.To
	}
	return nil
}

// FindTier returns the tier with the given callback key.
func FindTier(tiers []PriceTier, key string) (PriceTier, bool) {
	for _, t := range tiers {
		if t.Key() == key {
			return t, true
		}
	}
	return PriceTier{}, false
}
