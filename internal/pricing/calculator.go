// Package pricing computes jewelry, collection and service prices from
// metal market rates. Every function is pure and total: missing or
// malformed numeric inputs count as zero so price displays never fail.
package pricing

import (
	"math"
	"strconv"
	"strings"

	"github.com/example/karatcart/internal/models"
)

const pureKarat = 24.0

// metalAliases maps display spellings to rate table keys.
var metalAliases = map[string]string{
	"platinium": models.MetalPlatinum,
}

// KaratMultiplier returns karat/24, or 1 when the karat has no leading number.
// Unparsable purity is priced as pure metal.
func KaratMultiplier(karat models.Karat) float64 {
	value, ok := leadingNumber(string(karat))
	if !ok {
		return 1
	}
	return value / pureKarat
}

// KaratAdjustedPricePerGram returns the alloy price per gram for metalName.
// Unknown metals are priced at 0.
func KaratAdjustedPricePerGram(metalName string, karat models.Karat, rates models.MetalRateTable) float64 {
	return rateFor(rates, normalizeMetal(metalName)) * KaratMultiplier(karat)
}

// PreciousMaterialCost sums rate × weight over the materials using the raw
// pure-metal rate. Karat is ignored here, so an 18K gram costs the same as
// a 24K gram, while KaratAdjustedPricePerGram scales by karat/24. Listed
// prices depend on this: switching to the adjusted rate lowers every
// non-pure piece. Metal names are lowercased but not aliased.
func PreciousMaterialCost(materials []models.PreciousMaterial, rates models.MetalRateTable) float64 {
	if materials == nil || rates == nil {
		return 0
	}

	var total float64
	for _, m := range materials {
		total += rateFor(rates, strings.ToLower(strings.TrimSpace(m.Name))) * finite(m.Weight)
	}
	return total
}

// TotalCost adds the precious material cost to the origin cost.
func TotalCost(preciousMaterialCost, originCost float64) float64 {
	return finite(preciousMaterialCost) + finite(originCost)
}

// JewelryPrice is the current sale price of a single piece.
func JewelryPrice(j models.Jewelry, rates models.MetalRateTable) float64 {
	return TotalCost(PreciousMaterialCost(j.PreciousMaterials, rates), j.OriginPrice)
}

// CollectionPrice sums the contained pieces plus the collection's own origin
// price, floored at 0. ok is false when rates or the jewelry list is absent.
func CollectionPrice(c *models.Collection, rates models.MetalRateTable) (price float64, ok bool) {
	if rates == nil || c == nil || c.Jewelry == nil {
		return 0, false
	}

	var total float64
	for _, j := range c.Jewelry {
		total += JewelryPrice(j, rates)
	}
	total += finite(c.OriginPrice)
	return math.Max(total, 0), true
}

// ServicePrice is the flat service price times the number of attached
// pieces, counting at least one.
func ServicePrice(s models.Service, attached int) float64 {
	if attached < 1 {
		attached = 1
	}
	return finite(s.Price) * float64(attached)
}

func normalizeMetal(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := metalAliases[key]; ok {
		return alias
	}
	return key
}

func rateFor(rates models.MetalRateTable, key string) float64 {
	if rates == nil {
		return 0
	}
	return finite(rates[key])
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// leadingNumber parses the longest numeric prefix of s ("18K" -> 18),
// including an exponent ("1e1K" -> 10).
func leadingNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	end := 0
	seenDigit, seenDot := false, false
scan:
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			seenDigit = true
			end = i + 1
		case r == '.' && !seenDot:
			seenDot = true
		case (r == '-' || r == '+') && i == 0:
		default:
			break scan
		}
	}
	if !seenDigit {
		return 0, false
	}
	if rest := s[end:]; len(rest) > 1 && (rest[0] == 'e' || rest[0] == 'E') {
		j := 1
		if rest[j] == '+' || rest[j] == '-' {
			j++
		}
		k := j
		for k < len(rest) && rest[k] >= '0' && rest[k] <= '9' {
			k++
		}
		if k > j {
			end += k
		}
	}
	value, err := strconv.ParseFloat(s[:end], 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	return value, true
}
