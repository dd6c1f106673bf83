package scales

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/figmp/figmarket/internal/domain"
)

// HoldSide says which kind of resting order a hold descriptor backs.
type HoldSide string

const (
	HoldSideBuy  HoldSide = "buy"
	HoldSideSell HoldSide = "sell"
)

// Hold descriptors are the only durable link between an escrowed asset
// and its resting order, so they must encode both the side and the
// figurine: "buying :yay:" or "selling :yay: for 350".
var (
	buyingDescRegex  = regexp.MustCompile(`^buying (.+)$`)
	sellingDescRegex = regexp.MustCompile(`^selling (.+) for ([0-9]+)$`)
)

// BuyingDescriptor tags a funds hold backing a buy order.
func BuyingDescriptor(fig domain.Figurine) string {
	return "buying " + fig.Display()
}

// SellingDescriptor tags a figurine hold backing a sell order.
func SellingDescriptor(fig domain.Figurine, cents int64) string {
	return fmt.Sprintf("selling %s for %d", fig.Display(), cents)
}

// ParseDescriptor recovers the side and figurine from a hold descriptor.
// Returns a BadInputError for descriptors this system never produced.
func ParseDescriptor(desc string) (HoldSide, domain.Figurine, error) {
	if m := sellingDescRegex.FindStringSubmatch(desc); m != nil {
		if _, err := strconv.ParseInt(m[2], 10, 64); err != nil {
			return "", domain.Figurine{}, &domain.BadInputError{Message: "bad price in hold descriptor: " + desc}
		}
		fig, err := domain.ParseFigurine(m[1])
		if err != nil {
			return "", domain.Figurine{}, err
		}
		return HoldSideSell, fig, nil
	}
	if m := buyingDescRegex.FindStringSubmatch(desc); m != nil {
		fig, err := domain.ParseFigurine(m[1])
		if err != nil {
			return "", domain.Figurine{}, err
		}
		return HoldSideBuy, fig, nil
	}
	return "", domain.Figurine{}, &domain.BadInputError{Message: "unrecognized hold descriptor: " + desc}
}
