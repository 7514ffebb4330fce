package trade

import (
	"math"

	"github.com/aretw0/flashsol/pkg/solana"
	"github.com/aretw0/flashsol/pkg/units"
)

const (
	// DefaultFeeBps is the service fee on buys, in basis points of the input.
	DefaultFeeBps uint32 = 100
	// DefaultReserveLamports is kept in the wallet for rent and network fees.
	DefaultReserveLamports uint64 = 5_000_000
)

// FeePolicy describes the opportunistic service fee charged on buys.
// The fee is a separate transfer sent after the swap confirms.
type FeePolicy struct {
	Bps             uint32
	Recipient       solana.PublicKey
	ReserveLamports uint64
}

// Enabled reports whether fees are charged at all.
func (p FeePolicy) Enabled() bool {
	return p.Bps > 0 && p.Recipient != (solana.PublicKey{})
}

// Plan returns the fee for a buy of cost lamports and whether the wallet
// balance covers cost + fee + reserve. A zero fee is never eligible.
func (p FeePolicy) Plan(balance, cost uint64) (fee uint64, eligible bool) {
	if !p.Enabled() {
		return 0, false
	}
	fee = units.BpsOf(cost, p.Bps)
	if fee == 0 {
		return 0, false
	}
	return fee, balance >= addSat(addSat(cost, fee), p.ReserveLamports)
}

func addSat(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}
