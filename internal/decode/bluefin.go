package decode

import (
	"strconv"

	"sui-mev-indexer/internal/domain"
)

// Bluefin CLMM packages. Swaps and tick updates are emitted by different
// package upgrades, so the keys differ.
const (
	BluefinExchange    = "bluefin"
	bluefinSwapPackage = "0x3492c874c1e3b3e2984e8c41b589e642d4d0a5d6459e5a9cfc2d52fd7c89c267"
	bluefinTickPackage = "0xf1962ddb76a7f9968b4e597278d3cc717a00620cc421b00e3429c5c071eba26a"
)

func registerBluefin(r *Registry) {
	r.Register(Key{bluefinSwapPackage, "events", "AssetSwap"}, decodeBluefinSwap)
	r.Register(Key{bluefinTickPackage, "events", "PoolTickUpdate"}, decodeBluefinTickUpdate)
}

// AssetSwap layout: pool ID, a2b bool, amount_in u64, amount_out u64,
// fee u64, pool_coin_a_amount u64, pool_coin_b_amount u64, liquidity u128,
// sqrt_price u128, current_tick u32.
func decodeBluefinSwap(payload []byte) (domain.DecodedEvent, error) {
	r := newReader(payload)
	pool := r.address()
	_ = r.bool() // a2b
	_ = r.u64()  // amount_in
	_ = r.u64()  // amount_out
	_ = r.u64()  // fee
	amountA := r.u64()
	amountB := r.u64()
	liquidity := r.u128()
	sqrtPrice := r.u128()
	tick := r.i32()
	if err := r.finish(); err != nil {
		return nil, err
	}

	return &domain.PoolStateChanged{
		Exchange:  BluefinExchange,
		Address:   pool,
		AmountA:   u64String(amountA),
		AmountB:   u64String(amountB),
		Liquidity: liquidity,
		SqrtPrice: sqrtPrice,
		TickIndex: &tick,
	}, nil
}

// PoolTickUpdate layout: pool ID, tick u32, liquidity_net i128,
// liquidity_gross u128.
func decodeBluefinTickUpdate(payload []byte) (domain.DecodedEvent, error) {
	r := newReader(payload)
	pool := r.address()
	tick := r.i32()
	liquidityNet := r.i128()
	liquidityGross := r.u128()
	if err := r.finish(); err != nil {
		return nil, err
	}

	return &domain.TickUpdated{
		Exchange:       BluefinExchange,
		Address:        pool,
		TickIndex:      tick,
		LiquidityNet:   liquidityNet,
		LiquidityGross: liquidityGross,
	}, nil
}

func u64String(v uint64) string {
	return strconv.FormatUint(v, 10)
}
