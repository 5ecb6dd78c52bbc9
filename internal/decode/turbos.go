package decode

import (
	"sui-mev-indexer/internal/domain"
)

// Turbos CLMM package and event modules.
const (
	TurbosExchange = "turbos"
	turbosPackage  = "0x91bfbc386a41afcfd9b2533058d7e915a1d3829089cc268ff4333d54d6339ca1"
)

func registerTurbos(r *Registry) {
	r.Register(Key{turbosPackage, "pool", "SwapEvent"}, decodeTurbosSwap)
	r.Register(Key{turbosPackage, "pool_factory", "PoolCreatedEvent"}, decodeTurbosCreatePool)
}

// SwapEvent layout: pool ID, recipient address, amount_a u64, amount_b u64,
// liquidity u128, tick_current_index u32, tick_pre_index u32, sqrt_price
// u128, protocol_fee u64, fee_amount u64, a_to_b bool, is_exact_in bool.
// Turbos reports no vault totals, so only liquidity, price and tick feed
// the pool row.
func decodeTurbosSwap(payload []byte) (domain.DecodedEvent, error) {
	r := newReader(payload)
	pool := r.address()
	_ = r.address() // recipient
	_ = r.u64()     // amount_a
	_ = r.u64()     // amount_b
	liquidity := r.u128()
	tickCurrent := r.i32()
	_ = r.u32() // tick_pre_index bits
	sqrtPrice := r.u128()
	_ = r.u64()  // protocol_fee
	_ = r.u64()  // fee_amount
	_ = r.bool() // a_to_b
	_ = r.bool() // is_exact_in
	if err := r.finish(); err != nil {
		return nil, err
	}

	return &domain.PoolStateChanged{
		Exchange:  TurbosExchange,
		Address:   pool,
		Liquidity: liquidity,
		SqrtPrice: sqrtPrice,
		TickIndex: &tickCurrent,
	}, nil
}

// PoolCreatedEvent layout: pool ID, coin_type_a string, coin_type_b string,
// fee u32 (parts-per-million), tick_spacing u32, sqrt_price u128.
func decodeTurbosCreatePool(payload []byte) (domain.DecodedEvent, error) {
	r := newReader(payload)
	pool := r.address()
	coinA := r.str()
	coinB := r.str()
	fee := int64(r.u32())
	tickSpacing := r.i32()
	sqrtPrice := r.u128()
	if err := r.finish(); err != nil {
		return nil, err
	}

	return &domain.PoolCreated{
		Pool: domain.Pool{
			Exchange:    TurbosExchange,
			Address:     pool,
			CoinA:       coinA,
			CoinB:       coinB,
			FeeRate:     &fee,
			TickSpacing: &tickSpacing,
			SqrtPrice:   &sqrtPrice,
		},
	}, nil
}
