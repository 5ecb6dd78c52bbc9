package decode

import (
	"sui-mev-indexer/internal/domain"
)

// Cetus CLMM package and event modules.
const (
	CetusExchange = "cetus"
	cetusPackage  = "0x1eabed72c53feb3805120a081dc15963c204dc8d091542592abaf7a35689b2fb"
)

func registerCetus(r *Registry) {
	r.Register(Key{cetusPackage, "pool", "SwapEvent"}, decodeCetusSwap)
	r.Register(Key{cetusPackage, "pool", "AddLiquidityEvent"}, decodeCetusLiquidity)
	r.Register(Key{cetusPackage, "pool", "RemoveLiquidityEvent"}, decodeCetusLiquidity)
	r.Register(Key{cetusPackage, "factory", "CreatePoolEvent"}, decodeCetusCreatePool)
}

// SwapEvent layout: atob bool, pool ID, partner ID, amount_in u64,
// amount_out u64, ref_amount u64, fee_amount u64, vault_a_amount u64,
// vault_b_amount u64, before_sqrt_price u128, after_sqrt_price u128,
// steps u64.
func decodeCetusSwap(payload []byte) (domain.DecodedEvent, error) {
	r := newReader(payload)
	_ = r.bool() // atob
	pool := r.address()
	_ = r.address() // partner
	_ = r.u64()     // amount_in
	_ = r.u64()     // amount_out
	_ = r.u64()     // ref_amount
	_ = r.u64()     // fee_amount
	vaultA := r.u64()
	vaultB := r.u64()
	_ = r.u128() // before_sqrt_price
	afterSqrtPrice := r.u128()
	_ = r.u64() // steps
	if err := r.finish(); err != nil {
		return nil, err
	}

	return &domain.PoolStateChanged{
		Exchange:  CetusExchange,
		Address:   pool,
		AmountA:   u64String(vaultA),
		AmountB:   u64String(vaultB),
		SqrtPrice: afterSqrtPrice,
	}, nil
}

// Add/RemoveLiquidityEvent layout: pool ID, position ID, tick_lower u32,
// tick_upper u32, liquidity u128, after_liquidity u128, amount_a u64,
// amount_b u64. Only after_liquidity feeds the pool row; reserves are
// refreshed by the next SwapEvent.
func decodeCetusLiquidity(payload []byte) (domain.DecodedEvent, error) {
	r := newReader(payload)
	pool := r.address()
	_ = r.address() // position
	_ = r.u32()     // tick_lower bits
	_ = r.u32()     // tick_upper bits
	_ = r.u128()    // delta liquidity
	afterLiquidity := r.u128()
	_ = r.u64() // amount_a
	_ = r.u64() // amount_b
	if err := r.finish(); err != nil {
		return nil, err
	}

	return &domain.PoolStateChanged{
		Exchange:  CetusExchange,
		Address:   pool,
		Liquidity: afterLiquidity,
	}, nil
}

// CreatePoolEvent layout: pool ID, coin_type_a string, coin_type_b string,
// tick_spacing u32.
func decodeCetusCreatePool(payload []byte) (domain.DecodedEvent, error) {
	r := newReader(payload)
	pool := r.address()
	coinA := r.str()
	coinB := r.str()
	tickSpacing := r.i32()
	if err := r.finish(); err != nil {
		return nil, err
	}

	return &domain.PoolCreated{
		Pool: domain.Pool{
			Exchange:    CetusExchange,
			Address:     pool,
			CoinA:       coinA,
			CoinB:       coinB,
			TickSpacing: &tickSpacing,
		},
	}, nil
}
