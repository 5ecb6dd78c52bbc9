package decode

import (
	"sui-mev-indexer/internal/domain"
)

// Bluemove constant-product AMM package.
const (
	BluemoveExchange = "bluemove"
	bluemovePackage  = "0xb24b6789e088b876afabca733bed2299fbc9e2d6369be4d1acfa17d8145454d9"
)

func registerBluemove(r *Registry) {
	r.Register(Key{bluemovePackage, "swap", "Swap_Event"}, decodeBluemoveSwap)
	r.Register(Key{bluemovePackage, "swap", "Created_Pool_Event"}, decodeBluemoveCreatePool)
}

// Swap_Event layout: pool ID, user address, coin_in string, coin_out
// string, amount_in u64, amount_out u64, reserve_x u64, reserve_y u64.
func decodeBluemoveSwap(payload []byte) (domain.DecodedEvent, error) {
	r := newReader(payload)
	pool := r.address()
	_ = r.address() // user
	_ = r.str()     // coin_in
	_ = r.str()     // coin_out
	_ = r.u64()     // amount_in
	_ = r.u64()     // amount_out
	reserveX := r.u64()
	reserveY := r.u64()
	if err := r.finish(); err != nil {
		return nil, err
	}

	return &domain.PoolStateChanged{
		Exchange: BluemoveExchange,
		Address:  pool,
		AmountA:  u64String(reserveX),
		AmountB:  u64String(reserveY),
	}, nil
}

// Created_Pool_Event layout: pool ID, creator address, token_x string,
// token_y string, fee_amount u64 (parts-per-million).
func decodeBluemoveCreatePool(payload []byte) (domain.DecodedEvent, error) {
	r := newReader(payload)
	pool := r.address()
	_ = r.address() // creator
	tokenX := r.str()
	tokenY := r.str()
	fee := r.i64()
	if err := r.finish(); err != nil {
		return nil, err
	}

	return &domain.PoolCreated{
		Pool: domain.Pool{
			Exchange: BluemoveExchange,
			Address:  pool,
			CoinA:    tokenX,
			CoinB:    tokenY,
			FeeRate:  &fee,
		},
	}, nil
}
