package decode

import (
	"sui-mev-indexer/internal/domain"
)

// Aftermath constant-product AMM package.
const (
	AftermathExchange = "aftermath"
	aftermathPackage  = "0xefe170ec0be4d762196bedecd7a065816576198a6527c99282a2551aaa7da38c"
)

func registerAftermath(r *Registry) {
	r.Register(Key{aftermathPackage, "events", "SwapEvent"}, decodeAftermathSwap)
	r.Register(Key{aftermathPackage, "events", "CreatedPoolEvent"}, decodeAftermathCreatePool)
}

// SwapEvent layout: pool ID, issuer address, type_in string, type_out
// string, amount_in u64, amount_out u64, balance_a u64, balance_b u64.
func decodeAftermathSwap(payload []byte) (domain.DecodedEvent, error) {
	r := newReader(payload)
	pool := r.address()
	_ = r.address() // issuer
	_ = r.str()     // type_in
	_ = r.str()     // type_out
	_ = r.u64()     // amount_in
	_ = r.u64()     // amount_out
	balanceA := r.u64()
	balanceB := r.u64()
	if err := r.finish(); err != nil {
		return nil, err
	}

	return &domain.PoolStateChanged{
		Exchange: AftermathExchange,
		Address:  pool,
		AmountA:  u64String(balanceA),
		AmountB:  u64String(balanceB),
	}, nil
}

// CreatedPoolEvent layout: pool ID, creator address, type_a string, type_b
// string, swap_fee u64 (parts-per-million).
func decodeAftermathCreatePool(payload []byte) (domain.DecodedEvent, error) {
	r := newReader(payload)
	pool := r.address()
	_ = r.address() // creator
	typeA := r.str()
	typeB := r.str()
	fee := r.i64()
	if err := r.finish(); err != nil {
		return nil, err
	}

	return &domain.PoolCreated{
		Pool: domain.Pool{
			Exchange: AftermathExchange,
			Address:  pool,
			CoinA:    typeA,
			CoinB:    typeB,
			FeeRate:  &fee,
		},
	}, nil
}
