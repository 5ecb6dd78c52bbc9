package decode

import (
	"sui-mev-indexer/internal/domain"
)

// Suilend lending market package. Events identify positions by obligation
// ID; the wallet owning the obligation is resolved at commit time.
const (
	SuilendPlatform = "suilend"
	suilendPackage  = "0xf95b06141ed4a174f239417323bde3f209b972f5930d8521ea38a52aff3a6ddf"
)

func registerSuilend(r *Registry) {
	r.Register(Key{suilendPackage, "lending_market", "DepositEvent"}, suilendPositionDecoder(domain.KindPositionDeposit))
	r.Register(Key{suilendPackage, "lending_market", "BorrowEvent"}, suilendBorrowDecoder)
	r.Register(Key{suilendPackage, "lending_market", "RepayEvent"}, suilendPositionDecoder(domain.KindPositionRepay))
	r.Register(Key{suilendPackage, "lending_market", "WithdrawEvent"}, suilendPositionDecoder(domain.KindPositionWithdraw))
	r.Register(Key{suilendPackage, "lending_market", "LiquidateEvent"}, decodeSuilendLiquidate)
}

// Deposit/Repay/Withdraw layout: lending_market_id address, coin_type
// string, reserve_id address, obligation_id address, amount u64.
func suilendPositionDecoder(kind domain.EventKind) Func {
	return func(payload []byte) (domain.DecodedEvent, error) {
		r := newReader(payload)
		_ = r.address() // lending_market_id
		coinType := r.str()
		_ = r.address() // reserve_id
		obligation := r.address()
		amount := r.u64()
		if err := r.finish(); err != nil {
			return nil, err
		}

		delta := domain.PositionDelta{
			Platform:     SuilendPlatform,
			ObligationID: obligation,
			CoinType:     coinType,
			Amount:       u64String(amount),
		}

		switch kind {
		case domain.KindPositionDeposit:
			return &domain.PositionDeposit{PositionDelta: delta}, nil
		case domain.KindPositionRepay:
			return &domain.PositionRepay{PositionDelta: delta}, nil
		default:
			return &domain.PositionWithdraw{PositionDelta: delta}, nil
		}
	}
}

// BorrowEvent layout adds origination_fee_amount u64 after the borrowed
// amount. The fee is part of the debt, so both feed the delta.
func suilendBorrowDecoder(payload []byte) (domain.DecodedEvent, error) {
	r := newReader(payload)
	_ = r.address() // lending_market_id
	coinType := r.str()
	_ = r.address() // reserve_id
	obligation := r.address()
	amount := r.u64()
	fee := r.u64()
	if err := r.finish(); err != nil {
		return nil, err
	}

	return &domain.PositionBorrow{PositionDelta: domain.PositionDelta{
		Platform:     SuilendPlatform,
		ObligationID: obligation,
		CoinType:     coinType,
		Amount:       u64String(amount + fee),
	}}, nil
}

// LiquidateEvent layout: lending_market_id address, repay_reserve_id
// address, withdraw_reserve_id address, obligation_id address,
// repay_coin_type string, withdraw_coin_type string, repay_amount u64,
// withdraw_amount u64, protocol_fee_amount u64, liquidator_bonus_amount
// u64.
func decodeSuilendLiquidate(payload []byte) (domain.DecodedEvent, error) {
	r := newReader(payload)
	_ = r.address() // lending_market_id
	_ = r.address() // repay_reserve_id
	_ = r.address() // withdraw_reserve_id
	obligation := r.address()
	repayCoin := r.str()
	withdrawCoin := r.str()
	repayAmount := r.u64()
	withdrawAmount := r.u64()
	_ = r.u64() // protocol_fee_amount
	_ = r.u64() // liquidator_bonus_amount
	if err := r.finish(); err != nil {
		return nil, err
	}

	return &domain.LiquidationOccurred{
		Platform:         SuilendPlatform,
		ObligationID:     obligation,
		DebtCoin:         repayCoin,
		DebtAmount:       u64String(repayAmount),
		CollateralCoin:   withdrawCoin,
		CollateralAmount: u64String(withdrawAmount),
	}, nil
}
