package decode

import (
	"sui-mev-indexer/internal/domain"
)

// Scallop lending packages. Borrow and liquidation events moved across
// package upgrades; each upgrade keeps its own dispatch key.
const (
	ScallopPlatform  = "scallop"
	scallopPackage   = "0xefe8b36d5b2e43728cc09341e940bb8a2c7300dbd4fff12a7cffc7b1bdc67f79"
	scallopBorrowPkg = "0x83bbe0b3985c5e3857803e2678899b03f3c4a31be75006ab03faf268c014ce41"
)

func registerScallop(r *Registry) {
	r.Register(Key{scallopPackage, "deposit_collateral", "CollateralDepositEvent"}, decodeScallopDeposit)
	r.Register(Key{scallopPackage, "withdraw_collateral", "CollateralWithdrawEvent"}, decodeScallopWithdraw)
	r.Register(Key{scallopBorrowPkg, "borrow", "BorrowEventV3"}, decodeScallopBorrowV3)
	r.Register(Key{scallopPackage, "repay", "RepayEvent"}, decodeScallopRepay)
	r.Register(Key{scallopBorrowPkg, "liquidate", "LiquidateEventV2"}, decodeScallopLiquidateV2)
}

// CollateralDepositEvent layout: provider address, obligation address,
// deposit_asset string, deposit_amount u64.
func decodeScallopDeposit(payload []byte) (domain.DecodedEvent, error) {
	r := newReader(payload)
	provider := r.address()
	obligation := r.address()
	asset := r.str()
	amount := r.u64()
	if err := r.finish(); err != nil {
		return nil, err
	}

	return &domain.PositionDeposit{PositionDelta: domain.PositionDelta{
		Platform:     ScallopPlatform,
		Borrower:     provider,
		ObligationID: obligation,
		CoinType:     asset,
		Amount:       u64String(amount),
	}}, nil
}

// CollateralWithdrawEvent layout: taker address, obligation address,
// withdraw_asset string, withdraw_amount u64.
func decodeScallopWithdraw(payload []byte) (domain.DecodedEvent, error) {
	r := newReader(payload)
	taker := r.address()
	obligation := r.address()
	asset := r.str()
	amount := r.u64()
	if err := r.finish(); err != nil {
		return nil, err
	}

	return &domain.PositionWithdraw{PositionDelta: domain.PositionDelta{
		Platform:     ScallopPlatform,
		Borrower:     taker,
		ObligationID: obligation,
		CoinType:     asset,
		Amount:       u64String(amount),
	}}, nil
}

// BorrowEventV3 layout: borrower address, obligation address, asset
// string, amount u64, borrow_fee u64, borrow_fee_discount u64,
// borrow_referral_fee u64, time u64. Fees are charged on top of the
// borrowed amount and count toward the debt.
func decodeScallopBorrowV3(payload []byte) (domain.DecodedEvent, error) {
	r := newReader(payload)
	borrower := r.address()
	obligation := r.address()
	asset := r.str()
	amount := r.u64()
	fee := r.u64()
	discount := r.u64()
	_ = r.u64() // borrow_referral_fee, already included in borrow_fee
	_ = r.u64() // time
	if err := r.finish(); err != nil {
		return nil, err
	}

	return &domain.PositionBorrow{PositionDelta: domain.PositionDelta{
		Platform:     ScallopPlatform,
		Borrower:     borrower,
		ObligationID: obligation,
		CoinType:     asset,
		Amount:       u64String(amount + fee - discount),
	}}, nil
}

// RepayEvent layout: repayer address, obligation address, asset string,
// amount u64, time u64.
func decodeScallopRepay(payload []byte) (domain.DecodedEvent, error) {
	r := newReader(payload)
	repayer := r.address()
	obligation := r.address()
	asset := r.str()
	amount := r.u64()
	_ = r.u64() // time
	if err := r.finish(); err != nil {
		return nil, err
	}

	return &domain.PositionRepay{PositionDelta: domain.PositionDelta{
		Platform:     ScallopPlatform,
		Borrower:     repayer,
		ObligationID: obligation,
		CoinType:     asset,
		Amount:       u64String(amount),
	}}, nil
}

// LiquidateEventV2 layout: liquidator address, obligation address,
// debt_type string, collateral_type string, repay_on_behalf u64,
// repay_revenue u64, liq_amount u64, time u64.
func decodeScallopLiquidateV2(payload []byte) (domain.DecodedEvent, error) {
	r := newReader(payload)
	liquidator := r.address()
	obligation := r.address()
	debtType := r.str()
	collateralType := r.str()
	repaid := r.u64()
	_ = r.u64() // repay_revenue
	liqAmount := r.u64()
	_ = r.u64() // time
	if err := r.finish(); err != nil {
		return nil, err
	}

	return &domain.LiquidationOccurred{
		Platform:         ScallopPlatform,
		ObligationID:     obligation,
		Liquidator:       liquidator,
		DebtCoin:         debtType,
		DebtAmount:       u64String(repaid),
		CollateralCoin:   collateralType,
		CollateralAmount: u64String(liqAmount),
	}, nil
}
