package decode

import (
	"fmt"

	"sui-mev-indexer/internal/domain"
)

// Navi lending packages. Position events and liquidations come from
// different package upgrades.
const (
	NaviPlatform       = "navi"
	naviLendingPackage = "0xd899cf7d2b5db716bd2cf55599fb0d5ee38a3061e7b6bb6eebf73fa5bc4c81ca"
	naviLiquidationPkg = "0xc6374c7da60746002bfee93014aeb607e023b2d6b25c9e55a152b826dbc8c1ce"
)

// NaviAssets maps Navi reserve indexes to coin types. Navi events carry
// only the u8 asset index; the mapping mirrors the protocol's reserve
// registry and can be extended without code changes elsewhere.
type NaviAssets map[uint8]string

func defaultNaviAssets() NaviAssets {
	return NaviAssets{
		0: "0x2::sui::SUI",
		1: "0x5d4b302506645c37ff133b98c4b50a5ae14841659738d6d733d59d0d217a93bf::coin::COIN",
		2: "0xc060006111016b8a020ad5b33834984a437aaa7d3c74c18e09a95d48aceab08c::coin::COIN",
		3: "0xaf8cd5edc19c4512f4259f0bee101a40d41ebed738ade5874359610ef8eeced5::coin::CERT",
		4: "0x549e8b69270defbfafd4f94e17ec44cdbdd99820b33bda2278dea3b9a32d3f55::cert::CERT",
		5: "0xdba34672e30cb065b1f93e3ab55318768fd6fef66c15942c9f7cb846e2f900e7::usdc::USDC",
	}
}

func registerNavi(r *Registry, assets NaviAssets) {
	r.Register(Key{naviLendingPackage, "lending", "DepositEvent"}, naviPositionDecoder(assets, domain.KindPositionDeposit))
	r.Register(Key{naviLendingPackage, "lending", "BorrowEvent"}, naviPositionDecoder(assets, domain.KindPositionBorrow))
	r.Register(Key{naviLendingPackage, "lending", "RepayEvent"}, naviPositionDecoder(assets, domain.KindPositionRepay))
	r.Register(Key{naviLendingPackage, "lending", "WithdrawEvent"}, naviWithdrawDecoder(assets))
	r.Register(Key{naviLiquidationPkg, "lending", "LiquidationEvent"}, naviLiquidationDecoder(assets))
}

// Deposit/Borrow/Repay layout: reserve u8, sender address, amount u64.
func naviPositionDecoder(assets NaviAssets, kind domain.EventKind) Func {
	return func(payload []byte) (domain.DecodedEvent, error) {
		r := newReader(payload)
		reserve := r.u8()
		sender := r.address()
		amount := r.u64()
		if err := r.finish(); err != nil {
			return nil, err
		}

		coinType, ok := assets[reserve]
		if !ok {
			return nil, fmt.Errorf("unknown navi reserve index %d", reserve)
		}

		delta := domain.PositionDelta{
			Platform: NaviPlatform,
			Borrower: sender,
			CoinType: coinType,
			Amount:   u64String(amount),
		}

		switch kind {
		case domain.KindPositionDeposit:
			return &domain.PositionDeposit{PositionDelta: delta}, nil
		case domain.KindPositionBorrow:
			return &domain.PositionBorrow{PositionDelta: delta}, nil
		default:
			return &domain.PositionRepay{PositionDelta: delta}, nil
		}
	}
}

// WithdrawEvent layout: reserve u8, sender address, to address, amount u64.
func naviWithdrawDecoder(assets NaviAssets) Func {
	return func(payload []byte) (domain.DecodedEvent, error) {
		r := newReader(payload)
		reserve := r.u8()
		sender := r.address()
		_ = r.address() // to
		amount := r.u64()
		if err := r.finish(); err != nil {
			return nil, err
		}

		coinType, ok := assets[reserve]
		if !ok {
			return nil, fmt.Errorf("unknown navi reserve index %d", reserve)
		}

		return &domain.PositionWithdraw{PositionDelta: domain.PositionDelta{
			Platform: NaviPlatform,
			Borrower: sender,
			CoinType: coinType,
			Amount:   u64String(amount),
		}}, nil
	}
}

// LiquidationEvent layout: sender (liquidator) address, user address,
// collateral_asset u8, collateral_amount u64, debt_asset u8,
// debt_amount u64.
func naviLiquidationDecoder(assets NaviAssets) Func {
	return func(payload []byte) (domain.DecodedEvent, error) {
		r := newReader(payload)
		liquidator := r.address()
		user := r.address()
		collateralAsset := r.u8()
		collateralAmount := r.u64()
		debtAsset := r.u8()
		debtAmount := r.u64()
		if err := r.finish(); err != nil {
			return nil, err
		}

		collateralCoin, ok := assets[collateralAsset]
		if !ok {
			return nil, fmt.Errorf("unknown navi reserve index %d", collateralAsset)
		}
		debtCoin, ok := assets[debtAsset]
		if !ok {
			return nil, fmt.Errorf("unknown navi reserve index %d", debtAsset)
		}

		return &domain.LiquidationOccurred{
			Platform:         NaviPlatform,
			Borrower:         user,
			Liquidator:       liquidator,
			DebtCoin:         debtCoin,
			DebtAmount:       u64String(debtAmount),
			CollateralCoin:   collateralCoin,
			CollateralAmount: u64String(collateralAmount),
		}, nil
	}
}
