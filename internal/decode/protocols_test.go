package decode

import (
	"testing"
	"time"

	"sui-mev-indexer/internal/domain"
)

func TestDecodeCetusSwap(t *testing.T) {
	payload := new(bcs).
		boolean(true). // atob
		addr(0x01).    // pool
		addr(0x02).    // partner
		u64(1000).     // amount_in
		u64(990).      // amount_out
		u64(0).        // ref_amount
		u64(3).        // fee_amount
		u64(500_000).  // vault_a
		u64(250_000).  // vault_b
		u128(7).       // before_sqrt_price
		u128(79228).   // after_sqrt_price
		u64(1).        // steps
		bytes()

	got, err := decodeCetusSwap(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	e, ok := got.(*domain.PoolStateChanged)
	if !ok {
		t.Fatalf("got %T, want *domain.PoolStateChanged", got)
	}
	if e.Address != testAddr(0x01) {
		t.Errorf("pool = %s", e.Address)
	}
	if e.AmountA != "500000" || e.AmountB != "250000" {
		t.Errorf("reserves = %s/%s, want 500000/250000", e.AmountA, e.AmountB)
	}
	if e.SqrtPrice != "79228" {
		t.Errorf("sqrt price = %s, want 79228", e.SqrtPrice)
	}
	if e.Liquidity != "" {
		t.Errorf("liquidity = %s, want unchanged", e.Liquidity)
	}
}

func TestDecodeCetusCreatePool(t *testing.T) {
	payload := new(bcs).
		addr(0x0a).
		str("0x2::sui::SUI").
		str("0xdba::usdc::USDC").
		u32(60).
		bytes()

	got, err := decodeCetusCreatePool(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	e := got.(*domain.PoolCreated)
	if e.Pool.CoinA != "0x2::sui::SUI" || e.Pool.CoinB != "0xdba::usdc::USDC" {
		t.Errorf("coins = %s/%s", e.Pool.CoinA, e.Pool.CoinB)
	}
	if e.Pool.TickSpacing == nil || *e.Pool.TickSpacing != 60 {
		t.Errorf("tick spacing = %v, want 60", e.Pool.TickSpacing)
	}
	if !e.Pool.Concentrated() {
		t.Error("pool with tick spacing should be concentrated")
	}
}

func TestDecodeBluefinTickUpdate(t *testing.T) {
	neg := make([]byte, 16) // -5 two's complement
	for i := range neg {
		neg[i] = 0xff
	}
	neg[0] = 0xfb

	payload := new(bcs).
		addr(0x03).
		u32(0xffffff38). // tick -200
		raw(neg).        // liquidity_net
		u128(12345).     // liquidity_gross
		bytes()

	got, err := decodeBluefinTickUpdate(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	e := got.(*domain.TickUpdated)
	if e.TickIndex != -200 {
		t.Errorf("tick = %d, want -200", e.TickIndex)
	}
	if e.LiquidityNet != "-5" {
		t.Errorf("liquidity net = %s, want -5", e.LiquidityNet)
	}
	if e.LiquidityGross != "12345" {
		t.Errorf("liquidity gross = %s, want 12345", e.LiquidityGross)
	}
}

func TestDecodeTurbosSwap(t *testing.T) {
	payload := new(bcs).
		addr(0x04).        // pool
		addr(0x05).        // recipient
		u64(1000).         // amount_a
		u64(995).          // amount_b
		u128(888_777).     // liquidity
		u32(0xffffff9c).   // tick_current -100
		u32(0xffffff38).   // tick_pre -200
		u128(79228).       // sqrt_price
		u64(2).            // protocol_fee
		u64(3).            // fee_amount
		boolean(true).     // a_to_b
		boolean(false).    // is_exact_in
		bytes()

	got, err := decodeTurbosSwap(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	e := got.(*domain.PoolStateChanged)
	if e.Address != testAddr(0x04) {
		t.Errorf("pool = %s", e.Address)
	}
	if e.Liquidity != "888777" || e.SqrtPrice != "79228" {
		t.Errorf("liquidity/sqrt price = %s/%s, want 888777/79228", e.Liquidity, e.SqrtPrice)
	}
	if e.TickIndex == nil || *e.TickIndex != -100 {
		t.Errorf("tick = %v, want -100", e.TickIndex)
	}
	if e.AmountA != "" || e.AmountB != "" {
		t.Errorf("reserves = %s/%s, want unchanged (no vault totals in event)", e.AmountA, e.AmountB)
	}
}

func TestDecodeTurbosCreatePool(t *testing.T) {
	payload := new(bcs).
		addr(0x0b).
		str("0x2::sui::SUI").
		str("0xdba::usdc::USDC").
		u32(3000). // fee ppm
		u32(60).   // tick_spacing
		u128(79228).
		bytes()

	got, err := decodeTurbosCreatePool(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	e := got.(*domain.PoolCreated)
	if e.Pool.Exchange != TurbosExchange || e.Pool.Address != testAddr(0x0b) {
		t.Errorf("pool = %s/%s", e.Pool.Exchange, e.Pool.Address)
	}
	if e.Pool.FeeRate == nil || *e.Pool.FeeRate != 3000 {
		t.Errorf("fee rate = %v, want 3000", e.Pool.FeeRate)
	}
	if e.Pool.TickSpacing == nil || *e.Pool.TickSpacing != 60 {
		t.Errorf("tick spacing = %v, want 60", e.Pool.TickSpacing)
	}
	if e.Pool.SqrtPrice == nil || *e.Pool.SqrtPrice != "79228" {
		t.Errorf("sqrt price = %v, want 79228", e.Pool.SqrtPrice)
	}
	if !e.Pool.Concentrated() {
		t.Error("pool with tick spacing should be concentrated")
	}
}

func TestDecodeAftermathSwap(t *testing.T) {
	payload := new(bcs).
		addr(0x06).
		addr(0x07). // issuer
		str("0x2::sui::SUI").
		str("0xdba::usdc::USDC").
		u64(500).     // amount_in
		u64(490).     // amount_out
		u64(900_000). // balance_a
		u64(450_000). // balance_b
		bytes()

	got, err := decodeAftermathSwap(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	e := got.(*domain.PoolStateChanged)
	if e.Exchange != AftermathExchange || e.Address != testAddr(0x06) {
		t.Errorf("pool = %s/%s", e.Exchange, e.Address)
	}
	if e.AmountA != "900000" || e.AmountB != "450000" {
		t.Errorf("reserves = %s/%s, want 900000/450000", e.AmountA, e.AmountB)
	}
	if e.SqrtPrice != "" || e.TickIndex != nil {
		t.Error("constant-product swap set concentrated fields")
	}
}

func TestDecodeAftermathCreatePool(t *testing.T) {
	payload := new(bcs).
		addr(0x0c).
		addr(0x0d). // creator
		str("0x2::sui::SUI").
		str("0xdba::usdc::USDC").
		u64(1000). // swap_fee ppm
		bytes()

	got, err := decodeAftermathCreatePool(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	e := got.(*domain.PoolCreated)
	if e.Pool.CoinA != "0x2::sui::SUI" || e.Pool.CoinB != "0xdba::usdc::USDC" {
		t.Errorf("coins = %s/%s", e.Pool.CoinA, e.Pool.CoinB)
	}
	if e.Pool.FeeRate == nil || *e.Pool.FeeRate != 1000 {
		t.Errorf("fee rate = %v, want 1000", e.Pool.FeeRate)
	}
	if e.Pool.Concentrated() {
		t.Error("constant-product pool reported as concentrated")
	}
}

func TestDecodeNaviDeposit(t *testing.T) {
	payload := new(bcs).
		u8(0). // SUI reserve
		addr(0x11).
		u64(42_000).
		bytes()

	got, err := naviPositionDecoder(defaultNaviAssets(), domain.KindPositionDeposit)(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	e := got.(*domain.PositionDeposit)
	if e.Platform != NaviPlatform || e.CoinType != "0x2::sui::SUI" {
		t.Errorf("platform/coin = %s/%s", e.Platform, e.CoinType)
	}
	if e.Borrower != testAddr(0x11) || e.Amount != "42000" {
		t.Errorf("borrower/amount = %s/%s", e.Borrower, e.Amount)
	}
	if e.EntityID() != "" {
		t.Errorf("position delta EntityID = %q, want empty", e.EntityID())
	}
}

func TestDecodeNaviUnknownReserve(t *testing.T) {
	payload := new(bcs).u8(250).addr(0x11).u64(1).bytes()
	_, err := naviPositionDecoder(defaultNaviAssets(), domain.KindPositionBorrow)(payload)
	if err == nil {
		t.Fatal("unknown reserve index decoded without error")
	}
}

func TestDecodeSuilendBorrowIncludesFee(t *testing.T) {
	payload := new(bcs).
		addr(0x01). // lending_market_id
		str("0x2::sui::SUI").
		addr(0x02). // reserve_id
		addr(0x33). // obligation_id
		u64(10_000).
		u64(30). // origination fee
		bytes()

	got, err := suilendBorrowDecoder(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	e := got.(*domain.PositionBorrow)
	if e.Amount != "10030" {
		t.Errorf("amount = %s, want 10030 (principal + fee)", e.Amount)
	}
	if e.ObligationID != testAddr(0x33) || e.Borrower != "" {
		t.Errorf("obligation/borrower = %s/%s, want obligation only", e.ObligationID, e.Borrower)
	}
}

func TestDecodeScallopLiquidate(t *testing.T) {
	payload := new(bcs).
		addr(0x44). // liquidator
		addr(0x33). // obligation
		str("0xdba::usdc::USDC").
		str("0x2::sui::SUI").
		u64(900). // repay_on_behalf
		u64(10).  // repay_revenue
		u64(500). // liq_amount
		u64(1_700_000_000).
		bytes()

	got, err := decodeScallopLiquidateV2(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	e := got.(*domain.LiquidationOccurred)
	if e.DebtCoin != "0xdba::usdc::USDC" || e.DebtAmount != "900" {
		t.Errorf("debt = %s %s", e.DebtAmount, e.DebtCoin)
	}
	if e.CollateralCoin != "0x2::sui::SUI" || e.CollateralAmount != "500" {
		t.Errorf("collateral = %s %s", e.CollateralAmount, e.CollateralCoin)
	}
	if e.Liquidator != testAddr(0x44) {
		t.Errorf("liquidator = %s", e.Liquidator)
	}
}

func TestDecodePythPriceUpdate(t *testing.T) {
	feed := make([]byte, 32)
	feed[0] = 0xca
	feed[31] = 0xfe

	payload := new(bcs).
		raw(feed).
		u64(312_450_000).         // price
		u64(120_000).             // conf
		u32(0xfffffff8).          // expo -8
		u64(311_900_000).         // ema
		u64(100_000).             // ema_conf
		u64(1_755_900_000).       // publish_time
		bytes()

	got, err := decodePythPriceUpdate(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	e := got.(*domain.PriceUpdated)
	if e.FeedID[:2] != "ca" || e.FeedID[62:] != "fe" {
		t.Errorf("feed id = %s", e.FeedID)
	}
	if e.Source != domain.OraclePyth {
		t.Errorf("source = %s", e.Source)
	}
	if e.Price != "312450000" || e.EmaPrice != "311900000" {
		t.Errorf("price/ema = %s/%s", e.Price, e.EmaPrice)
	}
	if e.Decimals != 8 {
		t.Errorf("decimals = %d, want 8", e.Decimals)
	}
	if e.CoinType != "" {
		t.Errorf("coin type = %q, want unresolved", e.CoinType)
	}
	if want := time.Unix(1_755_900_000, 0).UTC(); !e.ObservedAt.Equal(want) {
		t.Errorf("observed at = %s, want %s", e.ObservedAt, want)
	}
}
