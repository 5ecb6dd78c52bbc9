package decode

import (
	"strconv"
	"time"

	"sui-mev-indexer/internal/domain"
)

// Pyth oracle package. Price feed updates are matched to coin types at
// commit time through the feed-id mapping in the coin store, so CoinType
// is left empty here.
const pythPackage = "0x8d97f1cd6ac663735be08d1d2b6d02a159e711586461306ce60a2b7a6a565a9e"

func registerPyth(r *Registry) {
	r.Register(Key{pythPackage, "event", "PriceFeedUpdateEvent"}, decodePythPriceUpdate)
}

// PriceFeedUpdateEvent layout: price_identifier bytes32, price i64,
// conf u64, expo i32, ema_price i64, ema_conf u64, publish_time u64
// (unix seconds). The on-chain price is price x 10^expo; expo is
// negative for every feed this indexer follows, so Decimals is -expo.
func decodePythPriceUpdate(payload []byte) (domain.DecodedEvent, error) {
	r := newReader(payload)
	feedID := r.bytes32()
	price := r.i64()
	_ = r.u64() // conf
	expo := r.i32()
	ema := r.i64()
	_ = r.u64() // ema_conf
	publishTime := r.u64()
	if err := r.finish(); err != nil {
		return nil, err
	}

	return &domain.PriceUpdated{
		FeedID:     feedID,
		Source:     domain.OraclePyth,
		Price:      strconv.FormatInt(price, 10),
		EmaPrice:   strconv.FormatInt(ema, 10),
		Decimals:   -expo,
		ObservedAt: time.Unix(int64(publishTime), 0).UTC(),
	}, nil
}
