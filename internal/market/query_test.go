package market

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedBids places n bids on the token at prices 10, 20, 30, ... from
// distinct bidders.
func seedBids(t *testing.T, f *fixture, tokenID string, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		bidder := fmt.Sprintf("bidder-%02d", i)
		price := fmt.Sprintf("%d", i*10)
		f.bank.Mint(bidder, testDenom, dec(price))
		f.mustSetBid(bidder, tokenID, price)
	}
}

func prices(bids []Bid) []string {
	out := make([]string, len(bids))
	for i, b := range bids {
		out[i] = b.Price.Amount.String()
	}
	return out
}

func TestBidsByTokenPrice_Ordering(t *testing.T) {
	f := newFixture(t)
	seedBids(t, f, "1", 5)

	asc, err := f.engine.BidsByTokenPrice(context.Background(), "1", QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"10", "20", "30", "40", "50"}, prices(asc))

	desc, err := f.engine.BidsByTokenPrice(context.Background(), "1", QueryOptions{Descending: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"50", "40", "30", "20", "10"}, prices(desc))
}

func TestBidsByTokenPrice_FractionalPricesSortNumerically(t *testing.T) {
	f := newFixture(t)
	for _, p := range []struct{ bidder, price string }{
		{"a", "100.5"}, {"b", "100.25"}, {"c", "99.999"}, {"d", "1000"},
	} {
		f.bank.Mint(p.bidder, testDenom, dec(p.price))
		f.mustSetBid(p.bidder, "1", p.price)
	}

	asc, err := f.engine.BidsByTokenPrice(context.Background(), "1", QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"99.999", "100.25", "100.5", "1000"}, prices(asc))
}

func TestBidsByTokenPrice_CursorPagination(t *testing.T) {
	f := newFixture(t)
	seedBids(t, f, "1", 6)

	page1, err := f.engine.BidsByTokenPrice(context.Background(), "1", QueryOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.Equal(t, []string{"10", "20"}, prices(page1))

	last := page1[len(page1)-1]
	page2, err := f.engine.BidsByTokenPrice(context.Background(), "1", QueryOptions{
		Limit:      2,
		StartAfter: &BidCursor{Price: last.Price.Amount, Bidder: last.Bidder},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"30", "40"}, prices(page2))

	// Descending cursor walks the other way.
	down, err := f.engine.BidsByTokenPrice(context.Background(), "1", QueryOptions{
		Descending: true,
		Limit:      2,
		StartAfter: &BidCursor{Price: dec("50"), Bidder: "bidder-05"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"40", "30"}, prices(down))
}

func TestBidsByTokenPrice_SamePriceOrdersByBidder(t *testing.T) {
	f := newFixture(t)
	for _, bidder := range []string{"carol", "alice", "bob"} {
		f.bank.Mint(bidder, testDenom, dec("100"))
		f.mustSetBid(bidder, "1", "100")
	}

	asc, err := f.engine.BidsByTokenPrice(context.Background(), "1", QueryOptions{})
	require.NoError(t, err)
	require.Len(t, asc, 3)
	assert.Equal(t, "alice", asc[0].Bidder)
	assert.Equal(t, "bob", asc[1].Bidder)
	assert.Equal(t, "carol", asc[2].Bidder)

	// Cursor ties break on bidder too.
	page, err := f.engine.BidsByTokenPrice(context.Background(), "1", QueryOptions{
		StartAfter: &BidCursor{Price: dec("100"), Bidder: "alice"},
	})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, []string{"bob", "carol"}, []string{page[0].Bidder, page[1].Bidder})
}

func TestBidsByTokenPrice_ExpiryFilter(t *testing.T) {
	f := newFixture(t)
	f.bank.Mint("early", testDenom, dec("100"))
	f.bank.Mint("late", testDenom, dec("200"))

	p1 := coin("100")
	_, err := f.exec("early", &p1, SetBid{TokenID: "1", Price: p1, ExpiresAt: f.expires(time.Hour)})
	require.NoError(t, err)
	p2 := coin("200")
	_, err = f.exec("late", &p2, SetBid{TokenID: "1", Price: p2, ExpiresAt: f.expires(48 * time.Hour)})
	require.NoError(t, err)

	at := testNow.Add(2 * time.Hour)
	live, err := f.engine.BidsByTokenPrice(context.Background(), "1", QueryOptions{FilterExpiry: &at})
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, "late", live[0].Bidder)

	// Without the filter both records come back.
	all, err := f.engine.BidsByTokenPrice(context.Background(), "1", QueryOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestBidsByTokenPrice_LimitDefaultsAndClamp(t *testing.T) {
	f := newFixture(t)
	seedBids(t, f, "1", 30)

	page, err := f.engine.BidsByTokenPrice(context.Background(), "1", QueryOptions{})
	require.NoError(t, err)
	assert.Len(t, page, QueryDefaultLimit)

	page, err = f.engine.BidsByTokenPrice(context.Background(), "1", QueryOptions{Limit: 1000})
	require.NoError(t, err)
	assert.Len(t, page, 30)
}

func TestBidsByTokenPrice_ScopedToToken(t *testing.T) {
	f := newFixture(t)
	f.bank.Mint("bob", testDenom, dec("300"))
	f.mustSetBid("bob", "1", "100")
	f.mustSetBid("bob", "2", "200")

	bids, err := f.engine.BidsByTokenPrice(context.Background(), "1", QueryOptions{})
	require.NoError(t, err)
	require.Len(t, bids, 1)
	assert.Equal(t, "1", bids[0].TokenID)
}
