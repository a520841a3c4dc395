package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Aidin1998/nftmarket/internal/events"
	"github.com/Aidin1998/nftmarket/internal/ledger"
	"github.com/Aidin1998/nftmarket/internal/market"
	"github.com/Aidin1998/nftmarket/internal/storage"
	"github.com/Aidin1998/nftmarket/internal/whitelist"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type testServer struct {
	server *Server
	bank   *ledger.MemoryBank
	tokens *ledger.MemoryTokenLedger
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := storage.NewMemory()
	bank := ledger.NewMemoryBank()
	tokens := ledger.NewMemoryTokenLedger()
	logger := zap.NewNop()

	engine := market.NewEngine(store, tokens, bank, "marketplace", logger)
	params := market.Params{
		Collection: "passage-collection",
		Denom:      "uust",
		Collector:  "collector",
		FeePercent: decimal.NewFromInt(2),
		AskExpiry:  market.ExpiryRange{Min: time.Minute, Max: 90 * 24 * time.Hour},
		BidExpiry:  market.ExpiryRange{Min: time.Minute, Max: 90 * 24 * time.Hour},
		AuctionExpiry: market.ExpiryRange{
			Min: time.Minute,
			Max: 90 * 24 * time.Hour,
		},
		Operators: []string{"operator"},
		MinPrice:  decimal.NewFromInt(10),
	}
	require.NoError(t, engine.Init(context.Background(), params))

	wl := whitelist.New(store, logger)
	wlCfg := whitelist.Config{
		Admin:           "admin",
		StartTime:       testNow.Add(time.Hour),
		EndTime:         testNow.Add(25 * time.Hour),
		UnitPrice:       market.NewCoin("uust", decimal.NewFromInt(100)),
		PerAddressLimit: 1,
		MemberLimit:     1000,
	}
	require.NoError(t, wl.Init(context.Background(), wlCfg, []string{"alice"}, testNow))

	server := NewServer(engine, wl, events.NewLogPublisher(logger), logger)
	server.now = func() time.Time { return testNow }
	return &testServer{server: server, bank: bank, tokens: tokens}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.server.Router().ServeHTTP(w, req)
	return w
}

func expiresAt() string {
	return testNow.Add(24 * time.Hour).Format(time.RFC3339)
}

func TestAskRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	ts.tokens.Mint("1", "alice")

	w := ts.do(t, http.MethodGet, "/v1/tokens/1/ask", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodPost, "/v1/tokens/1/ask", gin.H{
		"sender":     "alice",
		"price":      gin.H{"denom": "uust", "amount": "100"},
		"expires_at": expiresAt(),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp eventsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Events)
	assert.Equal(t, "set-ask", resp.Events[len(resp.Events)-1].Type)

	w = ts.do(t, http.MethodGet, "/v1/tokens/1/ask", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var ask market.Ask
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ask))
	assert.Equal(t, "alice", ask.Seller)
	assert.True(t, ask.Price.Amount.Equal(decimal.NewFromInt(100)))
}

func TestErrorMapping(t *testing.T) {
	ts := newTestServer(t)
	ts.tokens.Mint("1", "alice")

	// Authorization failure maps to 403 with a problem body.
	w := ts.do(t, http.MethodPost, "/v1/tokens/1/ask", gin.H{
		"sender":     "mallory",
		"price":      gin.H{"denom": "uust", "amount": "100"},
		"expires_at": expiresAt(),
	})
	require.Equal(t, http.StatusForbidden, w.Code)
	var problem Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
	assert.Equal(t, "urn:nftmarket:error:authorization", problem.Type)
	assert.Equal(t, http.StatusForbidden, problem.Status)

	// Missing payment maps to 402.
	w = ts.do(t, http.MethodPost, "/v1/tokens/1/bids", gin.H{
		"sender":     "bob",
		"price":      gin.H{"denom": "uust", "amount": "100"},
		"expires_at": expiresAt(),
	})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)

	// Structurally invalid request maps to 400.
	w = ts.do(t, http.MethodPost, "/v1/tokens/1/ask", gin.H{
		"price": gin.H{"denom": "uust", "amount": "100"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBidFlowOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	ts.tokens.Mint("1", "alice")
	ts.bank.Mint("bob", "uust", decimal.NewFromInt(500))

	w := ts.do(t, http.MethodPost, "/v1/tokens/1/bids", gin.H{
		"sender":     "bob",
		"payment":    gin.H{"denom": "uust", "amount": "100"},
		"price":      gin.H{"denom": "uust", "amount": "100"},
		"expires_at": expiresAt(),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(t, http.MethodGet, "/v1/tokens/1/bids", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listing struct {
		Bids []market.Bid `json:"bids"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listing))
	require.Len(t, listing.Bids, 1)
	assert.Equal(t, "bob", listing.Bids[0].Bidder)

	// The seller accepts and the sale settles.
	w = ts.do(t, http.MethodPost, "/v1/tokens/1/bids/accept", gin.H{
		"sender": "alice",
		"bidder": "bob",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	owner, err := ts.tokens.OwnerOf(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "bob", owner)
	balance, err := ts.bank.Balance(context.Background(), "alice", "uust")
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(98)))
}

func TestListBids_QueryParams(t *testing.T) {
	ts := newTestServer(t)
	for i := 1; i <= 4; i++ {
		bidder := fmt.Sprintf("bidder-%d", i)
		amount := fmt.Sprintf("%d", i*10)
		ts.bank.Mint(bidder, "uust", decimal.NewFromInt(int64(i*10)))
		w := ts.do(t, http.MethodPost, "/v1/tokens/1/bids", gin.H{
			"sender":     bidder,
			"payment":    gin.H{"denom": "uust", "amount": amount},
			"price":      gin.H{"denom": "uust", "amount": amount},
			"expires_at": expiresAt(),
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w := ts.do(t, http.MethodGet, "/v1/tokens/1/bids?order=desc&limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listing struct {
		Bids []market.Bid `json:"bids"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listing))
	require.Len(t, listing.Bids, 2)
	assert.True(t, listing.Bids[0].Price.Amount.Equal(decimal.NewFromInt(40)))

	w = ts.do(t, http.MethodGet, "/v1/tokens/1/bids?start_after_price=20&start_after_bidder=bidder-2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listing))
	require.Len(t, listing.Bids, 2)
	assert.True(t, listing.Bids[0].Price.Amount.Equal(decimal.NewFromInt(30)))
}

func TestWhitelistOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/v1/whitelist/members/alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "true")

	w = ts.do(t, http.MethodPost, "/v1/whitelist/members", gin.H{
		"sender":  "admin",
		"members": []string{"bob"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(t, http.MethodGet, "/v1/whitelist/members", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listing struct {
		Members []string `json:"members"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listing))
	assert.Equal(t, []string{"alice", "bob"}, listing.Members)

	w = ts.do(t, http.MethodPost, "/v1/whitelist/member-limit", gin.H{
		"sender": "mallory",
		"limit":  2000,
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}
