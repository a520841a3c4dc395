package whitelist

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Aidin1998/nftmarket/internal/market"
	"github.com/Aidin1998/nftmarket/internal/storage"
)

const admin = "admin"

var (
	now       = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	startTime = now.Add(time.Hour)
	endTime   = now.Add(25 * time.Hour)
)

func testConfig() Config {
	return Config{
		Admin:           admin,
		StartTime:       startTime,
		EndTime:         endTime,
		UnitPrice:       market.NewCoin("uust", decimal.NewFromInt(100)),
		PerAddressLimit: 1,
		MemberLimit:     1000,
	}
}

func newService(t *testing.T, members ...string) *Service {
	t.Helper()
	s := New(storage.NewMemory(), zap.NewNop())
	require.NoError(t, s.Init(context.Background(), testConfig(), members, now))
	return s
}

func TestInit_Validation(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero member limit", func(c *Config) { c.MemberLimit = 0 }},
		{"zero per-address limit", func(c *Config) { c.PerAddressLimit = 0 }},
		{"zero unit price", func(c *Config) { c.UnitPrice.Amount = decimal.Zero }},
		{"start after end", func(c *Config) { c.StartTime, c.EndTime = c.EndTime, c.StartTime }},
		{"start in the past", func(c *Config) { c.StartTime = now.Add(-time.Hour) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			err := New(storage.NewMemory(), zap.NewNop()).Init(ctx, cfg, nil, now)
			assert.True(t, market.IsKind(err, market.KindValidation))
		})
	}

	s := newService(t)
	err := s.Init(ctx, testConfig(), nil, now)
	assert.True(t, market.IsKind(err, market.KindStateConflict), "double init")
}

func TestInit_DropsDuplicateMembers(t *testing.T) {
	s := newService(t, "alice", "alice", "alice")

	cfg, err := s.ConfigSnapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint32(1), cfg.NumMembers)
}

func TestInit_SeedExceedingCapacityFails(t *testing.T) {
	cfg := testConfig()
	cfg.MemberLimit = 2
	err := New(storage.NewMemory(), zap.NewNop()).Init(context.Background(), cfg, []string{"a", "b", "c"}, now)
	assert.True(t, market.IsKind(err, market.KindBusinessRule))
}

func TestAddAndRemoveMembers(t *testing.T) {
	ctx := context.Background()
	s := newService(t, "alice")

	// Duplicates within one call collapse.
	require.NoError(t, s.AddMembers(ctx, admin, []string{"bob", "bob"}))
	members, err := s.Members(ctx, "", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, members)

	// Re-adding an existing member fails and adds nothing.
	err = s.AddMembers(ctx, admin, []string{"bob"})
	assert.True(t, market.IsKind(err, market.KindStateConflict))

	err = s.AddMembers(ctx, "mallory", []string{"carol"})
	assert.True(t, market.IsKind(err, market.KindAuthorization))

	require.NoError(t, s.RemoveMembers(ctx, admin, []string{"bob"}, now))
	has, err := s.HasMember(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, has)
	cfg, err := s.ConfigSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), cfg.NumMembers)

	err = s.RemoveMembers(ctx, admin, []string{"ghost"}, now)
	assert.True(t, market.IsKind(err, market.KindStateConflict))
}

func TestAddMembers_CapacityAllOrNothing(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.MemberLimit = 2
	s := New(storage.NewMemory(), zap.NewNop())
	require.NoError(t, s.Init(ctx, cfg, []string{"alice"}, now))

	err := s.AddMembers(ctx, admin, []string{"bob", "carol"})
	assert.True(t, market.IsKind(err, market.KindBusinessRule))

	// The batch failed as a whole: bob was not admitted either.
	has, err := s.HasMember(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestRemoveMembers_ForbiddenAfterStart(t *testing.T) {
	s := newService(t, "alice")
	err := s.RemoveMembers(context.Background(), admin, []string{"alice"}, startTime)
	assert.True(t, market.IsKind(err, market.KindStateConflict))
}

func TestUpdateWindow(t *testing.T) {
	ctx := context.Background()
	s := newService(t)

	newStart := startTime.Add(time.Hour)
	require.NoError(t, s.UpdateStartTime(ctx, admin, newStart, now))
	cfg, err := s.ConfigSnapshot(ctx)
	require.NoError(t, err)
	assert.True(t, cfg.StartTime.Equal(newStart))

	err = s.UpdateStartTime(ctx, admin, endTime.Add(time.Hour), now)
	assert.True(t, market.IsKind(err, market.KindValidation), "start past end")

	newEnd := endTime.Add(time.Hour)
	require.NoError(t, s.UpdateEndTime(ctx, admin, newEnd, now))
	cfg, err = s.ConfigSnapshot(ctx)
	require.NoError(t, err)
	assert.True(t, cfg.EndTime.Equal(newEnd))

	err = s.UpdateEndTime(ctx, admin, newStart.Add(-time.Minute), now)
	assert.True(t, market.IsKind(err, market.KindValidation), "end before start")

	// Once the window is open both updates are frozen.
	err = s.UpdateStartTime(ctx, admin, newStart.Add(time.Hour), newStart)
	assert.True(t, market.IsKind(err, market.KindStateConflict))
	err = s.UpdateEndTime(ctx, admin, newEnd.Add(time.Hour), newStart)
	assert.True(t, market.IsKind(err, market.KindStateConflict))
}

func TestWindowQueries(t *testing.T) {
	ctx := context.Background()
	s := newService(t)

	type point struct {
		at                     time.Time
		started, ended, active bool
	}
	points := []point{
		{now, false, false, false},
		{startTime, true, false, true},
		{endTime.Add(-time.Second), true, false, true},
		{endTime, true, true, false},
	}
	for _, p := range points {
		started, err := s.HasStarted(ctx, p.at)
		require.NoError(t, err)
		assert.Equal(t, p.started, started)
		ended, err := s.HasEnded(ctx, p.at)
		require.NoError(t, err)
		assert.Equal(t, p.ended, ended)
		active, err := s.IsActive(ctx, p.at)
		require.NoError(t, err)
		assert.Equal(t, p.active, active)
	}
}

func TestUpdatePerAddressLimit(t *testing.T) {
	ctx := context.Background()
	s := newService(t)

	require.NoError(t, s.UpdatePerAddressLimit(ctx, admin, 5))
	cfg, err := s.ConfigSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), cfg.PerAddressLimit)

	err = s.UpdatePerAddressLimit(ctx, admin, 0)
	assert.True(t, market.IsKind(err, market.KindValidation))
	err = s.UpdatePerAddressLimit(ctx, "mallory", 5)
	assert.True(t, market.IsKind(err, market.KindAuthorization))
}

func TestIncreaseMemberLimit_OnlyGrows(t *testing.T) {
	ctx := context.Background()
	s := newService(t)

	require.NoError(t, s.IncreaseMemberLimit(ctx, admin, 1001))
	require.NoError(t, s.IncreaseMemberLimit(ctx, admin, 1002))

	err := s.IncreaseMemberLimit(ctx, admin, 1002)
	assert.True(t, market.IsKind(err, market.KindValidation))
	err = s.IncreaseMemberLimit(ctx, admin, 500)
	assert.True(t, market.IsKind(err, market.KindValidation))
}

func TestMembers_Pagination(t *testing.T) {
	ctx := context.Background()
	seed := make([]string, 150)
	for i := range seed {
		seed[i] = fmt.Sprintf("addr1%03d", i)
	}
	s := newService(t, seed...)

	page, err := s.Members(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, page, MembersDefaultLimit)

	page, err = s.Members(ctx, "", 125)
	require.NoError(t, err)
	assert.Len(t, page, MembersMaxLimit)

	// Three cursor pages of 50 cover the whole set exactly once.
	var all []string
	cursor := ""
	for i := 0; i < 3; i++ {
		page, err = s.Members(ctx, cursor, 50)
		require.NoError(t, err)
		require.Len(t, page, 50)
		all = append(all, page...)
		cursor = page[len(page)-1]
	}
	page, err = s.Members(ctx, cursor, 50)
	require.NoError(t, err)
	assert.Empty(t, page)

	sort.Strings(seed)
	assert.Equal(t, seed, all)
	assert.True(t, sort.StringsAreSorted(all))
}

func TestAddMembers_ConcurrentAddsAllLand(t *testing.T) {
	ctx := context.Background()
	s := newService(t)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(addr string) {
			defer wg.Done()
			assert.NoError(t, s.AddMembers(ctx, admin, []string{addr}))
		}(fmt.Sprintf("addr%02d", i))
	}
	wg.Wait()

	cfg, err := s.ConfigSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(16), cfg.NumMembers)
	members, err := s.Members(ctx, "", 100)
	require.NoError(t, err)
	assert.Len(t, members, 16)
}
