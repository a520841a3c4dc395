// Package whitelist implements the admin-managed allow list used for gated
// mint windows: a capacity-checked membership set with a start/end activity
// window. It shares the storage layer with the marketplace but is not
// consulted by the matching engine.
package whitelist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Aidin1998/nftmarket/internal/market"
	"github.com/Aidin1998/nftmarket/internal/storage"
)

// Pagination bounds for the member listing.
const (
	MembersDefaultLimit = 25
	MembersMaxLimit     = 100
)

const (
	keyConfig    = "wl/config"
	prefixMember = "wl/member/"
)

// Config is the allow list's settings. NumMembers is maintained by the
// service and never exceeds MemberLimit.
type Config struct {
	Admin           string      `json:"admin"`
	StartTime       time.Time   `json:"start_time"`
	EndTime         time.Time   `json:"end_time"`
	UnitPrice       market.Coin `json:"unit_price"`
	PerAddressLimit uint32      `json:"per_address_limit"`
	MemberLimit     uint32      `json:"member_limit"`
	NumMembers      uint32      `json:"num_members"`
}

// Service manages one allow list. Mutations are serialized on an internal
// mutex; reads work on a committed snapshot and take no lock.
type Service struct {
	mu     sync.Mutex
	store  storage.Store
	logger *zap.Logger
}

// New creates the service over a storage backend.
func New(store storage.Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Init validates the configuration and seeds the initial member set.
// Duplicates in members are dropped. The window must lie in the future.
func (s *Service) Init(ctx context.Context, cfg Config, members []string, now time.Time) error {
	const op = "whitelist-init"
	if cfg.MemberLimit == 0 {
		return errValidation(op, "member limit must be at least 1", ">= 1", "0")
	}
	if cfg.PerAddressLimit == 0 {
		return errValidation(op, "per-address limit must be at least 1", ">= 1", "0")
	}
	if !cfg.UnitPrice.Amount.IsPositive() {
		return errValidation(op, "unit price must be positive", "> 0", cfg.UnitPrice.Amount.String())
	}
	if !cfg.StartTime.Before(cfg.EndTime) {
		return errValidation(op, "start time must precede end time",
			fmt.Sprintf("< %s", cfg.EndTime.Format(time.RFC3339)), cfg.StartTime.Format(time.RFC3339))
	}
	if !now.Before(cfg.StartTime) {
		return errValidation(op, "start time must be in the future",
			fmt.Sprintf("> %s", now.Format(time.RFC3339)), cfg.StartTime.Format(time.RFC3339))
	}

	members = dedupe(members)
	if uint32(len(members)) > cfg.MemberLimit {
		return capacityError(op, cfg.MemberLimit, uint32(len(members)))
	}
	cfg.NumMembers = uint32(len(members))

	s.mu.Lock()
	defer s.mu.Unlock()
	tx := s.store.Begin()
	defer tx.Discard()
	exists, err := tx.Has([]byte(keyConfig))
	if err != nil {
		return err
	}
	if exists {
		return errStateConflict(op, "whitelist already initialized")
	}
	if err := putConfig(tx, cfg); err != nil {
		return err
	}
	for _, m := range members {
		if err := tx.Set(memberKey(m), []byte{1}); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.logger.Info("whitelist initialized",
		zap.String("admin", cfg.Admin),
		zap.Uint32("members", cfg.NumMembers),
		zap.Uint32("member_limit", cfg.MemberLimit))
	return nil
}

// AddMembers adds addresses, failing when any is already present or the
// member limit would be exceeded. All-or-nothing.
func (s *Service) AddMembers(ctx context.Context, sender string, addrs []string) error {
	const op = "add-members"
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := s.store.Begin()
	defer tx.Discard()
	cfg, err := getConfig(tx)
	if err != nil {
		return err
	}
	if err := onlyAdmin(op, sender, cfg); err != nil {
		return err
	}

	for _, addr := range dedupe(addrs) {
		if cfg.NumMembers >= cfg.MemberLimit {
			return capacityError(op, cfg.MemberLimit, cfg.NumMembers)
		}
		present, err := tx.Has(memberKey(addr))
		if err != nil {
			return err
		}
		if present {
			return errStateConflict(op, fmt.Sprintf("address %s is already a member", addr))
		}
		if err := tx.Set(memberKey(addr), []byte{1}); err != nil {
			return err
		}
		cfg.NumMembers++
	}
	if err := putConfig(tx, cfg); err != nil {
		return err
	}
	return tx.Commit()
}

// RemoveMembers removes addresses, failing when any is absent. Forbidden
// once the window has started.
func (s *Service) RemoveMembers(ctx context.Context, sender string, addrs []string, now time.Time) error {
	const op = "remove-members"
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := s.store.Begin()
	defer tx.Discard()
	cfg, err := getConfig(tx)
	if err != nil {
		return err
	}
	if err := onlyAdmin(op, sender, cfg); err != nil {
		return err
	}
	if !now.Before(cfg.StartTime) {
		return alreadyStartedError(op, cfg.StartTime)
	}

	for _, addr := range addrs {
		present, err := tx.Has(memberKey(addr))
		if err != nil {
			return err
		}
		if !present {
			return errStateConflict(op, fmt.Sprintf("address %s is not a member", addr))
		}
		if err := tx.Delete(memberKey(addr)); err != nil {
			return err
		}
		cfg.NumMembers--
	}
	if err := putConfig(tx, cfg); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateStartTime moves the window start. Forbidden once the window has
// started; the new start may not pass the end.
func (s *Service) UpdateStartTime(ctx context.Context, sender string, start, now time.Time) error {
	const op = "update-start-time"
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := s.store.Begin()
	defer tx.Discard()
	cfg, err := getConfig(tx)
	if err != nil {
		return err
	}
	if err := onlyAdmin(op, sender, cfg); err != nil {
		return err
	}
	if !now.Before(cfg.StartTime) {
		return alreadyStartedError(op, cfg.StartTime)
	}
	if start.After(cfg.EndTime) {
		return errValidation(op, "start time past end time",
			fmt.Sprintf("<= %s", cfg.EndTime.Format(time.RFC3339)), start.Format(time.RFC3339))
	}
	cfg.StartTime = start
	if err := putConfig(tx, cfg); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateEndTime moves the window end. Forbidden once the window has
// started; the new end may not precede the start.
func (s *Service) UpdateEndTime(ctx context.Context, sender string, end, now time.Time) error {
	const op = "update-end-time"
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := s.store.Begin()
	defer tx.Discard()
	cfg, err := getConfig(tx)
	if err != nil {
		return err
	}
	if err := onlyAdmin(op, sender, cfg); err != nil {
		return err
	}
	if !now.Before(cfg.StartTime) {
		return alreadyStartedError(op, cfg.StartTime)
	}
	if end.Before(cfg.StartTime) {
		return errValidation(op, "end time precedes start time",
			fmt.Sprintf(">= %s", cfg.StartTime.Format(time.RFC3339)), end.Format(time.RFC3339))
	}
	cfg.EndTime = end
	if err := putConfig(tx, cfg); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdatePerAddressLimit replaces the per-address mint allowance.
func (s *Service) UpdatePerAddressLimit(ctx context.Context, sender string, limit uint32) error {
	const op = "update-per-address-limit"
	if limit == 0 {
		return errValidation(op, "per-address limit must be at least 1", ">= 1", "0")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := s.store.Begin()
	defer tx.Discard()
	cfg, err := getConfig(tx)
	if err != nil {
		return err
	}
	if err := onlyAdmin(op, sender, cfg); err != nil {
		return err
	}
	cfg.PerAddressLimit = limit
	if err := putConfig(tx, cfg); err != nil {
		return err
	}
	return tx.Commit()
}

// IncreaseMemberLimit raises the capacity. The limit only ever grows.
func (s *Service) IncreaseMemberLimit(ctx context.Context, sender string, limit uint32) error {
	const op = "increase-member-limit"
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := s.store.Begin()
	defer tx.Discard()
	cfg, err := getConfig(tx)
	if err != nil {
		return err
	}
	if err := onlyAdmin(op, sender, cfg); err != nil {
		return err
	}
	if limit <= cfg.MemberLimit {
		return errValidation(op, "member limit can only increase",
			fmt.Sprintf("> %d", cfg.MemberLimit), fmt.Sprintf("%d", limit))
	}
	cfg.MemberLimit = limit
	if err := putConfig(tx, cfg); err != nil {
		return err
	}
	return tx.Commit()
}

// HasStarted reports whether the window has opened at the given time.
func (s *Service) HasStarted(ctx context.Context, now time.Time) (bool, error) {
	cfg, err := s.ConfigSnapshot(ctx)
	if err != nil {
		return false, err
	}
	return !now.Before(cfg.StartTime), nil
}

// HasEnded reports whether the window has closed at the given time.
func (s *Service) HasEnded(ctx context.Context, now time.Time) (bool, error) {
	cfg, err := s.ConfigSnapshot(ctx)
	if err != nil {
		return false, err
	}
	return !now.Before(cfg.EndTime), nil
}

// IsActive reports whether the window is open at the given time.
func (s *Service) IsActive(ctx context.Context, now time.Time) (bool, error) {
	cfg, err := s.ConfigSnapshot(ctx)
	if err != nil {
		return false, err
	}
	return !now.Before(cfg.StartTime) && now.Before(cfg.EndTime), nil
}

// HasMember reports membership of a single address.
func (s *Service) HasMember(ctx context.Context, addr string) (bool, error) {
	tx := s.store.Begin()
	defer tx.Discard()
	return tx.Has(memberKey(addr))
}

// Members lists member addresses in lexicographic order with an exclusive
// start cursor. limit zero means MembersDefaultLimit; values above
// MembersMaxLimit are clamped.
func (s *Service) Members(ctx context.Context, startAfter string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = MembersDefaultLimit
	}
	if limit > MembersMaxLimit {
		limit = MembersMaxLimit
	}
	tx := s.store.Begin()
	defer tx.Discard()

	var members []string
	err := tx.Scan([]byte(prefixMember), false, func(key, value []byte) (bool, error) {
		addr := string(key[len(prefixMember):])
		if startAfter != "" && addr <= startAfter {
			return true, nil
		}
		members = append(members, addr)
		return len(members) < limit, nil
	})
	if err != nil {
		return nil, err
	}
	return members, nil
}

// ConfigSnapshot reads the current configuration.
func (s *Service) ConfigSnapshot(ctx context.Context) (Config, error) {
	tx := s.store.Begin()
	defer tx.Discard()
	return getConfig(tx)
}

func onlyAdmin(op, sender string, cfg Config) error {
	if sender != cfg.Admin {
		return &market.Error{Kind: market.KindAuthorization, Op: op,
			Detail: fmt.Sprintf("sender %s is not the admin", sender)}
	}
	return nil
}

func errValidation(op, detail, expected, actual string) error {
	return &market.Error{Kind: market.KindValidation, Op: op,
		Detail: detail, Expected: expected, Actual: actual}
}

func errStateConflict(op, detail string) error {
	return &market.Error{Kind: market.KindStateConflict, Op: op, Detail: detail}
}

func capacityError(op string, limit, have uint32) error {
	return &market.Error{Kind: market.KindBusinessRule, Op: op,
		Detail:   "member limit exceeded",
		Expected: fmt.Sprintf("<= %d members", limit),
		Actual:   fmt.Sprintf("%d", have)}
}

func alreadyStartedError(op string, start time.Time) error {
	return &market.Error{Kind: market.KindStateConflict, Op: op,
		Detail: fmt.Sprintf("whitelist already started at %s", start.Format(time.RFC3339))}
}

func memberKey(addr string) []byte {
	return []byte(prefixMember + addr)
}

func getConfig(tx storage.Tx) (Config, error) {
	var cfg Config
	raw, err := tx.Get([]byte(keyConfig))
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return cfg, fmt.Errorf("whitelist not initialized")
		}
		return cfg, err
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("corrupt whitelist config: %w", err)
	}
	return cfg, nil
}

func putConfig(tx storage.Tx, cfg Config) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return tx.Set([]byte(keyConfig), raw)
}

func dedupe(addrs []string) []string {
	sorted := append([]string(nil), addrs...)
	sort.Strings(sorted)
	out := sorted[:0]
	for i, a := range sorted {
		if i == 0 || a != sorted[i-1] {
			out = append(out, a)
		}
	}
	return out
}
