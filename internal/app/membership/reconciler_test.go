package membership_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dalemusser/inventoryhub/internal/app/membership"
	"github.com/dalemusser/inventoryhub/internal/app/storage"
	"github.com/dalemusser/inventoryhub/internal/app/system/retry"
	"github.com/dalemusser/inventoryhub/internal/domain/models"
	"github.com/dalemusser/inventoryhub/internal/testutil"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
)

const (
	u1 = "507f1f77bcf86cd799439011"
	u2 = "507f1f77bcf86cd799439012"
	g1 = "507f191e810c19729de860ea"
)

var errTransient = errors.New("transient")

func int32p(n int32) *int32 { return &n }

func newReconciler(s storage.Storage, m *membership.Metrics) *membership.Reconciler {
	opts := []membership.Option{
		membership.WithRetry(retry.Policy{MaxAttempts: 3, Delay: time.Millisecond}),
		membership.WithSettleDelay(0),
	}
	if m != nil {
		opts = append(opts, membership.WithMetrics(m))
	}
	return membership.New(s, zap.NewNop(), opts...)
}

func newStore() *testutil.MemStorage {
	s := testutil.NewMemStorage()
	s.Unique(storage.UserGroup, "userId", "groupId")
	s.Unique(storage.Groups, "groupCode")
	return s
}

func putGroup(s *testutil.MemStorage, id string, count int32, userMax *int32) {
	s.Put(storage.Groups, id, models.Group{Name: "House", UserCount: count, UserMax: userMax, GroupCode: "ABCD1234"})
}

func putRelation(t *testing.T, s *testutil.MemStorage, userID, groupID string) {
	t.Helper()
	rel := map[string]string{"userId": userID, "groupId": groupID}
	if _, err := s.Create(context.Background(), storage.UserGroup, rel); err != nil {
		t.Fatalf("seed relation: %v", err)
	}
}

func storedCount(t *testing.T, s *testutil.MemStorage, id string) int32 {
	t.Helper()
	var g models.Group
	if err := s.Get(context.Background(), storage.Groups, id, &g); err != nil {
		t.Fatalf("load group: %v", err)
	}
	return g.UserCount
}

func TestJoin_EndToEnd(t *testing.T) {
	s := newStore()
	putGroup(s, g1, 0, nil)
	r := newReconciler(s, nil)
	ctx := context.Background()

	g, err := r.Join(ctx, u1, g1)
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if g.UserCount != 1 {
		t.Errorf("returned userCount: got %d, want 1", g.UserCount)
	}

	in, err := r.CheckUserInGroup(ctx, g1, u1)
	if err != nil {
		t.Fatalf("CheckUserInGroup: %v", err)
	}
	if !in {
		t.Error("expected user to be in group after join")
	}
	if got := storedCount(t, s, g1); got != 1 {
		t.Errorf("stored userCount: got %d, want 1", got)
	}
}

func TestJoin_BoxedIdentifiers(t *testing.T) {
	s := newStore()
	putGroup(s, g1, 3, nil)
	r := newReconciler(s, nil)

	g, err := r.Join(context.Background(), map[string]any{"$oid": u1}, map[string]any{"$oid": g1})
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if g.UserCount != 4 {
		t.Errorf("userCount: got %d, want 4", g.UserCount)
	}
}

func TestJoin_GroupFull(t *testing.T) {
	tests := []struct {
		name  string
		count int32
		max   int32
	}{
		{"max 1 count 1", 1, 1},
		{"max 2 count 2", 2, 2},
		{"over capacity", 5, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore()
			putGroup(s, g1, tt.count, int32p(tt.max))
			r := newReconciler(s, nil)

			_, err := r.Join(context.Background(), u2, g1)
			if !errors.Is(err, membership.ErrGroupFull) {
				t.Fatalf("err: got %v, want ErrGroupFull", err)
			}
			if n := s.Calls("create", storage.UserGroup); n != 0 {
				t.Errorf("relation writes: got %d, want 0", n)
			}
			if n := s.Count(storage.UserGroup); n != 0 {
				t.Errorf("relations: got %d, want 0", n)
			}
			if got := storedCount(t, s, g1); got != tt.count {
				t.Errorf("userCount: got %d, want %d", got, tt.count)
			}
		})
	}
}

func TestJoin_InvalidIdentifiers(t *testing.T) {
	tests := []struct {
		name        string
		user, group any
	}{
		{"nil user", nil, g1},
		{"empty group", u1, ""},
		{"non-hex user", "not-an-id", g1},
		{"empty boxed group", u1, map[string]any{"$oid": ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore()
			putGroup(s, g1, 0, nil)
			r := newReconciler(s, nil)

			_, err := r.Join(context.Background(), tt.user, tt.group)
			if !errors.Is(err, membership.ErrInvalidIdentifier) {
				t.Fatalf("err: got %v, want ErrInvalidIdentifier", err)
			}
			if n := s.Calls("get", storage.Groups); n != 0 {
				t.Errorf("expected no I/O, got %d group reads", n)
			}
		})
	}
}

func TestJoin_RetriesTransientWrite(t *testing.T) {
	s := newStore()
	putGroup(s, g1, 0, nil)
	s.Fail = func(op, coll string, n int) error {
		if op == "create" && coll == storage.UserGroup && n < 3 {
			return errTransient
		}
		return nil
	}
	r := newReconciler(s, nil)

	if _, err := r.Join(context.Background(), u1, g1); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if n := s.Calls("create", storage.UserGroup); n != 3 {
		t.Errorf("relation writes: got %d, want 3", n)
	}
	if got := storedCount(t, s, g1); got != 1 {
		t.Errorf("userCount: got %d, want 1", got)
	}
}

func TestJoin_UnconfirmedWriteIsRetried(t *testing.T) {
	s := newStore()
	putGroup(s, g1, 0, nil)
	// The first read-back misses; the second attempt's write then conflicts
	// with the relation the first attempt created.
	s.Fail = func(op, coll string, n int) error {
		if op == "get" && coll == storage.UserGroup && n == 1 {
			return storage.ErrNotFound
		}
		return nil
	}
	r := newReconciler(s, nil)

	if _, err := r.Join(context.Background(), u1, g1); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if n := s.Count(storage.UserGroup); n != 1 {
		t.Errorf("relations: got %d, want 1", n)
	}
	if got := storedCount(t, s, g1); got != 1 {
		t.Errorf("userCount: got %d, want 1", got)
	}
}

func TestJoin_WriteFailedAfterRetries(t *testing.T) {
	s := newStore()
	putGroup(s, g1, 4, nil)
	s.Fail = func(op, coll string, n int) error {
		if op == "create" && coll == storage.UserGroup {
			return errTransient
		}
		return nil
	}
	m := membership.NewMetrics(nil)
	r := newReconciler(s, m)

	_, err := r.Join(context.Background(), u1, g1)
	if !errors.Is(err, membership.ErrMembershipWriteFailed) {
		t.Fatalf("err: got %v, want ErrMembershipWriteFailed", err)
	}
	if !errors.Is(err, errTransient) {
		t.Errorf("expected last attempt error to be wrapped, got %v", err)
	}
	if n := s.Calls("create", storage.UserGroup); n != 3 {
		t.Errorf("relation writes: got %d, want 3", n)
	}
	if got := storedCount(t, s, g1); got != 4 {
		t.Errorf("userCount: got %d, want 4", got)
	}
	if got := promtest.ToFloat64(m.WriteRetries); got != 2 {
		t.Errorf("retries metric: got %v, want 2", got)
	}
}

func TestJoin_AlreadyMember(t *testing.T) {
	s := newStore()
	putGroup(s, g1, 1, nil)
	putRelation(t, s, u1, g1)
	r := newReconciler(s, nil)

	_, err := r.Join(context.Background(), u1, g1)
	if !errors.Is(err, membership.ErrAlreadyMember) {
		t.Fatalf("err: got %v, want ErrAlreadyMember", err)
	}
	// 1 seed write + 1 rejected write, no retries
	if n := s.Calls("create", storage.UserGroup); n != 2 {
		t.Errorf("relation writes: got %d, want 2", n)
	}
	if got := storedCount(t, s, g1); got != 1 {
		t.Errorf("userCount: got %d, want 1", got)
	}
}

func TestJoin_CounterUpdateFailureIsNotFatal(t *testing.T) {
	s := newStore()
	putGroup(s, g1, 2, nil)
	s.Fail = func(op, coll string, n int) error {
		if op == "update" && coll == storage.Groups {
			return errTransient
		}
		return nil
	}
	m := membership.NewMetrics(nil)
	r := newReconciler(s, m)

	g, err := r.Join(context.Background(), u1, g1)
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if g.UserCount != 3 {
		t.Errorf("reconstructed userCount: got %d, want 3", g.UserCount)
	}
	if got := storedCount(t, s, g1); got != 2 {
		t.Errorf("stored userCount: got %d, want 2 (drift)", got)
	}
	if got := promtest.ToFloat64(m.CounterDrift.WithLabelValues("join")); got != 1 {
		t.Errorf("drift metric: got %v, want 1", got)
	}
}

func TestJoin_SettleDelay(t *testing.T) {
	s := newStore()
	putGroup(s, g1, 0, nil)
	r := membership.New(s, zap.NewNop(), membership.WithSettleDelay(30*time.Millisecond))

	start := time.Now()
	if _, err := r.Join(context.Background(), u1, g1); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("elapsed %v, want at least the settle delay", elapsed)
	}
}

func TestJoin_CancelledDuringRetry(t *testing.T) {
	s := newStore()
	putGroup(s, g1, 0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Fail = func(op, coll string, n int) error {
		if op == "create" && coll == storage.UserGroup {
			cancel()
			return errTransient
		}
		return nil
	}
	r := membership.New(s, zap.NewNop(), membership.WithRetry(retry.Policy{MaxAttempts: 3, Delay: time.Minute}))

	_, err := r.Join(ctx, u1, g1)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err: got %v, want context.Canceled", err)
	}
	if n := s.Calls("create", storage.UserGroup); n != 1 {
		t.Errorf("relation writes: got %d, want 1", n)
	}
}

func TestJoin_CancelledDuringSettle(t *testing.T) {
	s := newStore()
	putGroup(s, g1, 0, nil)
	m := membership.NewMetrics(nil)
	r := membership.New(s, zap.NewNop(),
		membership.WithSettleDelay(200*time.Millisecond),
		membership.WithMetrics(m))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	g, err := r.Join(ctx, u1, g1)
	if err != nil {
		t.Fatalf("Join after a committed relation: got %v, want success", err)
	}
	if elapsed := time.Since(start); elapsed >= 200*time.Millisecond {
		t.Errorf("elapsed %v, want the settle delay cut short", elapsed)
	}
	if g.UserCount != 1 {
		t.Errorf("returned userCount: got %d, want 1", g.UserCount)
	}
	if got := storedCount(t, s, g1); got != 1 {
		t.Errorf("stored userCount: got %d, want 1", got)
	}
	if n := s.Count(storage.UserGroup); n != 1 {
		t.Errorf("relations: got %d, want 1", n)
	}
	if got := promtest.ToFloat64(m.Joins); got != 1 {
		t.Errorf("joins metric: got %v, want 1", got)
	}
}

func TestNew_KeepsCallerOnRetry(t *testing.T) {
	s := newStore()
	putGroup(s, g1, 0, nil)
	s.Fail = func(op, coll string, n int) error {
		if op == "create" && coll == storage.UserGroup && n == 1 {
			return errTransient
		}
		return nil
	}
	m := membership.NewMetrics(nil)
	var seen []int
	r := membership.New(s, zap.NewNop(),
		membership.WithRetry(retry.Policy{MaxAttempts: 3, Delay: time.Millisecond, OnRetry: func(n int, _ error) {
			seen = append(seen, n)
		}}),
		membership.WithSettleDelay(0),
		membership.WithMetrics(m))

	if _, err := r.Join(context.Background(), u1, g1); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if len(seen) != 1 || seen[0] != 1 {
		t.Errorf("caller OnRetry: got %v, want [1]", seen)
	}
	if got := promtest.ToFloat64(m.WriteRetries); got != 1 {
		t.Errorf("write retries metric: got %v, want 1", got)
	}
}

func TestLeave(t *testing.T) {
	s := newStore()
	putGroup(s, g1, 2, nil)
	putRelation(t, s, u1, g1)
	r := newReconciler(s, nil)
	ctx := context.Background()

	g, err := r.Leave(ctx, u1, g1)
	if err != nil {
		t.Fatalf("Leave failed: %v", err)
	}
	if g.UserCount != 1 {
		t.Errorf("userCount: got %d, want 1", g.UserCount)
	}
	in, _ := r.CheckUserInGroup(ctx, g1, u1)
	if in {
		t.Error("expected user to be out of group after leave")
	}
}

func TestLeave_CounterFloor(t *testing.T) {
	s := newStore()
	putGroup(s, g1, 0, nil)
	putRelation(t, s, u1, g1)
	r := newReconciler(s, nil)

	g, err := r.Leave(context.Background(), u1, g1)
	if err != nil {
		t.Fatalf("Leave failed: %v", err)
	}
	if g.UserCount != 0 {
		t.Errorf("userCount: got %d, want 0", g.UserCount)
	}
	if got := storedCount(t, s, g1); got != 0 {
		t.Errorf("stored userCount: got %d, want 0", got)
	}
}

func TestLeave_NotAMember(t *testing.T) {
	s := newStore()
	putGroup(s, g1, 1, nil)
	putRelation(t, s, u2, g1)
	r := newReconciler(s, nil)

	_, err := r.Leave(context.Background(), u1, g1)
	if !errors.Is(err, membership.ErrNotAMember) {
		t.Fatalf("err: got %v, want ErrNotAMember", err)
	}
	if n := s.Calls("delete", storage.UserGroup); n != 0 {
		t.Errorf("deletes: got %d, want 0", n)
	}
	if got := storedCount(t, s, g1); got != 1 {
		t.Errorf("userCount: got %d, want 1", got)
	}
}

func TestLeave_DeleteFailsWithoutRetry(t *testing.T) {
	s := newStore()
	putGroup(s, g1, 1, nil)
	putRelation(t, s, u1, g1)
	s.Fail = func(op, coll string, n int) error {
		if op == "delete" && coll == storage.UserGroup {
			return errTransient
		}
		return nil
	}
	r := newReconciler(s, nil)

	_, err := r.Leave(context.Background(), u1, g1)
	if !errors.Is(err, membership.ErrLeaveFailed) {
		t.Fatalf("err: got %v, want ErrLeaveFailed", err)
	}
	if n := s.Calls("delete", storage.UserGroup); n != 1 {
		t.Errorf("deletes: got %d, want 1", n)
	}
	if got := storedCount(t, s, g1); got != 1 {
		t.Errorf("userCount: got %d, want 1", got)
	}
}

func TestGetUserGroupID(t *testing.T) {
	s := newStore()
	putGroup(s, g1, 0, nil)
	r := newReconciler(s, nil)
	ctx := context.Background()

	id, err := r.GetUserGroupID(ctx, g1, u1)
	if err != nil || id != "" {
		t.Fatalf("before join: got (%q, %v), want empty", id, err)
	}
	if _, err := r.Join(ctx, u1, g1); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	id, err = r.GetUserGroupID(ctx, g1, u1)
	if err != nil || id == "" {
		t.Fatalf("after join: got (%q, %v), want relation id", id, err)
	}
}
