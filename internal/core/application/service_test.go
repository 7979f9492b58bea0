package application_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/binaryplan/binaryd/internal/core/application"
	"github.com/binaryplan/binaryd/internal/core/domain"
	"github.com/binaryplan/binaryd/internal/core/ports"
	"github.com/binaryplan/binaryd/internal/infrastructure/db"
	inmemorylivestore "github.com/binaryplan/binaryd/internal/infrastructure/live-store/inmemory"
	"github.com/binaryplan/binaryd/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	root  = domain.AccountID("0x5b38da6a701c568545dcfcb03fcb875f56beddc4")
	alice = domain.AccountID("0xab8483f64d9c6d1ecf9b849ae677dd3315835cb2")
	bob   = domain.AccountID("0x4b20993bc481177ec7e8f571cecae8a9e22c02db")
	carol = domain.AccountID("0x78731d3ca6b7e34ac0f824c42a7cc18a495cabab")
	dave  = domain.AccountID("0x617f2e2fd72fd9d5503197092ac168c91465e7f2")
)

// mockLedger serves reads from in-memory maps and records settlements through
// testify's mock.
type mockLedger struct {
	mock.Mock

	lock         sync.Mutex
	accounts     map[domain.AccountID]*ports.LedgerAccount
	uplines      map[domain.AccountID]*ports.Upline
	deposits     map[domain.AccountID][]ports.LedgerDeposit
	withdrawable map[domain.AccountID]decimal.Decimal
	unreachable  map[domain.AccountID]bool
}

func newMockLedger() *mockLedger {
	return &mockLedger{
		accounts:     make(map[domain.AccountID]*ports.LedgerAccount),
		uplines:      make(map[domain.AccountID]*ports.Upline),
		deposits:     make(map[domain.AccountID][]ports.LedgerDeposit),
		withdrawable: make(map[domain.AccountID]decimal.Decimal),
		unreachable:  make(map[domain.AccountID]bool),
	}
}

// register records an account on the ledger with its upline and investment.
func (m *mockLedger) register(
	id domain.AccountID, blockID uint64, referrer domain.AccountID, side domain.Side,
	invested int64,
) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.accounts[id] = &ports.LedgerAccount{
		Registered:           true,
		InvestedAmount:       decimal.NewFromInt(invested),
		LeaderInvestedAmount: decimal.Zero,
		BlockID:              blockID,
	}
	m.uplines[id] = &ports.Upline{Referrer: referrer, Side: side}
}

func (m *mockLedger) setInvested(id domain.AccountID, invested int64) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.accounts[id].InvestedAmount = decimal.NewFromInt(invested)
}

func (m *mockLedger) setUnreachable(id domain.AccountID, unreachable bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.unreachable[id] = unreachable
}

func (m *mockLedger) checkReachable(id domain.AccountID) error {
	if m.unreachable[id] {
		return errors.TRANSIENT_LEDGER.New("rpc unavailable").
			WithMetadata(errors.LedgerCallMetadata{Account: id.String(), Method: "getAccount"})
	}
	return nil
}

func (m *mockLedger) GetAccount(
	_ context.Context, id domain.AccountID,
) (*ports.LedgerAccount, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if err := m.checkReachable(id); err != nil {
		return nil, err
	}
	if account, ok := m.accounts[id]; ok {
		copied := *account
		return &copied, nil
	}
	return &ports.LedgerAccount{
		InvestedAmount:       decimal.Zero,
		LeaderInvestedAmount: decimal.Zero,
	}, nil
}

func (m *mockLedger) GetUpline(_ context.Context, id domain.AccountID) (*ports.Upline, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if err := m.checkReachable(id); err != nil {
		return nil, err
	}
	if upline, ok := m.uplines[id]; ok {
		copied := *upline
		return &copied, nil
	}
	return &ports.Upline{}, nil
}

func (m *mockLedger) GetDeposits(
	_ context.Context, id domain.AccountID,
) ([]ports.LedgerDeposit, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if err := m.checkReachable(id); err != nil {
		return nil, err
	}
	return append([]ports.LedgerDeposit(nil), m.deposits[id]...), nil
}

func (m *mockLedger) GetPlanDurationSeconds(context.Context) (int64, error) {
	return 300 * 24 * 60 * 60, nil
}

func (m *mockLedger) Settle(
	ctx context.Context, id domain.AccountID,
	amount, claimedPointsSoFar, discount decimal.Decimal,
) (*ports.SettleResult, error) {
	args := m.Called(ctx, id, amount, claimedPointsSoFar, discount)
	var res *ports.SettleResult
	if v := args.Get(0); v != nil {
		res = v.(*ports.SettleResult)
	}
	return res, args.Error(1)
}

func (m *mockLedger) GetWithdrawableBalance(
	_ context.Context, id domain.AccountID,
) (decimal.Decimal, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if err := m.checkReachable(id); err != nil {
		return decimal.Zero, err
	}
	return m.withdrawable[id], nil
}

func (m *mockLedger) CurrentBlock(context.Context) (uint64, error) {
	return 0, nil
}

func (m *mockLedger) Close() {}

type testEnv struct {
	svc       application.Service
	ledger    *mockLedger
	repo      ports.RepoManager
	liveStore ports.LiveStore
}

func defaultTestConfig() application.Config {
	return application.Config{
		PointsFactor:         decimal.NewFromInt(100),
		MatchingRate:         decimal.NewFromInt(10),
		ClaimDiscountPercent: decimal.Zero,
		LedgerDecimals:       18,
		MaxWalkDepth:         1000,
	}
}

func newTestEnv(t *testing.T, cfg application.Config) *testEnv {
	t.Helper()
	return newTestEnvWithStore(t, cfg, db.ServiceConfig{
		DataStoreType:   "badger",
		DataStoreConfig: []interface{}{"", nil},
	})
}

// newSqliteTestEnv backs the service with a store that honors context
// cancellation.
func newSqliteTestEnv(t *testing.T, cfg application.Config) *testEnv {
	t.Helper()
	return newTestEnvWithStore(t, cfg, db.ServiceConfig{
		DataStoreType:   "sqlite",
		DataStoreConfig: []interface{}{t.TempDir()},
	})
}

func newTestEnvWithStore(
	t *testing.T, cfg application.Config, dbCfg db.ServiceConfig,
) *testEnv {
	t.Helper()

	repo, err := db.NewService(dbCfg)
	require.NoError(t, err)

	ledger := newMockLedger()
	liveStore := inmemorylivestore.NewLiveStore()

	svc, err := application.NewService(ledger, repo, liveStore, nil, nil, cfg)
	require.NoError(t, err)
	t.Cleanup(svc.Stop)

	return &testEnv{svc, ledger, repo, liveStore}
}

// seed writes accounts straight into the store, bypassing the engine.
func (e *testEnv) seed(t *testing.T, accounts ...*domain.Account) {
	t.Helper()
	require.NoError(t, e.repo.Accounts().Save(t.Context(), accounts...))
}

func (e *testEnv) node(t *testing.T, id domain.AccountID) *application.AccountView {
	t.Helper()
	view, err := e.svc.GetNode(t.Context(), id)
	require.NoError(t, err)
	return view
}

func (e *testEnv) sweep(t *testing.T) *application.SweepReport {
	t.Helper()
	report, err := e.svc.RunSweep(t.Context())
	require.NoError(t, err)
	return report
}

// requireTreeInvariants checks bidirectional consistency and acyclicity over
// every stored account.
func (e *testEnv) requireTreeInvariants(t *testing.T) {
	t.Helper()
	ctx := t.Context()

	ids, err := e.repo.Accounts().ListIDsByBlockDesc(ctx)
	require.NoError(t, err)
	accounts, err := e.repo.Accounts().GetMany(ctx, ids)
	require.NoError(t, err)

	byID := make(map[domain.AccountID]*domain.Account, len(accounts))
	for _, account := range accounts {
		byID[account.ID] = account
	}

	for _, account := range accounts {
		for _, side := range []domain.Side{domain.SideLeft, domain.SideRight} {
			childID := account.Child(side)
			if childID.IsZero() {
				continue
			}
			child, ok := byID[childID]
			require.True(t, ok, "dangling child %s of %s", childID, account.ID)
			require.Equal(t, account.ID, child.Parent, "child %s of %s", childID, account.ID)
			require.Equal(t, side, child.ParentSide)
		}

		if account.HasParent() {
			parent, ok := byID[account.Parent]
			require.True(t, ok)
			require.Equal(t, account.ID, parent.Child(account.ParentSide))
		}

		visited := map[domain.AccountID]struct{}{account.ID: {}}
		current := account
		for current.HasParent() {
			_, seen := visited[current.Parent]
			require.False(t, seen, "account %s is its own ancestor", account.ID)
			visited[current.Parent] = struct{}{}
			current = byID[current.Parent]
		}
	}
}

func newSeedAccount(id domain.AccountID, blockID uint64) *domain.Account {
	account := domain.NewAccount(id)
	account.Registered = true
	account.BlockID = blockID
	return account
}

func TestNewService(t *testing.T) {
	repo, err := db.NewService(db.ServiceConfig{
		DataStoreType:   "badger",
		DataStoreConfig: []interface{}{"", nil},
	})
	require.NoError(t, err)
	defer repo.Close()

	cfg := defaultTestConfig()
	_, err = application.NewService(nil, repo, inmemorylivestore.NewLiveStore(), nil, nil, cfg)
	require.Error(t, err)

	cfg.ClaimDiscountPercent = decimal.NewFromInt(150)
	_, err = application.NewService(
		newMockLedger(), repo, inmemorylivestore.NewLiveStore(), nil, nil, cfg,
	)
	require.Error(t, err)

	cfg = defaultTestConfig()
	cfg.MatchingRate = decimal.NewFromInt(-1)
	_, err = application.NewService(
		newMockLedger(), repo, inmemorylivestore.NewLiveStore(), nil, nil, cfg,
	)
	require.Error(t, err)
}

func TestGetNode(t *testing.T) {
	env := newTestEnv(t, defaultTestConfig())

	_, err := env.svc.GetNode(t.Context(), alice)
	require.Error(t, err)
	require.True(t, errors.ACCOUNT_NOT_FOUND.Is(err))

	env.seed(t, newSeedAccount(alice, 1))
	view := env.node(t, alice)
	require.Equal(t, alice, view.ID)
	require.True(t, view.Claimable.IsZero())
	require.True(t, view.Stale)
}

func TestRefresh(t *testing.T) {
	env := newTestEnv(t, defaultTestConfig())
	env.ledger.register(root, 1, domain.NoAccount, domain.SideLeft, 1000)
	env.ledger.register(alice, 2, root, domain.SideRight, 400)

	view, err := env.svc.Refresh(t.Context(), alice)
	require.NoError(t, err)
	require.Equal(t, application.PlacementPlaced, view.Placement)
	require.Equal(t, root, view.Parent)
	require.Equal(t, domain.SideRight, view.ParentSide)
	require.Equal(t, uint64(2), view.BlockID)
	require.True(t, view.InvestedAmount.Equal(decimal.NewFromInt(400)))

	// the referrer is created lazily and holds the slot
	rootView := env.node(t, root)
	require.Equal(t, alice, rootView.RightChild)
	require.Zero(t, rootView.BlockID)

	view, err = env.svc.Refresh(t.Context(), root)
	require.NoError(t, err)
	require.Equal(t, application.PlacementNoReferrer, view.Placement)
	require.Equal(t, uint64(1), view.BlockID)
	require.True(t, view.Right.TotalPoints.Value().Equal(decimal.NewFromInt(400)))
	require.Equal(t, uint64(1), view.Right.PersonCount.Value())

	view, err = env.svc.Refresh(t.Context(), alice)
	require.NoError(t, err)
	require.Equal(t, application.PlacementAlreadyCorrect, view.Placement)

	_, err = env.svc.Refresh(t.Context(), domain.NoAccount)
	require.Error(t, err)
	require.True(t, errors.INVALID_ARGUMENT.Is(err))

	env.ledger.setUnreachable(bob, true)
	_, err = env.svc.Refresh(t.Context(), bob)
	require.Error(t, err)
	require.True(t, errors.TRANSIENT_LEDGER.Is(err))
	_, err = env.svc.GetNode(t.Context(), bob)
	require.True(t, errors.ACCOUNT_NOT_FOUND.Is(err))

	env.requireTreeInvariants(t)
}

func TestLedgerSync(t *testing.T) {
	env := newTestEnv(t, defaultTestConfig())
	env.ledger.register(alice, 7, domain.NoAccount, domain.SideLeft, 300)

	startedAt := time.Unix(1749818000, 0)
	env.ledger.deposits[alice] = []ports.LedgerDeposit{
		{
			StartedAt:    startedAt,
			Value:        decimal.NewFromInt(100),
			PayoutFactor: decimal.NewFromInt(2),
			Withdrawn:    decimal.Zero,
		},
		{
			StartedAt:    startedAt,
			Value:        decimal.NewFromInt(200),
			PayoutFactor: decimal.NewFromInt(2),
			Withdrawn:    decimal.NewFromInt(10),
		},
		{
			StartedAt:    startedAt,
			Value:        decimal.NewFromInt(50),
			PayoutFactor: decimal.NewFromInt(3),
			Withdrawn:    decimal.Zero,
			Leader:       true,
		},
	}

	view, err := env.svc.Refresh(t.Context(), alice)
	require.NoError(t, err)
	require.True(t, view.Registered)
	require.True(t, view.InvestedAmount.Equal(decimal.NewFromInt(300)))
	require.True(t, view.LeaderInvestedAmount.Equal(decimal.NewFromInt(50)))
	require.Len(t, view.Deposits, 3)
	require.Equal(
		t, startedAt.Add(300*24*time.Hour).Unix(), view.Deposits[0].ExpiresAt.Unix(),
	)
	require.False(t, view.LedgerSyncedAt.IsZero())

	// a lower read is stale and the block id is never reassigned
	env.ledger.deposits[alice] = nil
	env.ledger.register(alice, 99, domain.NoAccount, domain.SideLeft, 100)

	view, err = env.svc.Refresh(t.Context(), alice)
	require.NoError(t, err)
	require.True(t, view.InvestedAmount.Equal(decimal.NewFromInt(300)))
	require.Equal(t, uint64(7), view.BlockID)
}

func TestTrack(t *testing.T) {
	env := newTestEnv(t, defaultTestConfig())

	count, err := env.svc.Track(t.Context(), alice, bob, domain.NoAccount)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	count, err = env.svc.Track(t.Context(), alice, carol)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	view := env.node(t, carol)
	require.False(t, view.Registered)
	require.True(t, view.InvestedAmount.IsZero())
}

func TestCreditExtraPoints(t *testing.T) {
	env := newTestEnv(t, defaultTestConfig())

	account := newSeedAccount(alice, 1)
	account.Left.TotalPoints.Merge(decimal.NewFromInt(100))
	account.Right.TotalPoints.Merge(decimal.NewFromInt(40))
	account.RefreshActivePoints()
	env.seed(t, account)

	_, err := env.svc.CreditExtraPoints(t.Context(), alice, domain.SideRight, decimal.Zero)
	require.Error(t, err)
	require.True(t, errors.INVALID_ARGUMENT.Is(err))

	_, err = env.svc.CreditExtraPoints(t.Context(), bob, domain.SideRight, decimal.NewFromInt(1))
	require.True(t, errors.ACCOUNT_NOT_FOUND.Is(err))

	view, err := env.svc.CreditExtraPoints(
		t.Context(), alice, domain.SideRight, decimal.NewFromInt(35),
	)
	require.NoError(t, err)
	require.True(t, view.Right.ExtraPoints.Equal(decimal.NewFromInt(35)))
	require.True(t, view.ActivePoints.Equal(decimal.NewFromInt(75)))
	require.True(t, view.Claimable.Equal(decimal.RequireFromString("7.5")))

	view = env.node(t, alice)
	require.True(t, view.ActivePoints.Equal(decimal.NewFromInt(75)))
}

func TestGetWithdrawable(t *testing.T) {
	env := newTestEnv(t, defaultTestConfig())

	account := newSeedAccount(alice, 1)
	account.RetirableAccumulated = decimal.NewFromInt(50)
	env.seed(t, account)
	env.ledger.withdrawable[alice] = decimal.NewFromInt(80)

	balance, err := env.svc.GetWithdrawable(t.Context(), alice)
	require.NoError(t, err)
	require.True(t, balance.Ledger.Equal(decimal.NewFromInt(80)))
	require.True(t, balance.Local.Equal(decimal.NewFromInt(50)))

	balance, err = env.svc.GetWithdrawable(t.Context(), bob)
	require.NoError(t, err)
	require.True(t, balance.Local.IsZero())

	env.ledger.setUnreachable(alice, true)
	_, err = env.svc.GetWithdrawable(t.Context(), alice)
	require.True(t, errors.TRANSIENT_LEDGER.Is(err))
}
