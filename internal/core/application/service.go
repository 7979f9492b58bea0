package application

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/binaryplan/binaryd/internal/core/domain"
	"github.com/binaryplan/binaryd/internal/core/ports"
	"github.com/binaryplan/binaryd/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const (
	defaultMaxWalkDepth = 100000
	defaultClaimLockTTL = 5 * time.Minute
)

type service struct {
	// services
	ledger      ports.LedgerClient
	repoManager ports.RepoManager
	liveStore   ports.LiveStore
	scheduler   ports.SchedulerService
	alerts      ports.Alerts
	metrics     *metrics

	// config
	pointsFactor         decimal.Decimal
	matchingRate         decimal.Decimal
	claimDiscountPercent decimal.Decimal
	ledgerDecimals       int32
	maxWalkDepth         int
	claimCooldown        time.Duration
	claimLockTTL         time.Duration
	sweepInterval        int64
	sweepOnStart         bool

	// single writer of the tree store, never held across ledger calls
	writeLock *sync.Mutex

	planDurationLock *sync.Mutex
	planDuration     *time.Duration

	// stop and sweep go routine handlers
	stop func()
	ctx  context.Context
	wg   *sync.WaitGroup
}

func NewService(
	ledger ports.LedgerClient,
	repoManager ports.RepoManager,
	liveStore ports.LiveStore,
	scheduler ports.SchedulerService,
	alerts ports.Alerts,
	cfg Config,
) (Service, error) {
	if ledger == nil {
		return nil, fmt.Errorf("missing ledger client")
	}
	if repoManager == nil {
		return nil, fmt.Errorf("missing repo manager")
	}
	if liveStore == nil {
		return nil, fmt.Errorf("missing live store")
	}
	if cfg.PointsFactor.IsNegative() || cfg.MatchingRate.IsNegative() ||
		cfg.ClaimDiscountPercent.IsNegative() {
		return nil, fmt.Errorf("points factor, matching rate and discount must not be negative")
	}
	if cfg.ClaimDiscountPercent.GreaterThan(decimal.NewFromInt(100)) {
		return nil, fmt.Errorf("claim discount percent must be at most 100")
	}

	maxWalkDepth := cfg.MaxWalkDepth
	if maxWalkDepth <= 0 {
		maxWalkDepth = defaultMaxWalkDepth
	}
	claimLockTTL := cfg.ClaimLockTTL
	if claimLockTTL <= 0 {
		claimLockTTL = defaultClaimLockTTL
	}

	m, err := newMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %s", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &service{
		ledger:               ledger,
		repoManager:          repoManager,
		liveStore:            liveStore,
		scheduler:            scheduler,
		alerts:               alerts,
		metrics:              m,
		pointsFactor:         cfg.PointsFactor,
		matchingRate:         cfg.MatchingRate,
		claimDiscountPercent: cfg.ClaimDiscountPercent,
		ledgerDecimals:       cfg.LedgerDecimals,
		maxWalkDepth:         maxWalkDepth,
		claimCooldown:        cfg.ClaimCooldown,
		claimLockTTL:         claimLockTTL,
		sweepInterval:        cfg.SweepInterval,
		sweepOnStart:         cfg.SweepOnStart,
		writeLock:            &sync.Mutex{},
		planDurationLock:     &sync.Mutex{},
		stop:                 cancel,
		ctx:                  ctx,
		wg:                   &sync.WaitGroup{},
	}, nil
}

func (s *service) Start() errors.Error {
	if s.scheduler == nil {
		return nil
	}

	log.Debug("starting scheduler service...")
	s.scheduler.Start()

	if s.sweepInterval > 0 {
		if err := s.scheduler.ScheduleEvery(s.sweepInterval, s.scheduledSweep); err != nil {
			return errors.INTERNAL_ERROR.Wrap(
				fmt.Errorf("failed to schedule reconciliation: %w", err),
			)
		}
		log.Infof(
			"reconciliation scheduled every %d %ss", s.sweepInterval, s.scheduler.Unit(),
		)
	}

	if s.sweepOnStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.scheduledSweep()
		}()
	}
	return nil
}

func (s *service) Stop() {
	s.stop()
	if s.scheduler != nil {
		s.scheduler.Stop()
		log.Debug("stopped scheduler service")
	}
	s.wg.Wait()

	s.ledger.Close()
	log.Debug("closed connection to ledger")
	s.liveStore.Close()
	log.Debug("closed live store")
	s.repoManager.Close()
	log.Debug("closed connection to db")
}

func (s *service) GetNode(ctx context.Context, id domain.AccountID) (*AccountView, errors.Error) {
	account, err := s.repoManager.Accounts().Get(ctx, id)
	if err != nil {
		return nil, s.accountError(id, err)
	}
	return s.newAccountView(ctx, account, PlacementSkipped), nil
}

func (s *service) Refresh(ctx context.Context, id domain.AccountID) (*AccountView, errors.Error) {
	if id.IsZero() {
		return nil, errors.INVALID_ARGUMENT.New("missing account id")
	}

	result, err := s.processAccount(ctx, id)
	if err != nil {
		return nil, toError(err)
	}

	account, err := s.repoManager.Accounts().Get(ctx, id)
	if err != nil {
		return nil, s.accountError(id, err)
	}
	return s.newAccountView(ctx, account, result), nil
}

func (s *service) GetStaleness(ctx context.Context) (bool, errors.Error) {
	status, err := s.liveStore.Sweeps().Status(ctx)
	if err != nil {
		return true, errors.INTERNAL_ERROR.Wrap(err)
	}
	return isStale(status), nil
}

func (s *service) SweepStatus(ctx context.Context) (*ports.SweepStatus, errors.Error) {
	status, err := s.liveStore.Sweeps().Status(ctx)
	if err != nil {
		return nil, errors.INTERNAL_ERROR.Wrap(err)
	}
	return status, nil
}

func (s *service) Track(ctx context.Context, ids ...domain.AccountID) (int, errors.Error) {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	ws := newWorkingSet(ctx, s.repoManager.Accounts())
	for _, id := range ids {
		if id.IsZero() {
			continue
		}
		if _, err := ws.getOrCreate(id); err != nil {
			return 0, errors.INTERNAL_ERROR.Wrap(err)
		}
	}

	count := ws.created()
	if err := ws.commit(); err != nil {
		return 0, errors.INTERNAL_ERROR.Wrap(err)
	}
	if count > 0 {
		log.Infof("tracking %d new account(s)", count)
	}
	return count, nil
}

func (s *service) CreditExtraPoints(
	ctx context.Context, id domain.AccountID, side domain.Side, amount decimal.Decimal,
) (*AccountView, errors.Error) {
	if !amount.IsPositive() {
		return nil, errors.INVALID_ARGUMENT.New("extra points must be positive").
			WithMetadata(map[string]any{"amount": amount.String()})
	}

	s.writeLock.Lock()
	account, err := s.repoManager.Accounts().Get(ctx, id)
	if err != nil {
		s.writeLock.Unlock()
		return nil, s.accountError(id, err)
	}

	leg := account.Leg(side)
	leg.ExtraPoints = leg.ExtraPoints.Add(amount)
	account.RefreshActivePoints()
	err = s.repoManager.Accounts().Save(ctx, account)
	s.writeLock.Unlock()
	if err != nil {
		return nil, errors.INTERNAL_ERROR.Wrap(err)
	}

	log.WithField("account", id).Infof("credited %s extra points on %s leg", amount, side)
	return s.newAccountView(ctx, account, PlacementSkipped), nil
}

func (s *service) ListOrphanCandidates(ctx context.Context) ([]*domain.Account, errors.Error) {
	accounts, err := s.repoManager.Accounts().ListOrphanCandidates(ctx)
	if err != nil {
		return nil, errors.INTERNAL_ERROR.Wrap(err)
	}
	return accounts, nil
}

func (s *service) GetWithdrawable(
	ctx context.Context, id domain.AccountID,
) (*WithdrawableBalance, errors.Error) {
	local := decimal.Zero
	account, err := s.repoManager.Accounts().Get(ctx, id)
	if err != nil && !stderrors.Is(err, domain.ErrAccountNotFound) {
		return nil, errors.INTERNAL_ERROR.Wrap(err)
	}
	if account != nil {
		local = account.RetirableAccumulated
	}

	balance, err := s.ledger.GetWithdrawableBalance(ctx, id)
	if err != nil {
		return nil, toError(err)
	}
	if balance.LessThan(local) {
		log.WithField("account", id).Warnf(
			"ledger withdrawable balance %s is lower than locally settled amount %s",
			balance, local,
		)
	}

	return &WithdrawableBalance{Ledger: balance, Local: local}, nil
}

func (s *service) ListSettlements(
	ctx context.Context, id domain.AccountID,
) ([]*domain.Settlement, errors.Error) {
	settlements, err := s.repoManager.Settlements().GetByAccount(ctx, id)
	if err != nil {
		return nil, errors.INTERNAL_ERROR.Wrap(err)
	}
	return settlements, nil
}

func (s *service) newAccountView(
	ctx context.Context, account *domain.Account, placement PlacementResult,
) *AccountView {
	stale := true
	if status, err := s.liveStore.Sweeps().Status(ctx); err == nil {
		stale = isStale(status)
	}
	return &AccountView{
		Account:   *account,
		Claimable: s.claimableAmount(account.MatchedPoints()),
		Placement: placement,
		Stale:     stale,
	}
}

func (s *service) accountError(id domain.AccountID, err error) errors.Error {
	if stderrors.Is(err, domain.ErrAccountNotFound) {
		return errors.ACCOUNT_NOT_FOUND.New("account %s not found", id).
			WithMetadata(errors.AccountMetadata{Account: id.String()})
	}
	return errors.INTERNAL_ERROR.Wrap(err)
}

// isStale reports whether readers may observe a tree that is being reconciled
// or has never been reconciled at all.
func isStale(status *ports.SweepStatus) bool {
	return status.Running || status.LastCompleted.IsZero()
}

func toError(err error) errors.Error {
	var typed errors.Error
	if stderrors.As(err, &typed) {
		return typed
	}
	return errors.INTERNAL_ERROR.Wrap(err)
}
