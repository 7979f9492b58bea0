package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/binaryplan/binaryd/internal/core/application"
	"github.com/binaryplan/binaryd/internal/core/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
)

const (
	accountFlagName = "account"
	sideFlagName    = "side"
	amountFlagName  = "amount"
)

var (
	accountFlag = &cli.StringFlag{
		Name:     accountFlagName,
		Usage:    "wallet address of the account",
		Required: true,
	}
	accountsFlag = &cli.StringSliceFlag{
		Name:     accountFlagName,
		Usage:    "wallet addresses of the accounts, repeat the flag for each one",
		Required: true,
	}
	sideFlag = &cli.StringFlag{
		Name:     sideFlagName,
		Usage:    "leg to credit (left, right)",
		Required: true,
	}
	amountFlag = &cli.StringFlag{
		Name:     amountFlagName,
		Usage:    "amount of extra points to credit",
		Required: true,
	}
)

var (
	sweepCmd = cli.Command{
		Name:   "sweep",
		Usage:  "Run one reconciliation pass over every known account",
		Action: sweepAction,
	}
	nodeCmd = cli.Command{
		Name:   "node",
		Usage:  "Show the stored snapshot of an account",
		Flags:  []cli.Flag{accountFlag},
		Action: nodeAction,
	}
	refreshCmd = cli.Command{
		Name:   "refresh",
		Usage:  "Sync, place and aggregate a single account",
		Flags:  []cli.Flag{accountFlag},
		Action: refreshAction,
	}
	claimableCmd = cli.Command{
		Name:   "claimable",
		Usage:  "Show the amount an account can claim",
		Flags:  []cli.Flag{accountFlag},
		Action: claimableAction,
	}
	claimCmd = cli.Command{
		Name:   "claim",
		Usage:  "Settle the matching bonus of an account on the ledger",
		Flags:  []cli.Flag{accountFlag},
		Action: claimAction,
	}
	settlementsCmd = cli.Command{
		Name:   "settlements",
		Usage:  "List the claim history of an account",
		Flags:  []cli.Flag{accountFlag},
		Action: settlementsAction,
	}
	withdrawableCmd = cli.Command{
		Name:   "withdrawable",
		Usage:  "Compare the ledger withdrawable balance with the locally settled amount",
		Flags:  []cli.Flag{accountFlag},
		Action: withdrawableAction,
	}
	creditCmd = cli.Command{
		Name:   "credit",
		Usage:  "Credit extra points to a leg of an account",
		Flags:  []cli.Flag{accountFlag, sideFlag, amountFlag},
		Action: creditAction,
	}
	orphansCmd = cli.Command{
		Name:   "orphans",
		Usage:  "List the accounts flagged as orphan candidates",
		Action: orphansAction,
	}
	trackCmd = cli.Command{
		Name:   "track",
		Usage:  "Add accounts to the set reconciled by the sweep",
		Flags:  []cli.Flag{accountsFlag},
		Action: trackAction,
	}
	statusCmd = cli.Command{
		Name:   "status",
		Usage:  "Show the state of the reconciliation pass",
		Action: statusAction,
	}
)

func sweepAction(ctx *cli.Context) error {
	return withService(ctx, func(c context.Context, svc application.Service) error {
		report, err := svc.RunSweep(c)
		if err != nil {
			return err
		}
		return printJSON(report)
	})
}

func nodeAction(ctx *cli.Context) error {
	id, err := parseAccount(ctx.String(accountFlagName))
	if err != nil {
		return err
	}
	return withService(ctx, func(c context.Context, svc application.Service) error {
		view, err := svc.GetNode(c, id)
		if err != nil {
			return err
		}
		return printJSON(view)
	})
}

func refreshAction(ctx *cli.Context) error {
	id, err := parseAccount(ctx.String(accountFlagName))
	if err != nil {
		return err
	}
	return withService(ctx, func(c context.Context, svc application.Service) error {
		view, err := svc.Refresh(c, id)
		if err != nil {
			return err
		}
		return printJSON(view)
	})
}

func claimableAction(ctx *cli.Context) error {
	id, err := parseAccount(ctx.String(accountFlagName))
	if err != nil {
		return err
	}
	return withService(ctx, func(c context.Context, svc application.Service) error {
		amount, err := svc.ComputeClaimable(c, id)
		if err != nil {
			return err
		}
		return printJSON(map[string]string{"claimable": amount.String()})
	})
}

func claimAction(ctx *cli.Context) error {
	id, err := parseAccount(ctx.String(accountFlagName))
	if err != nil {
		return err
	}

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	if err := cfg.RequireSigner(); err != nil {
		return err
	}
	svc, err := cfg.AppService()
	if err != nil {
		return err
	}
	defer svc.Stop()

	c, cancel := signalContext(ctx.Context)
	defer cancel()

	res, cerr := svc.Claim(c, id)
	if cerr != nil {
		return cerr
	}
	return printJSON(res)
}

func settlementsAction(ctx *cli.Context) error {
	id, err := parseAccount(ctx.String(accountFlagName))
	if err != nil {
		return err
	}
	return withService(ctx, func(c context.Context, svc application.Service) error {
		settlements, err := svc.ListSettlements(c, id)
		if err != nil {
			return err
		}
		return printJSON(settlements)
	})
}

func withdrawableAction(ctx *cli.Context) error {
	id, err := parseAccount(ctx.String(accountFlagName))
	if err != nil {
		return err
	}
	return withService(ctx, func(c context.Context, svc application.Service) error {
		balance, err := svc.GetWithdrawable(c, id)
		if err != nil {
			return err
		}
		return printJSON(balance)
	})
}

func creditAction(ctx *cli.Context) error {
	id, err := parseAccount(ctx.String(accountFlagName))
	if err != nil {
		return err
	}
	side, err := domain.ParseSide(ctx.String(sideFlagName))
	if err != nil {
		return err
	}
	amount, err := decimal.NewFromString(ctx.String(amountFlagName))
	if err != nil {
		return fmt.Errorf("invalid amount: %s", err)
	}

	return withService(ctx, func(c context.Context, svc application.Service) error {
		view, err := svc.CreditExtraPoints(c, id, side, amount)
		if err != nil {
			return err
		}
		return printJSON(view)
	})
}

func orphansAction(ctx *cli.Context) error {
	return withService(ctx, func(c context.Context, svc application.Service) error {
		accounts, err := svc.ListOrphanCandidates(c)
		if err != nil {
			return err
		}
		ids := make([]string, 0, len(accounts))
		for _, account := range accounts {
			ids = append(ids, account.ID.String())
		}
		return printJSON(ids)
	})
}

func trackAction(ctx *cli.Context) error {
	addresses := ctx.StringSlice(accountFlagName)
	ids := make([]domain.AccountID, 0, len(addresses))
	for _, address := range addresses {
		id, err := parseAccount(address)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}

	return withService(ctx, func(c context.Context, svc application.Service) error {
		count, err := svc.Track(c, ids...)
		if err != nil {
			return err
		}
		return printJSON(map[string]int{"tracked": count})
	})
}

func statusAction(ctx *cli.Context) error {
	return withService(ctx, func(c context.Context, svc application.Service) error {
		status, err := svc.SweepStatus(c)
		if err != nil {
			return err
		}
		stale, err := svc.GetStaleness(c)
		if err != nil {
			return err
		}
		return printJSON(map[string]any{"stale": stale, "sweep": status})
	})
}

// withService runs fn against a fully wired service that is stopped on return.
// The context is canceled on SIGINT or SIGTERM.
func withService(
	ctx *cli.Context, fn func(context.Context, application.Service) error,
) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	svc, err := cfg.AppService()
	if err != nil {
		return err
	}
	defer svc.Stop()

	c, cancel := signalContext(ctx.Context)
	defer cancel()

	return fn(c, svc)
}

func signalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

func parseAccount(address string) (domain.AccountID, error) {
	if !common.IsHexAddress(address) {
		return domain.NoAccount, fmt.Errorf("invalid account address %q", address)
	}
	id := domain.NewAccountID(address)
	if id.IsZero() {
		return domain.NoAccount, fmt.Errorf("invalid account address %q", address)
	}
	return id, nil
}

func printJSON(resp interface{}) error {
	jsonBytes, err := json.MarshalIndent(resp, "", "\t")
	if err != nil {
		return err
	}
	fmt.Println(string(jsonBytes))
	return nil
}
