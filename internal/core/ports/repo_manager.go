package ports

import "github.com/binaryplan/binaryd/internal/core/domain"

type RepoManager interface {
	Accounts() domain.AccountRepository
	Settlements() domain.SettlementRepository
	Close()
}
