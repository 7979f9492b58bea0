package errors

import (
	"encoding/json"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Code is the type representing a namespace error code.
type Code[MT any] struct {
	Code uint16
	Name string
	// Transient errors leave the system unchanged and can be retried later.
	Transient bool
}

// New creates a new error with the given code and the message
func (c Code[MT]) New(msg string, args ...any) TypedError[MT] {
	return &ErrorImpl[MT]{
		code:  c,
		cause: fmt.Errorf(msg, args...),
	}
}

// Wrap creates a new Error with the given code and the cause error
func (c Code[MT]) Wrap(cause error) TypedError[MT] {
	return &ErrorImpl[MT]{
		code:  c,
		cause: cause,
	}
}

// Is reports whether any error in err's chain carries this code.
func (c Code[MT]) Is(err error) bool {
	var e Error
	if errors.As(err, &e) {
		return e.Code() == c.Code
	}
	return false
}

func (c Code[MT]) String() string {
	return fmt.Sprintf("%s (%d)", c.Name, c.Code)
}

type Error interface {
	error
	Log() *log.Entry
	Code() uint16
	CodeName() string
	IsTransient() bool
	Metadata() map[string]string
}

type TypedError[MT any] interface {
	Error
	WithMetadata(MT) TypedError[MT]
}

// ErrorImpl is the default concrete implementation of TypedError.
type ErrorImpl[MT any] struct {
	code     Code[MT]
	cause    error
	metadata MT
}

func (e *ErrorImpl[MT]) Log() *log.Entry {
	return log.WithField("name", e.code.Name).
		WithField("code", e.code.Code).
		WithField("metadata", e.metadata)
}

func (e *ErrorImpl[MT]) Metadata() map[string]string {
	// convert any metadata to map[string]string
	metadata := make(map[string]string)
	buf, err := json.Marshal(e.metadata)
	if err == nil {
		var genericMap map[string]any
		if err := json.Unmarshal(buf, &genericMap); err == nil {
			for k, v := range genericMap {
				vStr := ""
				if v != nil {
					vStr = fmt.Sprintf("%v", v)
				}
				metadata[k] = vStr
			}
		}
	}
	return metadata
}

func (e *ErrorImpl[MT]) IsTransient() bool {
	return e.code.Transient
}

func (e *ErrorImpl[MT]) Code() uint16 {
	return e.code.Code
}

func (e *ErrorImpl[MT]) CodeName() string {
	return e.code.Name
}

// Error() implements the error interface.
func (e *ErrorImpl[MT]) Error() string {
	return fmt.Sprintf("%s: %s", e.code.String(), e.cause.Error())
}

func (e *ErrorImpl[MT]) Unwrap() error {
	return e.cause
}

func (e *ErrorImpl[MT]) WithMetadata(metadata MT) TypedError[MT] {
	e.metadata = metadata
	return e
}

type AccountMetadata struct {
	Account string `json:"account"`
}

type LedgerCallMetadata struct {
	Account   string `json:"account,omitempty"`
	Method    string `json:"method"`
	Endpoint  string `json:"endpoint,omitempty"`
	Attempts  int    `json:"attempts,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

type PlacementConflictMetadata struct {
	Parent      string `json:"parent"`
	Side        string `json:"side"`
	Winner      string `json:"winner"`
	Loser       string `json:"loser"`
	WinnerBlock uint64 `json:"winner_block"`
	LoserBlock  uint64 `json:"loser_block"`
}

type SettlementMetadata struct {
	Account      string `json:"account"`
	SettlementID string `json:"settlement_id"`
	Amount       string `json:"amount"`
	TxRef        string `json:"tx_ref,omitempty"`
}

type CooldownMetadata struct {
	Account     string `json:"account"`
	LastClaimAt int64  `json:"last_claim_at"`
	NextClaimAt int64  `json:"next_claim_at"`
}

type ConfigMetadata struct {
	Field string `json:"field"`
}

var INTERNAL_ERROR = Code[map[string]any]{0, "INTERNAL_ERROR", false}
var TRANSIENT_LEDGER = Code[LedgerCallMetadata]{1, "TRANSIENT_LEDGER", true}
var PLACEMENT_CONFLICT = Code[PlacementConflictMetadata]{2, "PLACEMENT_CONFLICT", false}
var AMBIGUOUS_SETTLEMENT = Code[SettlementMetadata]{3, "AMBIGUOUS_SETTLEMENT", false}
var SETTLEMENT_FAILURE = Code[SettlementMetadata]{4, "SETTLEMENT_FAILURE", false}
var FATAL_CONFIG = Code[ConfigMetadata]{5, "FATAL_CONFIG", false}
var ACCOUNT_NOT_FOUND = Code[AccountMetadata]{6, "ACCOUNT_NOT_FOUND", false}
var CLAIM_IN_PROGRESS = Code[AccountMetadata]{7, "CLAIM_IN_PROGRESS", true}
var CLAIM_COOLDOWN = Code[CooldownMetadata]{8, "CLAIM_COOLDOWN", true}
var SWEEP_IN_PROGRESS = Code[any]{9, "SWEEP_IN_PROGRESS", true}
var INVALID_ARGUMENT = Code[map[string]any]{10, "INVALID_ARGUMENT", false}
var WALK_TOO_DEEP = Code[AccountMetadata]{11, "WALK_TOO_DEEP", false}
