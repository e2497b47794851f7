// Package verify runs one wallet verification end to end:
// validate → query → decide → persist → report.
//
// Every call ends in exactly one Outcome. A failed query is reported as "not
// a member" (Report.QueryFailed is set so callers and logs can tell it
// apart), and a failed write never changes what is reported.
package verify

import (
	"context"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/maybehotcarl/nftbot/pkg/ledger"
	"github.com/maybehotcarl/nftbot/pkg/nftcheck"
)

// Accepted address length range, in characters.
const (
	MinAddressLen = 32
	MaxAddressLen = 44
)

// ValidAddress reports whether text has the length of a Solana address.
// The alphabet is not checked.
func ValidAddress(text string) bool {
	n := utf8.RuneCountInString(text)
	return n >= MinAddressLen && n <= MaxAddressLen
}

// Outcome is the terminal state of a verification.
type Outcome int

const (
	OutcomeRejected Outcome = iota
	OutcomeMember
	OutcomeNotMember
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMember:
		return "member"
	case OutcomeNotMember:
		return "not-member"
	default:
		return "rejected"
	}
}

// Report is what Verify returns to its caller.
type Report struct {
	RequestID   string
	Address     string
	Outcome     Outcome
	Ownership   nftcheck.Ownership
	QueryFailed bool
	Persist     ledger.UpsertResult
}

// Member reports whether the wallet was found to hold the collection.
func (r Report) Member() bool { return r.Outcome == OutcomeMember }

// Ledger records the latest membership of a wallet.
type Ledger interface {
	Upsert(ctx context.Context, address string, hasNFT bool) ledger.UpsertResult
}

// Service verifies wallets against one collection.
type Service struct {
	assets       nftcheck.AssetSource
	ledger       Ledger
	collectionID string
	log          *zap.Logger
}

// New creates a verification service. logger may be nil.
func New(assets nftcheck.AssetSource, store Ledger, collectionID string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		assets:       assets,
		ledger:       store,
		collectionID: collectionID,
		log:          logger.Named("verify"),
	}
}

// run carries state between pipeline stages.
type run struct {
	report Report
	query  nftcheck.QueryResult
	log    *zap.Logger
}

// stage advances a run; returning false stops the pipeline with the report as is.
type stage func(ctx context.Context, r *run) bool

// Verify checks address and records the result. It never returns an error.
func (s *Service) Verify(ctx context.Context, address string) Report {
	r := &run{report: Report{RequestID: uuid.NewString(), Address: address}}
	r.log = s.log.With(zap.String("request_id", r.report.RequestID), zap.String("address", address))

	for _, st := range []stage{s.validate, s.query, s.decide, s.persist} {
		if !st(ctx, r) {
			break
		}
	}

	r.log.Debug("verification finished",
		zap.Stringer("outcome", r.report.Outcome),
		zap.Bool("query_failed", r.report.QueryFailed),
		zap.Bool("persisted", r.report.Persist.OK()),
	)
	return r.report
}

func (s *Service) validate(_ context.Context, r *run) bool {
	if !ValidAddress(r.report.Address) {
		r.report.Outcome = OutcomeRejected
		r.log.Debug("rejected address", zap.Int("length", utf8.RuneCountInString(r.report.Address)))
		return false
	}
	return true
}

func (s *Service) query(ctx context.Context, r *run) bool {
	r.query = s.assets.AssetsByOwner(ctx, r.report.Address)
	return true
}

func (s *Service) decide(_ context.Context, r *run) bool {
	r.report.Ownership = nftcheck.Decide(r.query, s.collectionID)
	switch r.report.Ownership {
	case nftcheck.Owns:
		r.report.Outcome = OutcomeMember
		r.log.Info("found asset from collection", zap.String("collection", s.collectionID))
	case nftcheck.QueryFailed:
		r.report.Outcome = OutcomeNotMember
		r.report.QueryFailed = true
		r.log.Warn("ownership unknown, reporting as not a member", zap.Error(r.query.Err))
	default:
		r.report.Outcome = OutcomeNotMember
	}
	return true
}

// persist records the decision. A failed write is kept on the report and
// otherwise ignored.
func (s *Service) persist(ctx context.Context, r *run) bool {
	r.report.Persist = s.ledger.Upsert(ctx, r.report.Address, r.report.Outcome == OutcomeMember)
	return true
}
