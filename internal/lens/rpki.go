// Package lens holds the interpretation layer of spec.md §4.4: logic
// that sits above the dataset repositories and produces the validation
// verdicts, connectivity summaries, and unified inspect reports that
// internal/rpc/methods adapts into RPC responses. Lenses hold no raw
// SQL — they only call repositories and shape the result.
package lens

import (
	"context"
	"errors"
	"fmt"
	"net/netip"

	"github.com/rs/zerolog"

	"github.com/bgpkit/monocle/internal/refresh"
	"github.com/bgpkit/monocle/internal/repo"
)

// ErrNotInitialized is returned by cache-only lens methods when the
// backing dataset has never been loaded (spec.md §6.1, §8 "Cache-only
// query on empty cache -> terminal NotInitialized"). internal/rpc
// translates it to the NotInitialized protocol error.
var ErrNotInitialized = errors.New("lens: dataset not initialized")

// ValidationState is the RFC 6811 route origin validation verdict.
type ValidationState string

const (
	Valid    ValidationState = "Valid"
	Invalid  ValidationState = "Invalid"
	NotFound ValidationState = "NotFound"
)

// ValidationResult is rpki.validate's result shape (spec.md §8 scenario 1-2).
type ValidationResult struct {
	State        ValidationState `json:"state"`
	Reason       string          `json:"reason"`
	CoveringROAs []repo.ROA      `json:"covering_roas"`
}

// HistoricalFetcher fetches a ROA/ASPA snapshot directly from an
// archive endpoint for a given date, bypassing the cache entirely.
// This is the one RPC-path network call spec.md §4.4 allows: "the lens
// also exposes historical-date queries that bypass the cache and fetch
// directly from upstream".
type HistoricalFetcher interface {
	FetchROAsAt(ctx context.Context, date string) ([]repo.ROA, error)
}

// RPKILens implements spec.md §4.4's RPKI lens.
type RPKILens struct {
	zerolog.Logger

	roas       *repo.ROARepo
	aspas      *repo.ASPARepo
	coord      *refresh.Coordinator
	historical HistoricalFetcher
}

func NewRPKILens(logger zerolog.Logger, roas *repo.ROARepo, aspas *repo.ASPARepo, coord *refresh.Coordinator, historical HistoricalFetcher) *RPKILens {
	return &RPKILens{
		Logger:     logger.With().Str("component", "lens.rpki").Logger(),
		roas:       roas,
		aspas:      aspas,
		coord:      coord,
		historical: historical,
	}
}

const roaDataset = "rpki"

// Validate implements RFC 6811 route origin validation (spec.md §4.4):
//  1. empty covering set -> NotFound
//  2. any covering ROA with matching origin_asn and length(p) <= max_length -> Valid
//  3. otherwise -> Invalid
func (l *RPKILens) Validate(ctx context.Context, p netip.Prefix, asn uint32) (ValidationResult, error) {
	if err := l.checkInitialized(ctx); err != nil {
		return ValidationResult{}, err
	}

	covering, err := l.roas.GetCovering(ctx, p)
	if err != nil {
		return ValidationResult{}, fmt.Errorf("lens: rpki validate: %w", err)
	}

	if len(covering) == 0 {
		return ValidationResult{
			State:  NotFound,
			Reason: "no covering ROA found for this prefix",
		}, nil
	}

	for _, roa := range covering {
		if roa.OriginASN == asn && p.Bits() <= roa.MaxLength {
			return ValidationResult{
				State:        Valid,
				Reason:       fmt.Sprintf("covering ROA for AS%d permits prefix length up to /%d", asn, roa.MaxLength),
				CoveringROAs: covering,
			}, nil
		}
	}

	return ValidationResult{
		State:        Invalid,
		Reason:       "covering ROA(s) exist but none authorize this origin/length combination",
		CoveringROAs: covering,
	}, nil
}

// Roas returns every cached ROA whose origin ASN is asn; asn zero is
// rejected with an error (spec.md §6.1 "rpki.roas" — cache-only).
func (l *RPKILens) Roas(ctx context.Context, asn uint32) ([]repo.ROA, error) {
	if err := l.checkInitialized(ctx); err != nil {
		return nil, err
	}
	if asn == 0 {
		return nil, fmt.Errorf("lens: rpki roas: asn is required")
	}
	return l.roas.GetByASN(ctx, asn)
}

// Aspas returns the ASPA record for customerASN from cache.
func (l *RPKILens) Aspas(ctx context.Context, customerASN uint32) (*repo.ASPA, error) {
	if err := l.checkInitialized(ctx); err != nil {
		return nil, err
	}
	return l.aspas.Get(ctx, customerASN)
}

// ValidateAt performs validation against a historical snapshot for
// date, fetched directly from the archive rather than the cache.
func (l *RPKILens) ValidateAt(ctx context.Context, date string, p netip.Prefix, asn uint32) (ValidationResult, error) {
	if l.historical == nil {
		return ValidationResult{}, fmt.Errorf("lens: rpki historical queries not configured")
	}
	snapshot, err := l.historical.FetchROAsAt(ctx, date)
	if err != nil {
		return ValidationResult{}, fmt.Errorf("lens: rpki historical fetch %s: %w", date, err)
	}

	var covering []repo.ROA
	for _, roa := range snapshot {
		rp, err := netip.ParsePrefix(roa.Prefix)
		if err != nil {
			continue
		}
		if rp.Bits() <= p.Bits() && rp.Contains(p.Addr()) {
			covering = append(covering, roa)
		}
	}

	if len(covering) == 0 {
		return ValidationResult{State: NotFound, Reason: "no covering ROA found in historical snapshot"}, nil
	}
	for _, roa := range covering {
		if roa.OriginASN == asn && p.Bits() <= roa.MaxLength {
			return ValidationResult{State: Valid, CoveringROAs: covering,
				Reason: fmt.Sprintf("historical ROA for AS%d permits prefix length up to /%d", asn, roa.MaxLength)}, nil
		}
	}
	return ValidationResult{State: Invalid, CoveringROAs: covering,
		Reason: "covering historical ROA(s) exist but none authorize this origin/length combination"}, nil
}

// checkInitialized enforces the cache-only policy (spec.md §6.1): an
// Absent dataset fails fast with ErrNotInitialized rather than
// triggering a query-path fetch. Stale data is served as-is, matching
// spec.md §4.3's "opportunistic or as-is per the lens's policy".
func (l *RPKILens) checkInitialized(ctx context.Context) error {
	if l.coord == nil {
		return nil
	}
	state, err := l.coord.State(ctx, roaDataset)
	if err != nil {
		return fmt.Errorf("lens: rpki state: %w", err)
	}
	if state == refresh.Absent {
		return ErrNotInitialized
	}
	return nil
}
