// Package catalog holds the set of known markets keyed by outcome token id.
// Lookups run on the ingestion hot path, so the catalog is an immutable
// snapshot behind an atomic pointer: refreshes build a new snapshot and swap
// it in, and readers always see a self-consistent view.
package catalog

import (
	"strings"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/polyindexer/internal/ctf"
	"github.com/alanyoungcy/polyindexer/internal/domain"
)

// Entry is the result of resolving a token id: the owning market and which
// outcome the token represents.
type Entry struct {
	Market  domain.Market
	Outcome domain.Outcome
}

// Snapshot is an immutable token-id index over a set of markets. It must not
// be mutated after construction.
type Snapshot struct {
	byToken     map[string]Entry
	byCondition map[string]domain.Market
}

// NewSnapshot builds a snapshot from the given markets. Token ids are
// lower-cased so lookups are case-insensitive on hex input. A market whose
// yes and no token ids are identical is skipped: it cannot be resolved to an
// outcome unambiguously.
func NewSnapshot(markets []domain.Market) *Snapshot {
	s := &Snapshot{
		byToken:     make(map[string]Entry, 2*len(markets)),
		byCondition: make(map[string]domain.Market, len(markets)),
	}
	for _, m := range markets {
		if m.YesTokenID != "" && strings.EqualFold(m.YesTokenID, m.NoTokenID) {
			// Identical outcome ids cannot be resolved to a side; indexing
			// the pair would silently map the token to whichever side wrote
			// last. Leave the market out entirely.
			continue
		}
		if m.YesTokenID != "" {
			s.byToken[strings.ToLower(m.YesTokenID)] = Entry{Market: m, Outcome: domain.OutcomeYes}
		}
		if m.NoTokenID != "" {
			s.byToken[strings.ToLower(m.NoTokenID)] = Entry{Market: m, Outcome: domain.OutcomeNo}
		}
		if m.ConditionID != "" {
			s.byCondition[strings.ToLower(m.ConditionID)] = m
		}
	}
	return s
}

// Resolve looks up a token id. The second return is false when the token
// belongs to a market outside the catalog scope; that is not an error, the
// caller counts it as an unmatched trade.
func (s *Snapshot) Resolve(tokenID string) (Entry, bool) {
	e, ok := s.byToken[strings.ToLower(tokenID)]
	return e, ok
}

// ByCondition looks up a market by its condition id.
func (s *Snapshot) ByCondition(conditionID string) (domain.Market, bool) {
	m, ok := s.byCondition[strings.ToLower(conditionID)]
	return m, ok
}

// Size returns the number of indexed token ids.
func (s *Snapshot) Size() int {
	return len(s.byToken)
}

// Catalog is the shared holder of the current snapshot. Reads are wait-free;
// Swap publishes a complete replacement snapshot.
type Catalog struct {
	snap atomic.Pointer[Snapshot]
}

// New creates a Catalog holding an empty snapshot.
func New() *Catalog {
	c := &Catalog{}
	c.snap.Store(NewSnapshot(nil))
	return c
}

// Snapshot returns the current snapshot. The caller may use it for any number
// of lookups; it stays self-consistent even across a concurrent Swap.
func (c *Catalog) Snapshot() *Snapshot {
	return c.snap.Load()
}

// Swap atomically publishes a new snapshot.
func (c *Catalog) Swap(s *Snapshot) {
	c.snap.Store(s)
}

// Resolve resolves against the current snapshot.
func (c *Catalog) Resolve(tokenID string) (Entry, bool) {
	return c.Snapshot().Resolve(tokenID)
}

// VerifyMarket cross-checks a market's published token ids against ids
// independently derived from its condition parameters and sets the Verified
// flag. Published ids are never corrected: on mismatch the market keeps the
// published ids with Verified=false. When the published ids are missing
// entirely, the derived pair is filled in and the market stays unverified
// (there was nothing to cross-check). A derivation that needed the
// condition-id-for-question-id fallback is likewise never marked verified.
//
// Markets without a condition id cannot be derived at all and are returned
// unchanged with Verified=false.
func VerifyMarket(m domain.Market, collateral common.Address) domain.Market {
	m.Verified = false
	if m.ConditionID == "" {
		return m
	}

	var questionID *common.Hash
	if m.QuestionID != "" {
		qid := common.HexToHash(m.QuestionID)
		questionID = &qid
	}

	var oracle common.Address
	if m.Oracle != "" {
		oracle = common.HexToAddress(m.Oracle)
	} else {
		// No oracle published: the condition id cannot be recomputed, so
		// derive positions from the published condition id directly.
		questionID = nil
	}

	d := ctf.DeriveBinaryMarket(oracle, questionID, common.HexToHash(m.ConditionID), collateral)

	yes := d.Tokens.Yes.Hex()
	no := d.Tokens.No.Hex()

	if m.YesTokenID == "" && m.NoTokenID == "" {
		m.YesTokenID = yes
		m.NoTokenID = no
		return m
	}

	if !d.Fallback &&
		strings.EqualFold(m.YesTokenID, yes) &&
		strings.EqualFold(m.NoTokenID, no) &&
		strings.EqualFold(m.ConditionID, d.ConditionID.Hex()) {
		m.Verified = true
	}
	return m
}
