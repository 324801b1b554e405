package gamma

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/alanyoungcy/polyindexer/internal/domain"
)

// APIEvent is the wire shape of a Gamma event document.
type APIEvent struct {
	Slug        string      `json:"slug"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	StartDate   *time.Time  `json:"startDate"`
	EndDate     *time.Time  `json:"endDate"`
	NegRisk     bool        `json:"negRisk"`
	Markets     []APIMarket `json:"markets"`
}

// APIMarket is the wire shape of a Gamma market document. The metadata
// service is loose about field shapes: token ids arrive as a JSON array of
// decimal strings, an array of numbers, or the whole array re-encoded as a
// JSON string. tokenIDList absorbs all of these; nothing past this package
// sees the ambiguous external shape.
type APIMarket struct {
	ID           string      `json:"id"`
	Slug         string      `json:"slug"`
	Question     string      `json:"question"`
	Description  string      `json:"description"`
	ConditionID  string      `json:"conditionId"`
	QuestionID   string      `json:"questionID"`
	ClobTokenIDs tokenIDList `json:"clobTokenIds"`
	NegRisk      bool        `json:"negRisk"`
	Active       bool        `json:"active"`
	Closed       bool        `json:"closed"`
}

// tokenIDList decodes the clobTokenIds field in any of its observed shapes
// and normalizes every entry to 0x-prefixed 64-character lowercase hex.
type tokenIDList []string

func (t *tokenIDList) UnmarshalJSON(data []byte) error {
	data = []byte(strings.TrimSpace(string(data)))
	if len(data) == 0 || string(data) == "null" {
		*t = nil
		return nil
	}

	// The array may be double-encoded as a JSON string.
	if data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return fmt.Errorf("gamma: decode clobTokenIds string: %w", err)
		}
		inner = strings.TrimSpace(inner)
		if inner == "" {
			*t = nil
			return nil
		}
		data = []byte(inner)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("gamma: decode clobTokenIds array: %w", err)
	}

	ids := make([]string, 0, len(raw))
	for _, r := range raw {
		var s string
		if err := json.Unmarshal(r, &s); err != nil {
			// Not a string: a bare JSON number. Keep its literal text so
			// large ids do not lose precision through float64.
			s = string(r)
		}
		norm, err := NormalizeTokenID(s)
		if err != nil {
			return err
		}
		ids = append(ids, norm)
	}
	*t = ids
	return nil
}

// NormalizeTokenID converts a token id in decimal or hex string form to the
// canonical 0x-prefixed 64-character lowercase hex representation.
func NormalizeTokenID(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("gamma: empty token id")
	}

	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	}
	n, ok := new(big.Int).SetString(s, base)
	if !ok {
		return "", fmt.Errorf("gamma: invalid token id %q", s)
	}
	if n.Sign() < 0 || n.BitLen() > 256 {
		return "", fmt.Errorf("gamma: token id %q out of range", s)
	}
	return fmt.Sprintf("0x%064x", n), nil
}

// ToDomainMarket converts an APIMarket to the internal representation.
// Verification flags are left to the catalog builder.
func (m *APIMarket) ToDomainMarket(eventSlug string) domain.Market {
	status := domain.MarketStatusActive
	if m.Closed || !m.Active {
		status = domain.MarketStatusClosed
	}

	var yes, no string
	if len(m.ClobTokenIDs) >= 2 {
		yes, no = m.ClobTokenIDs[0], m.ClobTokenIDs[1]
	}

	return domain.Market{
		ID:          m.ID,
		EventSlug:   eventSlug,
		Slug:        m.Slug,
		Question:    m.Question,
		ConditionID: strings.ToLower(m.ConditionID),
		QuestionID:  strings.ToLower(m.QuestionID),
		YesTokenID:  yes,
		NoTokenID:   no,
		NegRisk:     m.NegRisk,
		Status:      status,
	}
}

// ToDomainEvent converts an APIEvent to the internal representation.
func (e *APIEvent) ToDomainEvent() domain.Event {
	return domain.Event{
		Slug:        e.Slug,
		Title:       e.Title,
		Description: e.Description,
		NegRisk:     e.NegRisk,
		StartDate:   e.StartDate,
		EndDate:     e.EndDate,
	}
}
