package provider

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/nkiryanov/vtumart/internal/models"
)

// stringlike accepts both json strings and numbers, providers are not
// consistent about plan identifiers
type stringlike string

func (s *stringlike) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		*s = stringlike(asString)
		return nil
	}

	var asNumber json.Number
	if err := json.Unmarshal(data, &asNumber); err != nil {
		return fmt.Errorf("plan field is neither string nor number: %s", data)
	}

	*s = stringlike(asNumber.String())
	return nil
}

type planRecord struct {
	ID          stringlike       `json:"id"`
	DataPlan    stringlike       `json:"data_plan"`
	VariationID stringlike       `json:"variation_id"`
	Name        string           `json:"name"`
	Plan        string           `json:"plan"`
	Price       *decimal.Decimal `json:"price"`
	Amount      *decimal.Decimal `json:"amount"`
}

// planID picks the identifying field: id, then data_plan, then variation_id
func (p planRecord) planID() string {
	for _, candidate := range []stringlike{p.ID, p.DataPlan, p.VariationID} {
		if candidate != "" {
			return string(candidate)
		}
	}
	return ""
}

func (p planRecord) label() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Plan
}

func (p planRecord) price() decimal.Decimal {
	if p.Price != nil {
		return *p.Price
	}
	return orZero(p.Amount)
}

// decodePlans handles both response shapes: a bare sequence of plans or an
// object with a 'data' sequence. An empty sequence is a valid catalogue
func decodePlans(resp *http.Response, networkID string) ([]models.DataPlan, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode plans response: %w", err)
	}

	var records []planRecord
	if strings.HasPrefix(strings.TrimSpace(string(raw)), "[") {
		if err := json.Unmarshal(raw, &records); err != nil {
			return nil, fmt.Errorf("failed to decode plans sequence: %w", err)
		}
	} else {
		var wrapped struct {
			Data []planRecord `json:"data"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil, fmt.Errorf("failed to decode plans object: %w", err)
		}
		records = wrapped.Data
	}

	plans := make([]models.DataPlan, 0, len(records))
	for _, record := range records {
		id := record.planID()
		if id == "" {
			return nil, fmt.Errorf("plan record without identifying field for network %s", networkID)
		}

		plans = append(plans, models.DataPlan{
			ID:        id,
			NetworkID: networkID,
			Label:     record.label(),
			Price:     record.price(),
		})
	}

	return plans, nil
}
