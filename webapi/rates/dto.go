package rates

import (
	"github.com/fluxfin/fxengine/pkg/calculator"
	"github.com/fluxfin/fxengine/pkg/currency"
	"github.com/fluxfin/fxengine/pkg/exchange"
)

type errorResponse struct {
	Error string `json:"error"`
}

type convertRequest struct {
	Amount float64 `json:"amount"`
	From   string  `json:"from"`
	To     string  `json:"to"`
}

func (r convertRequest) pair() (currency.Currency, currency.Currency, error) {
	from, err := currency.Parse(r.From)
	if err != nil {
		return "", "", err
	}
	to, err := currency.Parse(r.To)
	if err != nil {
		return "", "", err
	}
	return from, to, nil
}

type convertResponse struct {
	Amount          float64           `json:"amount"`
	From            currency.Currency `json:"from"`
	To              currency.Currency `json:"to"`
	ConvertedAmount float64           `json:"converted_amount"`
}

type batchItem struct {
	Amount   float64           `json:"amount"`
	From     string            `json:"from"`
	To       string            `json:"to"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type batchRequest struct {
	Requests []batchItem `json:"requests"`
}

func (r batchRequest) toDomain() ([]calculator.ConversionRequest, error) {
	requests := make([]calculator.ConversionRequest, len(r.Requests))
	for i, item := range r.Requests {
		from, err := currency.Parse(item.From)
		if err != nil {
			return nil, err
		}
		to, err := currency.Parse(item.To)
		if err != nil {
			return nil, err
		}
		requests[i] = calculator.ConversionRequest{
			Amount:   item.Amount,
			From:     from,
			To:       to,
			Metadata: item.Metadata,
		}
	}
	return requests, nil
}

type resultDTO struct {
	Amount          float64           `json:"amount"`
	From            currency.Currency `json:"from"`
	To              currency.Currency `json:"to"`
	ConvertedAmount float64           `json:"converted_amount"`
	RateUsed        *exchange.Rate    `json:"rate_used,omitempty"`
	Succeeded       bool              `json:"succeeded"`
	Error           string            `json:"error,omitempty"`
}

type batchResponse struct {
	BatchID string      `json:"batch_id"`
	Results []resultDTO `json:"results"`
}

func toResultDTOs(results []calculator.ConversionResult) []resultDTO {
	out := make([]resultDTO, len(results))
	for i, res := range results {
		dto := resultDTO{
			Amount:          res.Request.Amount,
			From:            res.Request.From,
			To:              res.Request.To,
			ConvertedAmount: res.ConvertedAmount,
			RateUsed:        res.RateUsed,
			Succeeded:       res.Succeeded,
		}
		if res.Err != nil {
			dto.Error = res.Err.Error()
		}
		out[i] = dto
	}
	return out
}

type holdingItem struct {
	AssetID  string  `json:"asset_id"`
	Currency string  `json:"currency"`
	Amount   float64 `json:"amount"`
}

type portfolioRequest struct {
	Holdings []holdingItem `json:"holdings"`
	Target   string        `json:"target"`
}

func (r portfolioRequest) toDomain() ([]calculator.Holding, currency.Currency, error) {
	target, err := currency.Parse(r.Target)
	if err != nil {
		return nil, "", err
	}
	holdings := make([]calculator.Holding, len(r.Holdings))
	for i, h := range r.Holdings {
		cur, err := currency.Parse(h.Currency)
		if err != nil {
			return nil, "", err
		}
		holdings[i] = calculator.Holding{
			AssetID:  h.AssetID,
			Currency: cur,
			Amount:   h.Amount,
		}
	}
	return holdings, target, nil
}
