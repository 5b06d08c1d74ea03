package api

import (
	"encoding/json"
	"net/http"

	"github.com/ImportTeam/extensionBack/internal/engine"
)

type searchRequest struct {
	ProductName  string `json:"product_name"`
	CurrentPrice *int64 `json:"current_price"`
	CurrentURL   string `json:"current_url"`
	ProductCode  string `json:"product_code"`
}

type topPrice struct {
	Rank         int    `json:"rank"`
	Mall         string `json:"mall"`
	Price        int64  `json:"price"`
	FreeShipping bool   `json:"free_shipping"`
	Delivery     string `json:"delivery"`
	Link         string `json:"link"`
}

type searchData struct {
	ProductName  string     `json:"product_name"`
	ProductID    *string    `json:"product_id"`
	IsCheaper    bool       `json:"is_cheaper"`
	PriceDiff    int64      `json:"price_diff"`
	LowestPrice  int64      `json:"lowest_price"`
	Link         string     `json:"link"`
	Mall         *string    `json:"mall"`
	FreeShipping *bool      `json:"free_shipping"`
	TopPrices    []topPrice `json:"top_prices"`
	PriceTrend   []any      `json:"price_trend"`
	Source       string     `json:"source"`
	ElapsedMS    int64      `json:"elapsed_ms"`
}

type searchResponse struct {
	Status  string     `json:"status"`
	Data    searchData `json:"data"`
	Message string     `json:"message"`
}

func (s *Server) searchPrice(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "malformed request body")
		return
	}
	q := engine.Query{
		ProductName:  req.ProductName,
		CurrentPrice: req.CurrentPrice,
		CurrentURL:   req.CurrentURL,
		ProductCode:  req.ProductCode,
	}
	if err := q.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		return
	}

	res := s.deps.Searcher.Search(r.Context(), q)
	if res.IsSuccess() {
		writeJSON(w, http.StatusOK, buildSearchResponse(res, req.CurrentPrice))
		return
	}

	switch res.Status {
	case engine.StatusNotFound, engine.StatusNoResults:
		writeError(w, http.StatusServiceUnavailable, "PRODUCT_NOT_FOUND", res.ErrorMessage)
	case engine.StatusTimeout, engine.StatusBudgetExhausted:
		writeError(w, http.StatusServiceUnavailable, "TIMEOUT", res.ErrorMessage)
	case engine.StatusBlocked:
		writeError(w, http.StatusServiceUnavailable, "BLOCKED", res.ErrorMessage)
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", res.ErrorMessage)
	}
}

func buildSearchResponse(res *engine.SearchResult, currentPrice *int64) searchResponse {
	data := searchData{
		ProductName:  res.ProductName,
		LowestPrice:  res.LowestPrice,
		Link:         res.Link,
		FreeShipping: res.FreeShipping,
		PriceTrend:   []any{},
		Source:       res.Source,
		ElapsedMS:    res.ElapsedMS,
	}
	if res.ProductID != "" {
		data.ProductID = &res.ProductID
	}
	if res.Mall != "" {
		data.Mall = &res.Mall
	}
	if currentPrice != nil {
		data.IsCheaper = res.LowestPrice < *currentPrice
		data.PriceDiff = res.LowestPrice - *currentPrice
	}
	data.TopPrices = make([]topPrice, 0, len(res.TopOffers))
	for _, offer := range res.TopOffers {
		data.TopPrices = append(data.TopPrices, topPrice{
			Rank:         offer.Rank,
			Mall:         offer.Mall,
			Price:        offer.Price,
			FreeShipping: offer.FreeShipping,
			Delivery:     offer.Delivery,
			Link:         offer.Link,
		})
	}
	return searchResponse{
		Status:  "success",
		Data:    data,
		Message: "lowest price found",
	}
}
