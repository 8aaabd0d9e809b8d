package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/sportstyle/store/internal/domain/product"
)

// productResponse is the catalog item representation on the wire. Monetary
// fields serialize as decimal strings.
type productResponse struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	Description        string          `json:"description,omitempty"`
	Price              decimal.Decimal `json:"price"`
	Currency           string          `json:"currency"`
	Category           string          `json:"category,omitempty"`
	League             string          `json:"league,omitempty"`
	Team               string          `json:"team,omitempty"`
	ImageURL           string          `json:"image_url,omitempty"`
	PersonalizationFee decimal.Decimal `json:"personalization_fee"`
	Sizes              []string        `json:"sizes"`
	StockBySize        map[string]int  `json:"stock_by_size,omitempty"`
	Featured           bool            `json:"featured"`
}

func toProductResponse(p *product.Product) productResponse {
	return productResponse{
		ID:                 p.ID,
		Name:               p.Name,
		Description:        p.Description,
		Price:              p.Price,
		Currency:           p.Currency,
		Category:           p.Category,
		League:             p.League,
		Team:               p.Team,
		ImageURL:           p.ImageURL,
		PersonalizationFee: p.PersonalizationFee,
		Sizes:              p.Sizes,
		StockBySize:        p.StockBySize,
		Featured:           p.Featured,
	}
}

// listProducts returns the active catalog, optionally filtered by category,
// league, team or the featured flag.
func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	q := r.URL.Query()
	category := q.Get("category")
	league := q.Get("league")
	team := q.Get("team")
	featuredOnly := q.Get("featured") == "true"

	out := make([]productResponse, 0, len(products))
	for i := range products {
		p := &products[i]
		if category != "" && !strings.EqualFold(p.Category, category) {
			continue
		}
		if league != "" && !strings.EqualFold(p.League, league) {
			continue
		}
		if team != "" && !strings.EqualFold(p.Team, team) {
			continue
		}
		if featuredOnly && !p.Featured {
			continue
		}
		out = append(out, toProductResponse(p))
	}

	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p))
}
