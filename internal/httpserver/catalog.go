package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"nexus-storefront/internal/domain"
	productsvc "nexus-storefront/internal/service/product"
)

func (h *handlers) listCategories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"categories": h.deps.Catalog.Categories()})
}

func parseFilter(c *gin.Context) (productsvc.Filter, bool) {
	f := productsvc.Filter{
		Search:   c.Query("q"),
		Category: c.Query("category"),
		Sort:     productsvc.Sort(c.DefaultQuery("sort", string(productsvc.SortFeatured))),
	}
	for key, dst := range map[string]**decimal.Decimal{"minPrice": &f.MinPrice, "maxPrice": &f.MaxPrice} {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			badRequest(c, key+" must be a number")
			return f, false
		}
		*dst = &d
	}
	if raw := c.Query("minRating"); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			badRequest(c, "minRating must be a number")
			return f, false
		}
		f.MinRating = d
	}
	return f, true
}

func (h *handlers) listProducts(c *gin.Context) {
	f, ok := parseFilter(c)
	if !ok {
		return
	}
	products, err := h.deps.Catalog.List(c.Request.Context(), f)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if products == nil {
		products = []domain.Product{}
	}
	c.JSON(http.StatusOK, gin.H{"total": len(products), "results": products})
}

func (h *handlers) getProduct(c *gin.Context) {
	p, err := h.deps.Catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *handlers) listReviews(c *gin.Context) {
	reviews, err := h.deps.Catalog.ListReviews(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, reviews)
}

func (h *handlers) addReview(c *gin.Context) {
	var req productsvc.ReviewInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	review, err := h.deps.Catalog.AddReview(c.Request.Context(), *currentIdentity(c), c.Param("id"), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, review)
}

func (h *handlers) createProduct(c *gin.Context) {
	var req domain.Product
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	p, err := h.deps.Catalog.Create(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *handlers) updateProduct(c *gin.Context) {
	var req domain.Product
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	p, err := h.deps.Catalog.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *handlers) deleteProduct(c *gin.Context) {
	if err := h.deps.Catalog.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
