package main

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/storeforge/catalog-engine/internal/apperr"
	"github.com/storeforge/catalog-engine/internal/cart"
	"github.com/storeforge/catalog-engine/internal/catalog"
	"github.com/storeforge/catalog-engine/internal/httpx"
	"github.com/storeforge/catalog-engine/internal/order"
	"github.com/storeforge/catalog-engine/internal/review"
)

type server struct {
	catalog *catalog.Service
	reviews *review.Service
	carts   *cart.Service
	orders  *order.Service
	log     *zap.Logger
}

func newRouter(s *server) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), httpx.RequestID(), httpx.Logger(s.log))

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	r.GET("/products", s.listProducts)
	r.GET("/products/:id", s.getProduct)
	r.GET("/search", s.search)
	r.GET("/suggestions", s.suggest)

	r.GET("/products/:id/reviews", s.listReviews)
	r.GET("/products/:id/reviews/summary", s.reviewSummary)
	r.POST("/products/:id/reviews", s.addReview)
	r.PATCH("/reviews/:id", s.updateReview)
	r.DELETE("/reviews/:id", s.deleteReview)

	r.GET("/cart", s.getCart)
	r.PUT("/cart/items/:productId", s.setCartQuantity)
	r.POST("/cart/items/:productId/increment", s.incrementCartItem)
	r.DELETE("/cart/items/:productId", s.removeCartItem)
	r.DELETE("/cart", s.clearCart)

	r.POST("/orders", s.createOrder)
	r.GET("/orders", s.listOrders)

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	return r
}

// HTTPError is the standard error body.
// swagger:model
type HTTPError struct {
	Code  apperr.Code `json:"code"`
	Error string      `json:"error"`
}

func respondError(c *gin.Context, err error) {
	var le *cart.LimitError
	if errors.As(err, &le) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"code":   apperr.CodeInvalidInput,
			"error":  le.Error(),
			"reason": le.Reason,
			"max":    le.Max,
		})
		return
	}
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		ae = apperr.Store(err)
	}
	status := http.StatusBadGateway
	switch ae.Code {
	case apperr.CodeMissingInput, apperr.CodeInvalidInput:
		status = http.StatusBadRequest
	case apperr.CodeNotFound:
		status = http.StatusNotFound
	case apperr.CodeForbidden:
		status = http.StatusForbidden
	case apperr.CodeConflict:
		status = http.StatusConflict
	}
	c.JSON(status, HTTPError{Code: ae.Code, Error: ae.Message})
}

// userID resolves the caller from the session collaborator's header; the
// engine consumes the resolved identity, it never authenticates.
func userID(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader("X-User-ID"))
}

func intQuery(c *gin.Context, key string) int {
	n, _ := strconv.Atoi(c.Query(key))
	return n
}

// listProducts serves the sorted catalog page, the filtered variant when a
// filter parameter is present, and the batched id lookup via ids=a,b,c.
//
// @Summary List products
// @Param pageSize query int false "page size"
// @Param sort     query string false "sort field (name|price|discount|category)"
// @Param dir      query string false "asc|desc"
// @Param cursor   query string false "continuation cursor"
// @Param category query string false "category filter"
// @Param priceMin query number false "minimum price"
// @Param priceMax query number false "maximum price"
// @Param ids      query string false "comma-separated ids (batch lookup)"
// @Success 200 {object} catalog.Page
// @Failure 400 {object} HTTPError
// @Router /products [get]
func (s *server) listProducts(c *gin.Context) {
	if ids := c.Query("ids"); ids != "" {
		items, err := s.catalog.GetByIDs(c.Request.Context(), strings.Split(ids, ","))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
		return
	}

	filtered := c.Query("category") != "" || c.Query("priceMin") != "" || c.Query("priceMax") != ""
	if filtered {
		opts := catalog.FilterOptions{
			PageSize: intQuery(c, "pageSize"),
			Category: c.Query("category"),
			Cursor:   c.Query("cursor"),
		}
		if v := c.Query("priceMin"); v != "" {
			d, err := decimal.NewFromString(v)
			if err != nil {
				respondError(c, apperr.Invalid("priceMin must be a number"))
				return
			}
			opts.PriceMin = &d
		}
		if v := c.Query("priceMax"); v != "" {
			d, err := decimal.NewFromString(v)
			if err != nil {
				respondError(c, apperr.Invalid("priceMax must be a number"))
				return
			}
			opts.PriceMax = &d
		}
		page, err := s.catalog.ListFiltered(c.Request.Context(), opts)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
		return
	}

	page, err := s.catalog.List(c.Request.Context(), catalog.ListOptions{
		PageSize:  intQuery(c, "pageSize"),
		SortField: c.Query("sort"),
		Desc:      c.Query("dir") == "desc",
		Cursor:    c.Query("cursor"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// @Summary Get one product
// @Param id path string true "product id"
// @Success 200 {object} catalog.Product
// @Failure 404 {object} HTTPError
// @Router /products/{id} [get]
func (s *server) getProduct(c *gin.Context) {
	p, err := s.catalog.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// @Summary Search products
// @Param q        query string true "keyword"
// @Param pageSize query int false "page size"
// @Param cursor   query string false "continuation cursor"
// @Success 200 {object} catalog.Page
// @Router /search [get]
func (s *server) search(c *gin.Context) {
	page, err := s.catalog.Search(c.Request.Context(), c.Query("q"), intQuery(c, "pageSize"), c.Query("cursor"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// @Summary Suggest product names
// @Param q     query string true "keyword prefix"
// @Param limit query int false "max suggestions"
// @Success 200 {object} map[string][]string
// @Router /suggestions [get]
func (s *server) suggest(c *gin.Context) {
	names, err := s.catalog.SuggestNames(c.Request.Context(), c.Query("q"), intQuery(c, "limit"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": names})
}

// @Summary List product reviews
// @Param id       path string true "product id"
// @Param pageSize query int false "page size"
// @Param cursor   query string false "continuation cursor"
// @Success 200 {object} review.Page
// @Router /products/{id}/reviews [get]
func (s *server) listReviews(c *gin.Context) {
	page, err := s.reviews.List(c.Request.Context(), c.Param("id"), intQuery(c, "pageSize"), c.Query("cursor"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (s *server) reviewSummary(c *gin.Context) {
	summary, err := s.reviews.Summarize(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

type addReviewRequest struct {
	Rating      float64 `json:"rating"`
	Comment     string  `json:"comment"`
	DisplayName string  `json:"displayName"`
}

// @Summary Add a review
// @Param id path string true "product id"
// @Param review body addReviewRequest true "review"
// @Success 201 {object} review.Review
// @Failure 409 {object} HTTPError "user already reviewed this product"
// @Router /products/{id}/reviews [post]
func (s *server) addReview(c *gin.Context) {
	var req addReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Invalid("malformed request body"))
		return
	}
	r, err := s.reviews.Add(c.Request.Context(), c.Param("id"), userID(c), req.Rating, req.Comment, req.DisplayName)
	if err != nil {
		if apperr.Is(err, apperr.CodeConflict) && r != nil {
			c.JSON(http.StatusConflict, gin.H{
				"code":     apperr.CodeConflict,
				"error":    "user already reviewed this product",
				"existing": r,
			})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

type updateReviewRequest struct {
	Rating      *float64 `json:"rating"`
	Comment     *string  `json:"comment"`
	DisplayName *string  `json:"displayName"`
}

func (s *server) updateReview(c *gin.Context) {
	var req updateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Invalid("malformed request body"))
		return
	}
	r, err := s.reviews.Update(c.Request.Context(), c.Param("id"), userID(c), review.UpdateFields{
		Rating:      req.Rating,
		Comment:     req.Comment,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *server) deleteReview(c *gin.Context) {
	if err := s.reviews.Delete(c.Request.Context(), c.Param("id"), userID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// getCart is the reconciling read: quantities come back already clamped to
// current stock and per-order limits.
//
// @Summary Get the caller's cart
// @Success 200 {object} map[string][]cart.Line
// @Router /cart [get]
func (s *server) getCart(c *gin.Context) {
	lines, err := s.carts.Reconcile(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": lines})
}

type setQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (s *server) setCartQuantity(c *gin.Context) {
	var req setQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Invalid("malformed request body"))
		return
	}
	if err := s.carts.SetQuantity(c.Request.Context(), userID(c), c.Param("productId"), req.Quantity); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quantity": req.Quantity})
}

type incrementRequest struct {
	Delta int `json:"delta"`
}

func (s *server) incrementCartItem(c *gin.Context) {
	var req incrementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Invalid("malformed request body"))
		return
	}
	if req.Delta == 0 {
		req.Delta = 1
	}
	quantity, err := s.carts.Increment(c.Request.Context(), userID(c), c.Param("productId"), req.Delta)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quantity": quantity})
}

func (s *server) removeCartItem(c *gin.Context) {
	if err := s.carts.Remove(c.Request.Context(), userID(c), c.Param("productId")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *server) clearCart(c *gin.Context) {
	if err := s.carts.Clear(c.Request.Context(), userID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary Create an order
// @Param order body order.CreateInput true "order payload"
// @Success 201 {object} order.Order
// @Failure 400 {object} HTTPError
// @Router /orders [post]
func (s *server) createOrder(c *gin.Context) {
	var in order.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, apperr.Invalid("malformed request body"))
		return
	}
	in.UserID = userID(c)
	o, err := s.orders.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"orderId": o.ID, "order": o})
}

func (s *server) listOrders(c *gin.Context) {
	orders, err := s.orders.ListByUser(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": orders})
}
