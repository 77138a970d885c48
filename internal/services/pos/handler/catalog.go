package handler

import (
	"encoding/json"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"storeline-pos/internal/database/models"
)

// -- Products --

type listProductsQuery struct {
	Page       int     `form:"page,default=1"`
	PageSize   int     `form:"page_size,default=10"`
	IsActive   *bool   `form:"is_active,omitempty"`
	SearchTerm *string `form:"search,omitempty"`
}

type productPage struct {
	Products   []models.Product `json:"products"`
	TotalCount int64            `json:"total_count"`
	NextPage   string           `json:"next_page"`
}

func (s *POSHandler) ListProducts(c *gin.Context) {
	var q listProductsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondInvalid(c, "Invalid query parameters")
		return
	}

	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = 10
	}
	page := q.Page
	if page <= 0 {
		page = 1
	}

	// the unfiltered first page is what every register asks for on boot,
	// so it gets a short-lived cache entry
	cacheable := q.IsActive == nil &&
		(q.SearchTerm == nil || *q.SearchTerm == "") &&
		page == 1 && pageSize == 10
	cacheKey := POS_PRODUCT_CACHE_KEY + ":first-page"

	if cacheable && s.redis != nil {
		if cached, err := s.redis.Get(c.Request.Context(), cacheKey).Result(); err == nil {
			var pp productPage
			if err := json.Unmarshal([]byte(cached), &pp); err == nil {
				respondOK(c, "", gin.H{
					"products":    pp.Products,
					"total_count": pp.TotalCount,
					"next_page":   pp.NextPage,
				})
				return
			}
		}
	}

	var products []models.Product
	var total int64

	query := s.db.Model(&models.Product{})
	if q.IsActive != nil {
		query = query.Where("is_active = ?", *q.IsActive)
	}
	if q.SearchTerm != nil && *q.SearchTerm != "" {
		searchTerm := "%" + *q.SearchTerm + "%"
		query = query.Where("product_code LIKE ? OR product_name LIKE ?", searchTerm, searchTerm)
	}

	if err := query.Count(&total).Error; err != nil {
		s.respondError(c, "Database error counting products", err)
		return
	}

	offset := (page - 1) * pageSize
	if err := query.Offset(offset).Limit(pageSize).Find(&products).Error; err != nil {
		s.respondError(c, "Database error fetching products", err)
		return
	}

	nextPage := ""
	if int64(page*pageSize) < total {
		nextPage = strconv.Itoa(page + 1)
	}

	if cacheable && s.redis != nil {
		if data, err := json.Marshal(productPage{Products: products, TotalCount: total, NextPage: nextPage}); err == nil {
			if err := s.redis.Set(c.Request.Context(), cacheKey, data, CACHE_TTL_SHORT).Err(); err != nil {
				s.log.Warn("failed to cache product page", zap.Error(err))
			}
		}
	}

	respondOK(c, "", gin.H{
		"products":    products,
		"total_count": total,
		"next_page":   nextPage,
	})
}

func (s *POSHandler) GetProductByCode(c *gin.Context) {
	code := c.Param("code")
	if code == "" {
		respondInvalid(c, "product_code required")
		return
	}

	cacheKey := POS_PRODUCT_CACHE_KEY + ":" + code
	if s.redis != nil {
		if cached, err := s.redis.Get(c.Request.Context(), cacheKey).Result(); err == nil {
			var product models.Product
			if err := json.Unmarshal([]byte(cached), &product); err == nil {
				respondOK(c, "", gin.H{"product": product})
				return
			}
		}
	}

	var product models.Product
	if err := s.db.Where("product_code = ?", code).First(&product).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			respondNotFound(c, "Product not found")
			return
		}
		s.respondError(c, "Database error", err)
		return
	}

	if s.redis != nil {
		if data, err := json.Marshal(product); err == nil {
			if err := s.redis.Set(c.Request.Context(), cacheKey, data, CACHE_TTL_MEDIUM).Err(); err != nil {
				s.log.Warn("failed to cache product", zap.String("code", code), zap.Error(err))
			}
		}
	}

	respondOK(c, "", gin.H{"product": product})
}

// -- Tax rates --

func (s *POSHandler) ListTaxRates(c *gin.Context) {
	if s.redis != nil {
		if cached, err := s.redis.Get(c.Request.Context(), POS_TAX_RATE_CACHE_KEY).Result(); err == nil {
			var rates []models.TaxRate
			if err := json.Unmarshal([]byte(cached), &rates); err == nil {
				respondOK(c, "", gin.H{"tax_rates": rates})
				return
			}
		}
	}

	var rates []models.TaxRate
	if err := s.db.Order("code ASC").Find(&rates).Error; err != nil {
		s.respondError(c, "Database error fetching tax rates", err)
		return
	}

	if s.redis != nil {
		if data, err := json.Marshal(rates); err == nil {
			_ = s.redis.Set(c.Request.Context(), POS_TAX_RATE_CACHE_KEY, data, CACHE_TTL_LONG).Err()
		}
	}

	respondOK(c, "", gin.H{"tax_rates": rates})
}

// resolveTaxRate returns the percentage for a tax code, the store default
// rate when code is nil, falling back to the configured default when the
// table has no match.
func (s *POSHandler) resolveTaxRate(tx *gorm.DB, code *string) string {
	var rate models.TaxRate
	if code != nil && *code != "" {
		if err := tx.Where("code = ?", *code).First(&rate).Error; err == nil {
			return rate.Rate
		}
	}
	if err := tx.Where("is_default = ?", true).First(&rate).Error; err == nil {
		return rate.Rate
	}
	return s.policy.DefaultTaxRate
}
