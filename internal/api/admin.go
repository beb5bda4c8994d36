package api

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/store"
	"github.com/shopspring/decimal"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type categoryRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Slug        string `json:"slug" binding:"omitempty,slug,max=100"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url" binding:"omitempty,url"`
}

func (r categoryRequest) input() store.CategoryInput {
	return store.CategoryInput{Name: r.Name, Slug: r.Slug, Description: r.Description, ImageURL: r.ImageURL}
}

type productRequest struct {
	CategoryID  int64               `json:"category_id" binding:"required,min=1"`
	Name        string              `json:"name" binding:"required,max=200"`
	Slug        string              `json:"slug" binding:"omitempty,slug,max=200"`
	Description string              `json:"description"`
	Price       decimal.Decimal     `json:"price"`
	SalePrice   decimal.NullDecimal `json:"sale_price"`
	Stock       int                 `json:"stock" binding:"min=0"`
	Available   bool                `json:"available"`
	Featured    bool                `json:"featured"`
	ImageURL    string              `json:"image_url" binding:"omitempty,url"`
	Version     int                 `json:"version"`
}

func (r productRequest) input() store.ProductInput {
	return store.ProductInput{
		CategoryID:  r.CategoryID,
		Name:        r.Name,
		Slug:        r.Slug,
		Description: r.Description,
		Price:       r.Price,
		SalePrice:   r.SalePrice,
		Stock:       r.Stock,
		Available:   r.Available,
		Featured:    r.Featured,
		ImageURL:    r.ImageURL,
	}
}

type imageRequest struct {
	ImageURL  string `json:"image_url" binding:"required,url"`
	AltText   string `json:"alt_text" binding:"max=200"`
	IsPrimary bool   `json:"is_primary"`
}

type salePriceRequest struct {
	SalePrice decimal.NullDecimal `json:"sale_price"`
}

type campaignRequest struct {
	Name      string    `json:"name" binding:"required,max=200"`
	StartDate time.Time `json:"start_date" binding:"required"`
	EndDate   time.Time `json:"end_date" binding:"required"`
	IsActive  bool      `json:"is_active"`
}

type flashItemRequest struct {
	ProductID         int64           `json:"product_id" binding:"required,min=1"`
	SalePrice         decimal.Decimal `json:"sale_price"`
	QuantityAvailable int             `json:"quantity_available" binding:"min=0"`
}

type userRequest struct {
	Email string `json:"email" binding:"required,email"`
	Name  string `json:"name" binding:"required,max=200"`
	Role  string `json:"role"`
}

type roleRequest struct {
	Role string `json:"role" binding:"required"`
}

type agentRequest struct {
	UserID int64  `json:"user_id" binding:"required,min=1"`
	Phone  string `json:"phone" binding:"required,max=20"`
}

type agentQuery struct {
	Available bool `form:"available"`
}

func (h *handler) createCategory(c *gin.Context) {
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalid(c, err)
		return
	}
	category, err := h.svc.CreateCategory(c.Request.Context(), identity(c), req.input())
	if err != nil {
		fail(c, err)
		return
	}
	done(c, http.StatusCreated, "category "+category.Name+" created", category)
}

func (h *handler) updateCategory(c *gin.Context) {
	categoryID, valid := pathID(c, "id")
	if !valid {
		return
	}
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalid(c, err)
		return
	}
	category, err := h.svc.UpdateCategory(c.Request.Context(), identity(c), categoryID, req.input())
	if err != nil {
		fail(c, err)
		return
	}
	done(c, http.StatusOK, "category "+category.Name+" updated", category)
}

func (h *handler) createProduct(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalid(c, err)
		return
	}
	product, err := h.svc.CreateProduct(c.Request.Context(), identity(c), req.input())
	if err != nil {
		fail(c, err)
		return
	}
	done(c, http.StatusCreated, "product "+product.Name+" created", product)
}

func (h *handler) updateProduct(c *gin.Context) {
	productID, valid := pathID(c, "id")
	if !valid {
		return
	}
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalid(c, err)
		return
	}
	product, err := h.svc.UpdateProduct(c.Request.Context(), identity(c), productID, req.Version, req.input())
	if err != nil {
		fail(c, err)
		return
	}
	done(c, http.StatusOK, "product "+product.Name+" updated", product)
}

func (h *handler) addProductImage(c *gin.Context) {
	productID, valid := pathID(c, "id")
	if !valid {
		return
	}
	var req imageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalid(c, err)
		return
	}
	img, err := h.svc.AddProductImage(c.Request.Context(), identity(c), models.ProductImage{
		ProductID: productID,
		ImageURL:  req.ImageURL,
		AltText:   req.AltText,
		IsPrimary: req.IsPrimary,
	})
	if err != nil {
		fail(c, err)
		return
	}
	done(c, http.StatusCreated, "image added", img)
}

func (h *handler) updateSalePrice(c *gin.Context) {
	productID, valid := pathID(c, "id")
	if !valid {
		return
	}
	var req salePriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalid(c, err)
		return
	}
	product, err := h.svc.UpdateProductSalePrice(c.Request.Context(), identity(c), productID, req.SalePrice)
	if err != nil {
		fail(c, err)
		return
	}
	done(c, http.StatusOK, "sale price updated", product)
}

func (h *handler) createCampaign(c *gin.Context) {
	var req campaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalid(c, err)
		return
	}
	campaign, err := h.svc.CreateFlashSaleCampaign(c.Request.Context(), identity(c), models.FlashSaleCampaign{
		Name:      req.Name,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		IsActive:  req.IsActive,
	})
	if err != nil {
		fail(c, err)
		return
	}
	done(c, http.StatusCreated, "campaign "+campaign.Name+" created", campaign)
}

func (h *handler) saveFlashItem(c *gin.Context) {
	campaignID, valid := pathID(c, "id")
	if !valid {
		return
	}
	var req flashItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalid(c, err)
		return
	}
	item, err := h.svc.SaveFlashSaleItem(c.Request.Context(), identity(c), models.FlashSaleItem{
		CampaignID:        campaignID,
		ProductID:         req.ProductID,
		SalePrice:         req.SalePrice,
		QuantityAvailable: req.QuantityAvailable,
	})
	if err != nil {
		fail(c, err)
		return
	}
	done(c, http.StatusOK, "flash sale item saved", item)
}

// importProducts reads the multipart "file" field as an xlsx catalog sheet.
func (h *handler) importProducts(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		invalid(c, err)
		return
	}
	file, err := header.Open()
	if err != nil {
		fail(c, err)
		return
	}
	defer file.Close()

	result, err := h.svc.ImportProducts(c.Request.Context(), identity(c), file, header.Size)
	if err != nil {
		fail(c, err)
		return
	}
	done(c, http.StatusOK, "import finished", result)
}

func (h *handler) exportProducts(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.svc.ExportProducts(c.Request.Context(), identity(c), &buf); err != nil {
		fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="products.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (h *handler) listUsers(c *gin.Context) {
	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		invalid(c, err)
		return
	}
	page, err := h.svc.ListUsers(c.Request.Context(), identity(c), q.request())
	if err != nil {
		fail(c, err)
		return
	}
	offsetPage(c, page)
}

func (h *handler) createUser(c *gin.Context) {
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalid(c, err)
		return
	}
	user, err := h.svc.CreateUser(c.Request.Context(), identity(c), req.Email, req.Name, req.Role)
	if err != nil {
		fail(c, err)
		return
	}
	done(c, http.StatusCreated, "user "+user.Email+" created", user)
}

func (h *handler) setUserRole(c *gin.Context) {
	userID, valid := pathID(c, "id")
	if !valid {
		return
	}
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalid(c, err)
		return
	}
	user, err := h.svc.SetUserRole(c.Request.Context(), identity(c), userID, req.Role)
	if err != nil {
		fail(c, err)
		return
	}
	done(c, http.StatusOK, "role updated", user)
}

func (h *handler) listAgents(c *gin.Context) {
	var q agentQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		invalid(c, err)
		return
	}
	agents, err := h.svc.ListDeliveryAgents(c.Request.Context(), identity(c), q.Available)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, agents)
}

func (h *handler) createAgent(c *gin.Context) {
	var req agentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalid(c, err)
		return
	}
	agent, err := h.svc.CreateDeliveryAgent(c.Request.Context(), identity(c), req.UserID, req.Phone)
	if err != nil {
		fail(c, err)
		return
	}
	done(c, http.StatusCreated, "delivery agent created", agent)
}
