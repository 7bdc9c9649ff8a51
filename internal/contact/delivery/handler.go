package delivery

import (
	"net/http"
	"strconv"

	"mailstream/internal/contact/domain"
	"mailstream/internal/contact/repository"

	"github.com/gin-gonic/gin"
)

type ContactHandler struct {
	contactRepo repository.ContactRepository
}

func NewContactHandler(contactRepo repository.ContactRepository) *ContactHandler {
	return &ContactHandler{contactRepo: contactRepo}
}

func (h *ContactHandler) Create(c *gin.Context) {
	var contact domain.Contact
	if err := c.ShouldBindJSON(&contact); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if contact.AccountID == "" || contact.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "account_id and email are required"})
		return
	}

	existing, err := h.contactRepo.FindByEmail(contact.AccountID, contact.Email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if existing != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "contact already exists"})
		return
	}

	if err := h.contactRepo.Create(&contact); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, contact)
}

func (h *ContactHandler) ListByAccount(c *gin.Context) {
	accountID := c.Param("id")

	limit := 50
	offset := 0
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if offsetStr := c.Query("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	contacts, err := h.contactRepo.FindByAccount(accountID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"contacts": contacts, "limit": limit, "offset": offset})
}
