package v1

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Nasti98RS/swarm-db-api/internal/domain"
)

// NewUserRequest is the request to register a user.
type NewUserRequest struct {
	Name    string `json:"name"`
	Company string `json:"company"`
	Email   string `json:"email"`
}

// NewUser stores a user. A name already registered returns that user instead.
// POST /new_user
func (h *Handler) NewUser(c echo.Context) error {
	var req NewUserRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if strings.TrimSpace(req.Name) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "name is required"})
	}

	ctx := c.Request().Context()
	existing, err := h.records.GetUserByName(ctx, req.Name)
	if err != nil {
		return h.fail(c, err)
	}
	if existing != nil {
		return c.JSON(http.StatusOK, map[string]string{
			"message":         "User already exists",
			"user_id":         strconv.FormatInt(existing.ID, 10),
			"user_name":       existing.Name,
			"user_enterprise": existing.Company,
			"user_email":      existing.Email,
		})
	}

	user := &domain.User{Name: req.Name, Company: req.Company, Email: req.Email}
	if err := h.records.CreateUser(ctx, user); err != nil {
		return h.fail(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message":   "User created successfully",
		"user_id":   strconv.FormatInt(user.ID, 10),
		"user_name": user.Name,
	})
}

// GetUser returns a registered user.
// GET /v1/users/:id
func (h *Handler) GetUser(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid user id"})
	}
	user, err := h.records.GetUser(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	if user == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "user not found"})
	}
	return c.JSON(http.StatusOK, user)
}

// ListProducts returns the products, optionally filtered by name.
// GET /v1/products
func (h *Handler) ListProducts(c echo.Context) error {
	products, err := h.records.ListProducts(c.Request().Context(), c.QueryParam("filter"))
	if err != nil {
		return h.fail(c, err)
	}
	if products == nil {
		products = []domain.Product{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"products": products,
	})
}
