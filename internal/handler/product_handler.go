package handler

import (
	"go-warehouse-ws/internal/model"
	"go-warehouse-ws/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ProductHandler struct {
	productService service.ProductService
}

func NewProductHandler(productService service.ProductService) *ProductHandler {
	return &ProductHandler{productService: productService}
}

// GetProducts lists the warehouse catalog, or the global one with ?global=true.
// Optional filters: ?category=<name>, ?q=<name/code>
// GET /api/v1/products
func (h *ProductHandler) GetProducts(c *fiber.Ctx) error {
	scope, err := scopeOf(c)
	if err != nil {
		return fail(c, err)
	}
	ctx := c.UserContext()
	global := c.QueryBool("global")

	var products []model.Product
	switch {
	case c.Query("q") != "":
		products, err = h.productService.Search(ctx, scope, global, c.Query("q"))
	case c.Query("category") != "":
		products, err = h.productService.ListByCategory(ctx, scope, global, c.Query("category"))
	default:
		products, err = h.productService.List(ctx, scope, global)
	}
	return list(c, products, err)
}

// GET /api/v1/products/:id
func (h *ProductHandler) GetProduct(c *fiber.Ctx) error {
	scope, err := scopeOf(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	product, err := h.productService.Get(c.UserContext(), scope, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(product)
}

// POST /api/v1/products
func (h *ProductHandler) CreateProduct(c *fiber.Ctx) error {
	scope, err := scopeOf(c)
	if err != nil {
		return fail(c, err)
	}
	var req service.ProductRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}
	product, err := h.productService.Create(c.UserContext(), scope, &req)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"message": "Product created", "data": product})
}

// PUT /api/v1/products/:id
func (h *ProductHandler) UpdateProduct(c *fiber.Ctx) error {
	scope, err := scopeOf(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req service.ProductRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}
	product, err := h.productService.Update(c.UserContext(), scope, id, &req)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "Product updated", "data": product})
}

// DELETE /api/v1/products/:id
func (h *ProductHandler) DeleteProduct(c *fiber.Ctx) error {
	scope, err := scopeOf(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	if err := h.productService.Delete(c.UserContext(), scope, id); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "Product deleted"})
}
