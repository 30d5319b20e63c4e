package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Nasti98RS/swarm-db-api/internal/domain"
)

// Records is the product store the record tools operate on.
type Records interface {
	ListProducts(ctx context.Context, filter string) ([]domain.Product, error)
	CreateProduct(ctx context.Context, p *domain.Product) error
	DeleteProductByName(ctx context.Context, name string) (bool, error)
	UpdateProduct(ctx context.Context, name string, u domain.ProductUpdate) (*domain.Product, error)
}

// NoProductsMessage is returned by get_all_products when nothing matches.
const NoProductsMessage = "No products found in the database."

// NewRecordRegistry registers the product tools and user_info.
func NewRecordRegistry(records Records) *Registry {
	r := NewRegistry()
	RegisterRecordTools(r, records)
	return r
}

// RegisterRecordTools adds the product CRUD tools and user_info to r.
func RegisterRecordTools(r *Registry, records Records) {
	r.MustRegister(Definition{
		Name: "get_all_products",
		Description: "Retrieves all products from the database with optional name filtering. " +
			"The search is case-insensitive and matches partial names.",
		Parameters: objectSchema([]property{
			{name: "filter", typ: "string", desc: "Search term to filter products by name. Omit to list every product."},
		}),
	}, func(ctx context.Context, call Call) (string, error) {
		var args struct {
			Filter string `json:"filter"`
		}
		if err := decode(call.Args, &args); err != nil {
			return "", err
		}
		products, err := records.ListProducts(ctx, args.Filter)
		if err != nil {
			return "", fmt.Errorf("failed to list products: %w", err)
		}
		if len(products) == 0 {
			return NoProductsMessage, nil
		}
		out, err := json.Marshal(products)
		if err != nil {
			return "", err
		}
		return string(out), nil
	})

	r.MustRegister(Definition{
		Name:        "insert_a_product",
		Description: "Inserts a new product into the database. Every parameter is required.",
		Parameters: objectSchema([]property{
			{name: "name", typ: "string", desc: "Name of the product.", required: true},
			{name: "price", typ: "number", desc: "Price of the product.", required: true},
			{name: "stock", typ: "integer", desc: "Quantity of the product in stock.", required: true},
			{name: "return_discount", typ: "number", desc: "Return discount percentage.", required: true},
		}),
	}, func(ctx context.Context, call Call) (string, error) {
		var args struct {
			Name           *string  `json:"name"`
			Price          *float64 `json:"price"`
			Stock          *int     `json:"stock"`
			ReturnDiscount *float64 `json:"return_discount"`
		}
		if err := decode(call.Args, &args); err != nil {
			return "", err
		}
		var missing []string
		if args.Name == nil || *args.Name == "" {
			missing = append(missing, "name")
		}
		if args.Price == nil {
			missing = append(missing, "price")
		}
		if args.Stock == nil {
			missing = append(missing, "stock")
		}
		if args.ReturnDiscount == nil {
			missing = append(missing, "return_discount")
		}
		if len(missing) > 0 {
			return fmt.Sprintf("I can't insert the product until you give me the following parameters: %s.", strings.Join(missing, ", ")), nil
		}
		p := &domain.Product{
			Name:           *args.Name,
			Price:          *args.Price,
			Stock:          *args.Stock,
			ReturnDiscount: *args.ReturnDiscount,
		}
		if err := records.CreateProduct(ctx, p); err != nil {
			return "", err
		}
		return fmt.Sprintf("Done! The product %s was inserted.", p.Name), nil
	})

	r.MustRegister(Definition{
		Name:        "delete_a_product",
		Description: "Deletes a product from the database by its name. The name must match exactly, including case.",
		Parameters: objectSchema([]property{
			{name: "name", typ: "string", desc: "Name of the product to delete.", required: true},
		}),
	}, func(ctx context.Context, call Call) (string, error) {
		var args struct {
			Name string `json:"name"`
		}
		if err := decode(call.Args, &args); err != nil {
			return "", err
		}
		if args.Name == "" {
			return "", fmt.Errorf("name is required")
		}
		deleted, err := records.DeleteProductByName(ctx, args.Name)
		if err != nil {
			return "", err
		}
		if !deleted {
			return fmt.Sprintf("Product %s not found in the database.", args.Name), nil
		}
		return fmt.Sprintf("Done! The product %s was deleted from the database.", args.Name), nil
	})

	r.MustRegister(Definition{
		Name:        "update_a_product",
		Description: "Updates an existing product. Only the provided fields are changed.",
		Parameters: objectSchema([]property{
			{name: "name", typ: "string", desc: "Current name of the product.", required: true},
			{name: "new_name", typ: "string", desc: "New name for the product."},
			{name: "new_price", typ: "number", desc: "New price for the product."},
			{name: "new_stock", typ: "integer", desc: "New stock quantity."},
			{name: "new_discount", typ: "number", desc: "New return discount percentage."},
		}),
	}, func(ctx context.Context, call Call) (string, error) {
		var args struct {
			Name        string   `json:"name"`
			NewName     *string  `json:"new_name"`
			NewPrice    *float64 `json:"new_price"`
			NewStock    *int     `json:"new_stock"`
			NewDiscount *float64 `json:"new_discount"`
		}
		if err := decode(call.Args, &args); err != nil {
			return "", err
		}
		if args.Name == "" {
			return "", fmt.Errorf("name is required")
		}
		p, err := records.UpdateProduct(ctx, args.Name, domain.ProductUpdate{
			Name:           args.NewName,
			Price:          args.NewPrice,
			Stock:          args.NewStock,
			ReturnDiscount: args.NewDiscount,
		})
		if err != nil {
			return "", err
		}
		if p == nil {
			return fmt.Sprintf("Product %s not found in the database.", args.Name), nil
		}
		return fmt.Sprintf("Done! The product %s was updated in the database.", args.Name), nil
	})

	r.MustRegister(Definition{
		Name:        "user_info",
		Description: "Retrieves the user's name and company to personalize assistance.",
	}, UserInfo)
}

// UserInfo describes the caller from the turn's context bag.
func UserInfo(ctx context.Context, call Call) (string, error) {
	var vals [3]string
	for i, key := range []string{"user_id", "user_name", "enterprise_name"} {
		v, ok := call.Vars[key]
		if !ok {
			return "", fmt.Errorf("missing context variable %q", key)
		}
		vals[i] = fmt.Sprint(v)
	}
	return fmt.Sprintf("Help the user, %s from %s Company, do whatever they want. The user_id is %s", vals[1], vals[2], vals[0]), nil
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}
