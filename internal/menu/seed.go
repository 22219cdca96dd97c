package menu

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joao-fontenele/foodflow/internal/domain"
)

// DefaultItems is the menu a fresh install starts with.
func DefaultItems() []domain.MenuItem {
	return []domain.MenuItem{
		{Name: "Classic Burger", Description: "Juicy beef patty with fresh lettuce, tomato, and our special sauce on a toasted bun", Price: 12.99, Image: "/images/burger.png", Category: "Burgers"},
		{Name: "Margherita Pizza", Description: "Traditional pizza with fresh mozzarella, basil, and San Marzano tomato sauce", Price: 14.99, Image: "/images/pizza.png", Category: "Pizza"},
		{Name: "Caesar Salad", Description: "Crisp romaine lettuce with parmesan, croutons, and creamy Caesar dressing", Price: 9.99, Image: "/images/salad.png", Category: "Salads"},
		{Name: "Crispy Fries", Description: "Golden, crispy french fries seasoned with sea salt and herbs", Price: 5.99, Image: "/images/fries.png", Category: "Sides"},
		{Name: "Chicken Wings", Description: "Tender wings tossed in your choice of buffalo, BBQ, or garlic parmesan sauce", Price: 11.99, Image: "/images/wings.png", Category: "Sides"},
		{Name: "Pasta Carbonara", Description: "Creamy pasta with pancetta, egg, parmesan, and freshly cracked black pepper", Price: 13.99, Image: "/images/pasta.png", Category: "Pasta"},
		{Name: "Chocolate Lava Cake", Description: "Warm chocolate cake with a molten center, served with vanilla ice cream", Price: 8.99, Image: "/images/dessert.png", Category: "Desserts"},
		{Name: "Fresh Lemonade", Description: "Freshly squeezed lemonade with a hint of mint and honey", Price: 4.99, Image: "/images/drink.png", Category: "Drinks"},
	}
}

type Seeder interface {
	SeedIfEmpty(ctx context.Context, items []domain.MenuItem) (int, error)
}

// Seed fills an empty menu with DefaultItems.
func Seed(ctx context.Context, s Seeder, logger *slog.Logger) error {
	inserted, err := s.SeedIfEmpty(ctx, DefaultItems())
	if err != nil {
		return fmt.Errorf("seed menu: %w", err)
	}
	if inserted > 0 {
		logger.InfoContext(ctx, "menu seeded", "items", inserted)
	}
	return nil
}
