package constants

// StandardCategories seeds the extraction prompt. The oracle may introduce
// new categories when none of these fit; they are suggestions, not an enum.
var StandardCategories = []string{
	"Burgers",
	"Chicken",
	"Sandwiches",
	"Salads",
	"Sides",
	"Drinks",
	"Desserts",
	"Breakfast",
	"Wraps",
	"Tacos",
	"Bowls",
	"Kids Meals",
	"Sauces & Dressings",
	"Snacks",
}
