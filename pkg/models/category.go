package models

// Category identifies a travel inventory category. Stages fan out across
// categories when generating and scoring candidates.
type Category string

const (
	CategoryHotel      Category = "hotel"
	CategoryFlight     Category = "flight"
	CategoryActivity   Category = "activity"
	CategoryRestaurant Category = "restaurant"
	CategoryCar        Category = "car"
)

// AllCategories lists every category in pipeline order.
func AllCategories() []Category {
	return []Category{
		CategoryHotel,
		CategoryFlight,
		CategoryActivity,
		CategoryRestaurant,
		CategoryCar,
	}
}
