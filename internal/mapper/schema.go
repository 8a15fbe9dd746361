package mapper

// tableSchema declares a standard table's primary key and known columns.
// Fields outside the column set are preserved in the metadata JSON column.
type tableSchema struct {
	name       string
	primaryKey string
	columns    map[string]bool
	moneyCols  map[string]bool
	timeCols   map[string]bool
}

var productsSchema = tableSchema{
	name:       "products",
	primaryKey: "gtin",
	columns: map[string]bool{
		"gtin": true, "sku": true, "name": true, "description": true,
		"brand": true, "manufacturer": true, "category": true,
		"price": true, "currency": true, "unit": true,
		"stock_quantity": true, "image_url": true,
		"created_at": true, "updated_at": true,
	},
	moneyCols: map[string]bool{"price": true},
	timeCols:  map[string]bool{"created_at": true, "updated_at": true},
}

var syndicationSchema = tableSchema{
	name:       "syndication_products",
	primaryKey: "id",
	columns: map[string]bool{
		"id": true, "gtin": true, "title": true, "description": true,
		"brand": true, "price": true, "currency": true, "channel": true,
		"status": true, "created_at": true,
	},
	moneyCols: map[string]bool{"price": true},
	timeCols:  map[string]bool{"created_at": true},
}

var dataQualitySchema = tableSchema{
	name:       "data_quality_audit",
	primaryKey: "id",
	columns: map[string]bool{
		"id": true, "gtin": true, "check_name": true, "status": true,
		"details": true, "source_file": true, "checked_at": true,
	},
	timeCols: map[string]bool{"checked_at": true},
}
