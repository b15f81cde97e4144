package shop

import "time"

type Product struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"` // rupiah utuh, bukan sen
}

type Order struct {
	ID            string
	ProductID     string
	Quantity      int
	UnitPrice     int64 // snapshot harga saat checkout
	Disambiguator int64
	TotalAmount   int64
	Status        Status // lihat status.go
	AssignedCodes []string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type RedemptionCode struct {
	ID         int64
	ProductID  string
	Code       string
	Status     CodeStatus
	ReservedAt *time.Time
}

// ProductStock is what the storefront renders: catalog entry + live stock.
type ProductStock struct {
	Product
	Stock int `json:"stock"`
}
