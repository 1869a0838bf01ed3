package zillow

// SearchParams drives one propertyExtendedSearch call.
type SearchParams struct {
	Location  string
	HomeType  string // defaults to Houses
	MinPrice  *float64
	MaxPrice  *float64
	Bedrooms  *int
	Bathrooms *int
	DaysOn    int // 0 omits the filter
}

// ListingCandidate is one search hit. Only ZPID matters to the digest.
type ListingCandidate struct {
	ZPID         string   `json:"zpid,omitempty"`
	Address      string   `json:"address,omitempty"`
	Price        *float64 `json:"price,omitempty"`
	Bedrooms     *float64 `json:"bedrooms,omitempty"`
	Bathrooms    *float64 `json:"bathrooms,omitempty"`
	DaysOnZillow *float64 `json:"daysOnZillow,omitempty"`
	ImgSrc       string   `json:"imgSrc,omitempty"`
}

type Address struct {
	StreetAddress *string `json:"streetAddress,omitempty"`
	City          *string `json:"city,omitempty"`
	State         *string `json:"state,omitempty"`
	Zipcode       *string `json:"zipcode,omitempty"`
}

// PropertyDetail is the per-zpid record. Every field may be absent.
type PropertyDetail struct {
	ZPID            string   `json:"zpid,omitempty"`
	Price           *float64 `json:"price,omitempty"`
	PropertyTaxRate *float64 `json:"propertyTaxRate,omitempty"` // annual, percent
	RentZestimate   *float64 `json:"rentZestimate,omitempty"`
	Address         *Address `json:"address,omitempty"`
	Bedrooms        *float64 `json:"bedrooms,omitempty"`
	Bathrooms       *float64 `json:"bathrooms,omitempty"`
	TimeOnZillow    *string  `json:"timeOnZillow,omitempty"`
	ImgSrc          *string  `json:"imgSrc,omitempty"`
	URL             *string  `json:"url,omitempty"`
}

// MonthlyTax derives the monthly property tax from the annual rate.
// It is nil unless both price and a non-zero rate are known.
func (d PropertyDetail) MonthlyTax() *float64 {
	if d.Price == nil || d.PropertyTaxRate == nil || *d.PropertyTaxRate == 0 {
		return nil
	}
	v := *d.PropertyTaxRate * *d.Price / 1200
	return &v
}
