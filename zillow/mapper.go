package zillow

import (
	"encoding/json"
	"strings"
)

// stringNumber accepts string or number JSON and stores as string
type stringNumber string

func (s *stringNumber) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = stringNumber(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return err
	}
	*s = stringNumber(num.String())
	return nil
}

func (s *stringNumber) ptr() *string {
	if s == nil || strings.TrimSpace(string(*s)) == "" {
		return nil
	}
	v := string(*s)
	return &v
}

// MapSearchPayload decodes a propertyExtendedSearch response. A body that
// does not carry a props array is treated as a failed search.
func MapSearchPayload(raw []byte) ([]ListingCandidate, error) {
	type sProp struct {
		ZPID         stringNumber `json:"zpid"`
		Address      string       `json:"address"`
		Price        *float64     `json:"price"`
		Bedrooms     *float64     `json:"bedrooms"`
		Bathrooms    *float64     `json:"bathrooms"`
		DaysOnZillow *float64     `json:"daysOnZillow"`
		ImgSrc       string       `json:"imgSrc"`
	}
	var root struct {
		Props *[]sProp `json:"props"`
	}
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, err
	}
	if root.Props == nil {
		return nil, ErrMalformedResponse
	}

	out := make([]ListingCandidate, 0, len(*root.Props))
	for _, p := range *root.Props {
		out = append(out, ListingCandidate{
			ZPID:         strings.TrimSpace(string(p.ZPID)),
			Address:      p.Address,
			Price:        p.Price,
			Bedrooms:     p.Bedrooms,
			Bathrooms:    p.Bathrooms,
			DaysOnZillow: p.DaysOnZillow,
			ImgSrc:       p.ImgSrc,
		})
	}
	return out, nil
}

// MapPropertyPayload decodes a /property response. Flat address fields are
// used when the nested address object is missing.
func MapPropertyPayload(raw []byte) (PropertyDetail, error) {
	type pAddress struct {
		StreetAddress stringNumber `json:"streetAddress"`
		City          stringNumber `json:"city"`
		State         stringNumber `json:"state"`
		Zipcode       stringNumber `json:"zipcode"`
	}
	var p struct {
		ZPID            stringNumber `json:"zpid"`
		Price           *float64     `json:"price"`
		PropertyTaxRate *float64     `json:"propertyTaxRate"`
		RentZestimate   *float64     `json:"rentZestimate"`
		Address         *pAddress    `json:"address"`
		StreetAddress   stringNumber `json:"streetAddress"`
		City            stringNumber `json:"city"`
		State           stringNumber `json:"state"`
		Zipcode         stringNumber `json:"zipcode"`
		Bedrooms        *float64     `json:"bedrooms"`
		Bathrooms       *float64     `json:"bathrooms"`
		TimeOnZillow    stringNumber `json:"timeOnZillow"`
		ImgSrc          stringNumber `json:"imgSrc"`
		URL             stringNumber `json:"url"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return PropertyDetail{}, err
	}

	d := PropertyDetail{
		ZPID:            string(p.ZPID),
		Price:           p.Price,
		PropertyTaxRate: p.PropertyTaxRate,
		RentZestimate:   p.RentZestimate,
		Bedrooms:        p.Bedrooms,
		Bathrooms:       p.Bathrooms,
		TimeOnZillow:    p.TimeOnZillow.ptr(),
		ImgSrc:          p.ImgSrc.ptr(),
		URL:             p.URL.ptr(),
	}
	switch {
	case p.Address != nil:
		d.Address = &Address{
			StreetAddress: p.Address.StreetAddress.ptr(),
			City:          p.Address.City.ptr(),
			State:         p.Address.State.ptr(),
			Zipcode:       p.Address.Zipcode.ptr(),
		}
	case p.StreetAddress != "" || p.City != "" || p.State != "" || p.Zipcode != "":
		d.Address = &Address{
			StreetAddress: p.StreetAddress.ptr(),
			City:          p.City.ptr(),
			State:         p.State.ptr(),
			Zipcode:       p.Zipcode.ptr(),
		}
	}
	return d, nil
}
