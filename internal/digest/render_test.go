package digest

import (
	"strings"
	"testing"

	"github.com/yourorg/ostrich-api/zillow"
)

func TestRenderFragment_OnlyPrice(t *testing.T) {
	price := 290000.0
	frag, err := RenderFragment(Property{ZPID: "1", Detail: zillow.PropertyDetail{Price: &price}})
	if err != nil {
		t.Fatalf("RenderFragment: %v", err)
	}

	want := []string{
		"<h2>N/A N/A, N/A N/A</h2>",
		"<h4>Bedrooms: N/A | Bathrooms: N/A</h4>",
		"<h4>Price: $290,000</h4>",
		"<h4>Taxes: N/A</h4>",
		"<h4>Estimated Rent: N/A</h4>",
		"<h4>Days on Market: N/A</h4>",
		"<h4>Cash On Cash: " + PluginCallToAction + "</h4>",
		`<img src="N/A">`,
		`<a href="N/A">Check it out!</a>`,
	}
	for _, w := range want {
		if !strings.Contains(frag, w) {
			t.Errorf("fragment missing %q\n%s", w, frag)
		}
	}
}

func TestRenderFragment_FullRecord(t *testing.T) {
	price, rent, beds, baths := 290000.0, 2400.0, 3.0, 2.5
	street, city, state, zip := "1 Main St", "Easton", "PA", "18042"
	days, img, url := "1 day", "https://photos.example/1.jpg", "/homedetails/1_zpid/"
	tax, ret := 157.08, 6.075521290469965

	frag, err := RenderFragment(Property{
		ZPID: "1",
		Detail: zillow.PropertyDetail{
			Price: &price, RentZestimate: &rent, Bedrooms: &beds, Bathrooms: &baths,
			Address:      &zillow.Address{StreetAddress: &street, City: &city, State: &state, Zipcode: &zip},
			TimeOnZillow: &days, ImgSrc: &img, URL: &url,
		},
		MonthlyTax: &tax,
		CashOnCash: &ret,
	})
	if err != nil {
		t.Fatalf("RenderFragment: %v", err)
	}
	want := []string{
		"<h2>1 Main St Easton, PA 18042</h2>",
		"Bedrooms: 3 | Bathrooms: 2.5",
		"Taxes: $157.08",
		"Estimated Rent: $2,400",
		"Days on Market: 1 day",
		"Cash On Cash: 6.08%",
		`<img src="https://photos.example/1.jpg">`,
		`<a href="https://www.zillow.com/homedetails/1_zpid/">Check it out!</a>`,
	}
	for _, w := range want {
		if !strings.Contains(frag, w) {
			t.Errorf("fragment missing %q\n%s", w, frag)
		}
	}
}

func TestRenderFragment_EscapesUpstreamText(t *testing.T) {
	street := "<script>alert(1)</script>"
	frag, err := RenderFragment(Property{Detail: zillow.PropertyDetail{Address: &zillow.Address{StreetAddress: &street}}})
	if err != nil {
		t.Fatalf("RenderFragment: %v", err)
	}
	if strings.Contains(frag, "<script>") {
		t.Errorf("upstream markup not escaped: %s", frag)
	}
}

func TestHeader(t *testing.T) {
	minP, maxP := 100000.0, 200000.0
	got, err := Header(Search{SearchParam: "Easton, PA", Params: zillow.SearchParams{MinPrice: &minP, MaxPrice: &maxP}})
	if err != nil {
		t.Fatalf("Header: %v", err)
	}
	want := "<h1>-Your Daily Zillow Listings-</h1><p>Market: Easton, PA</p><p>Price Range: $100,000-$200,000</p>"
	if got != want {
		t.Errorf("Header = %q, want %q", got, want)
	}

	got, _ = Header(Search{SearchParam: "x", Notes: "Lehigh Valley"})
	if !strings.Contains(got, "Market: Lehigh Valley") || !strings.Contains(got, "Price Range: N/A-N/A") {
		t.Errorf("Header with notes = %q", got)
	}
}
