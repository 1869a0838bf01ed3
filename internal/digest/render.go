package digest

import (
	"html/template"
	"strings"

	"github.com/yourorg/ostrich-api/internal/format"
)

// PluginCallToAction replaces the return when it could not be computed.
const PluginCallToAction = `<a href="https://chrome.google.com/webstore/detail/ostrich/aicgkflmidjkbcenllnnlbnfnmicpmgo">Use Ostrich Plugin to run this calculation!</a>`

const listingBaseURL = "https://www.zillow.com"

var headerTmpl = template.Must(template.New("header").Parse(
	`<h1>-Your Daily Zillow Listings-</h1><p>Market: {{.Market}}</p><p>Price Range: {{.Min}}-{{.Max}}</p>`))

var fragmentTmpl = template.Must(template.New("fragment").Parse(`
<h2>{{.Address}}</h2>
<h4>{{.Specs}}</h4>
<h4>Price: {{.Price}}</h4>
<h4>Taxes: {{.Taxes}}</h4>
<h4>Estimated Rent: {{.Rent}}</h4>
<h4>Days on Market: {{.DaysOnMarket}}</h4>
<h4>Cash On Cash: {{.CashOnCash}}</h4>
<img src="{{.ImgSrc}}">
<a href="{{.Link}}">Check it out!</a>
`))

// Header renders the seed of every digest body.
func Header(s Search) (string, error) {
	market := s.Notes
	if strings.TrimSpace(market) == "" {
		market = s.SearchParam
	}
	var sb strings.Builder
	err := headerTmpl.Execute(&sb, struct{ Market, Min, Max string }{
		Market: format.Text(market),
		Min:    format.OptionalMoney(s.Params.MinPrice),
		Max:    format.OptionalMoney(s.Params.MaxPrice),
	})
	return sb.String(), err
}

type fragmentView struct {
	Address      string
	Specs        string
	Price        string
	Taxes        string
	Rent         string
	DaysOnMarket string
	CashOnCash   template.HTML
	ImgSrc       string
	Link         string
}

// RenderFragment renders one property. Absent fields render as
// format.Placeholder.
func RenderFragment(p Property) (string, error) {
	d := p.Detail
	v := fragmentView{
		Address:      AddressLine(p),
		Specs:        "Bedrooms: " + format.OptionalNumber(d.Bedrooms) + " | Bathrooms: " + format.OptionalNumber(d.Bathrooms),
		Price:        format.OptionalMoney(d.Price),
		Taxes:        format.OptionalMoney(p.MonthlyTax),
		Rent:         format.OptionalMoney(d.RentZestimate),
		DaysOnMarket: format.OptionalText(d.TimeOnZillow),
		CashOnCash:   template.HTML(PluginCallToAction),
		ImgSrc:       format.OptionalText(d.ImgSrc),
		Link:         format.Optional(d.URL, func(u string) string { return listingBaseURL + u }),
	}
	if p.CashOnCash != nil {
		v.CashOnCash = template.HTML(template.HTMLEscapeString(format.Percent(*p.CashOnCash)))
	}

	var sb strings.Builder
	if err := fragmentTmpl.Execute(&sb, v); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// AddressLine renders "street city, state zip".
func AddressLine(p Property) string {
	a := p.Detail.Address
	if a == nil {
		return strings.Join([]string{format.Placeholder, format.Placeholder + ",", format.Placeholder, format.Placeholder}, " ")
	}
	return format.OptionalText(a.StreetAddress) + " " +
		format.OptionalText(a.City) + ", " +
		format.OptionalText(a.State) + " " +
		format.OptionalText(a.Zipcode)
}
