// Package admin renders the shipment listing shown to store operators.
package admin

import (
	"fmt"
	"html/template"
	"io"
	"text/tabwriter"

	"github.com/tournevent/sendcloud-fulfillment/pkg/fulfillment"
)

// DefaultPageSize is the number of parcels per listing page.
const DefaultPageSize = 10

// Badge colors for parcel statuses.
const (
	ColorGrey  = "grey"
	ColorGreen = "green"
	ColorBlue  = "blue"
)

// StatusColor maps a carrier status id to a badge color.
func StatusColor(statusID int) string {
	switch statusID {
	case fulfillment.ParcelStatusCancelled:
		return ColorGrey
	case fulfillment.ParcelStatusReadyToSend:
		return ColorGreen
	default:
		return ColorBlue
	}
}

// Page is one page of the listing. Page indexes start at zero.
type Page struct {
	Items       []fulfillment.Parcel
	Page        int
	PageSize    int
	PageCount   int
	Total       int
	CanPrevious bool
	CanNext     bool
}

// Paginate slices parcels into the requested page. Out-of-range pages are
// clamped to the nearest valid page.
func Paginate(parcels []fulfillment.Parcel, page, size int) Page {
	if size <= 0 {
		size = DefaultPageSize
	}
	total := len(parcels)
	pageCount := (total + size - 1) / size

	if page >= pageCount {
		page = pageCount - 1
	}
	if page < 0 {
		page = 0
	}

	offset := page * size
	end := min(offset+size, total)
	items := []fulfillment.Parcel{}
	if offset < end {
		items = parcels[offset:end]
	}

	return Page{
		Items:       items,
		Page:        page,
		PageSize:    size,
		PageCount:   pageCount,
		Total:       total,
		CanPrevious: page-1 >= 0,
		CanNext:     page < pageCount-1,
	}
}

// Row is the view of one parcel in the table.
type Row struct {
	ID             int64
	Email          string
	Name           string
	OrderNumber    string
	PostalCode     string
	ItemCount      int
	StatusMessage  string
	StatusColor    string
	TrackingNumber string
	TrackingURL    string
}

// Rows converts the page items into table rows.
func (p Page) Rows() []Row {
	rows := make([]Row, len(p.Items))
	for i, parcel := range p.Items {
		rows[i] = Row{
			ID:             parcel.ID,
			Email:          parcel.Email,
			Name:           parcel.Name,
			OrderNumber:    parcel.OrderNumber,
			PostalCode:     parcel.PostalCode,
			ItemCount:      len(parcel.ParcelItems),
			StatusMessage:  parcel.Status.Message,
			StatusColor:    StatusColor(parcel.Status.ID),
			TrackingNumber: parcel.TrackingNumber,
			TrackingURL:    parcel.TrackingURL,
		}
	}
	return rows
}

type pageView struct {
	Page
	Rows     []Row
	BasePath string
	Number   int
}

var pageTemplate = template.Must(template.New("shipments").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Shipments</title>
<style>
body { font-family: sans-serif; margin: 2rem; }
table { border-collapse: collapse; width: 100%; }
th, td { text-align: left; padding: .4rem .6rem; border-bottom: 1px solid #ddd; }
.badge { padding: .1rem .5rem; border-radius: .6rem; font-size: .85rem; }
.badge-grey { background: #e5e7eb; }
.badge-green { background: #bbf7d0; }
.badge-blue { background: #bfdbfe; }
</style>
</head>
<body>
<h2>Shipments</h2>
{{if .Rows}}
<table>
<thead>
<tr><th>#</th><th>Customer Email</th><th>Customer Name</th><th>Order #</th><th>Zip</th><th>Items</th><th>Status</th><th>Tracking #</th><th>Track URL</th></tr>
</thead>
<tbody>
{{range .Rows}}<tr>
<td>{{.ID}}</td><td>{{.Email}}</td><td>{{.Name}}</td><td>{{.OrderNumber}}</td><td>{{.PostalCode}}</td><td>{{.ItemCount}}</td>
<td><span class="badge badge-{{.StatusColor}}">{{.StatusMessage}}</span></td>
<td>{{.TrackingNumber}}</td>
<td>{{if .TrackingURL}}<a href="{{.TrackingURL}}" target="_blank" rel="noopener">Track</a>{{end}}</td>
</tr>
{{end}}</tbody>
</table>
<p>
{{if .CanPrevious}}<a href="{{.BasePath}}?page={{.PreviousPage}}">Previous</a>{{end}}
Page {{.Number}} of {{.PageCount}} ({{.Total}} parcels)
{{if .CanNext}}<a href="{{.BasePath}}?page={{.NextPage}}">Next</a>{{end}}
</p>
{{else}}
<p>No shipments found.</p>
{{end}}
</body>
</html>
`))

// PreviousPage is the index of the page before this one.
func (p Page) PreviousPage() int { return p.Page - 1 }

// NextPage is the index of the page after this one.
func (p Page) NextPage() int { return p.Page + 1 }

// RenderHTML writes the page as an HTML document. basePath is the route the
// pagination links point to.
func RenderHTML(w io.Writer, p Page, basePath string) error {
	return pageTemplate.Execute(w, pageView{
		Page:     p,
		Rows:     p.Rows(),
		BasePath: basePath,
		Number:   p.Page + 1,
	})
}

// RenderText writes the page as an aligned text table.
func RenderText(w io.Writer, p Page) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tEMAIL\tNAME\tORDER #\tZIP\tITEMS\tSTATUS\tTRACKING #\tTRACK URL")
	for _, r := range p.Rows() {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			r.ID, r.Email, r.Name, r.OrderNumber, r.PostalCode, r.ItemCount,
			r.StatusMessage+" ("+r.StatusColor+")", r.TrackingNumber, r.TrackingURL)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if p.Total == 0 {
		_, err := fmt.Fprintln(w, "No shipments found.")
		return err
	}
	_, err := fmt.Fprintf(w, "Page %d of %d (%d parcels)\n", p.Page+1, p.PageCount, p.Total)
	return err
}
