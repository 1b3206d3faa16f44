package admin_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/sendcloud-fulfillment/internal/admin"
	"github.com/tournevent/sendcloud-fulfillment/pkg/fulfillment"
)

func parcels(n int) []fulfillment.Parcel {
	out := make([]fulfillment.Parcel, n)
	for i := range out {
		out[i] = fulfillment.Parcel{ID: int64(i + 1), Status: fulfillment.ParcelStatus{ID: 1000, Message: "Ready to send"}}
	}
	return out
}

func TestStatusColor(t *testing.T) {
	assert.Equal(t, "grey", admin.StatusColor(2000))
	assert.Equal(t, "green", admin.StatusColor(1000))
	assert.Equal(t, "blue", admin.StatusColor(3))
	assert.Equal(t, "blue", admin.StatusColor(0))
}

func TestPaginate(t *testing.T) {
	all := parcels(25)

	tests := []struct {
		name        string
		page        int
		wantPage    int
		wantFirstID int64
		wantLen     int
		canPrev     bool
		canNext     bool
	}{
		{"first", 0, 0, 1, 10, false, true},
		{"middle", 1, 1, 11, 10, true, true},
		{"last partial", 2, 2, 21, 5, true, false},
		{"past end clamps", 7, 2, 21, 5, true, false},
		{"negative clamps", -3, 0, 1, 10, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := admin.Paginate(all, tt.page, 10)

			assert.Equal(t, tt.wantPage, p.Page)
			assert.Equal(t, 3, p.PageCount)
			assert.Equal(t, 25, p.Total)
			require.Len(t, p.Items, tt.wantLen)
			assert.Equal(t, tt.wantFirstID, p.Items[0].ID)
			assert.Equal(t, tt.canPrev, p.CanPrevious)
			assert.Equal(t, tt.canNext, p.CanNext)
		})
	}
}

func TestPaginate_Empty(t *testing.T) {
	p := admin.Paginate(nil, 0, 0)

	assert.Empty(t, p.Items)
	assert.Zero(t, p.PageCount)
	assert.Equal(t, admin.DefaultPageSize, p.PageSize)
	assert.False(t, p.CanPrevious)
	assert.False(t, p.CanNext)
}

func TestPaginate_ExactMultiple(t *testing.T) {
	p := admin.Paginate(parcels(20), 1, 10)

	assert.Equal(t, 2, p.PageCount)
	assert.False(t, p.CanNext)
	assert.Len(t, p.Items, 10)
}

func TestRows(t *testing.T) {
	p := admin.Paginate([]fulfillment.Parcel{{
		ID:             555,
		Email:          "ada@example.com",
		Name:           "Ada Lovelace",
		OrderNumber:    "17",
		PostalCode:     "1012LG",
		TrackingNumber: "3SXYZ",
		Status:         fulfillment.ParcelStatus{ID: 2000, Message: "Cancelled"},
		ParcelItems:    []fulfillment.ParcelItem{{}, {}},
	}}, 0, 10)

	rows := p.Rows()

	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0].ItemCount)
	assert.Equal(t, "grey", rows[0].StatusColor)
	assert.Equal(t, "Cancelled", rows[0].StatusMessage)
}

func TestRenderHTML(t *testing.T) {
	all := parcels(12)
	all[0].Email = "<script>@example.com"
	all[0].TrackingURL = "https://tracking.example.com/3SXYZ"
	var buf bytes.Buffer

	require.NoError(t, admin.RenderHTML(&buf, admin.Paginate(all, 0, 10), "/admin/shipments"))

	html := buf.String()
	assert.Contains(t, html, "<th>Customer Email</th>")
	assert.Contains(t, html, "badge-green")
	assert.Contains(t, html, `href="/admin/shipments?page=1"`)
	assert.NotContains(t, html, "?page=-1")
	assert.Contains(t, html, "Page 1 of 2")
	assert.Contains(t, html, "&lt;script&gt;")
	assert.Contains(t, html, "https://tracking.example.com/3SXYZ")
}

func TestRenderHTML_Empty(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, admin.RenderHTML(&buf, admin.Paginate(nil, 0, 10), "/admin/shipments"))

	assert.Contains(t, buf.String(), "No shipments found.")
	assert.NotContains(t, buf.String(), "<table>")
}

func TestRenderText(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, admin.RenderText(&buf, admin.Paginate(parcels(3), 0, 10)))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[0], "#"))
	assert.Contains(t, lines[1], "Ready to send (green)")
	assert.Equal(t, "Page 1 of 1 (3 parcels)", lines[4])
}
