package service

import (
	"bytes"
	"context"
	"fmt"

	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"

	"github.com/quickcourt/reservation-core/internal/model"
)

// qrPayload is what a venue scanner reads at check-in.
func qrPayload(r model.Reservation) string {
	return fmt.Sprintf("QUICKCOURT|%s|%s|%d|%s|%s", r.Reference, r.ID, r.CourtID, r.Date, model.FormatClock(r.Start))
}

// RenderQR encodes the reservation's check-in payload as a PNG.
func RenderQR(r model.Reservation, size int) ([]byte, error) {
	if size <= 0 {
		size = 256
	}
	png, err := qrcode.Encode(qrPayload(r), qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr for %s: %w", r.Reference, err)
	}
	return png, nil
}

// RenderReceipt lays out a one-page PDF confirmation with the QR code.
func RenderReceipt(r model.Reservation, court model.Court, venue model.Venue) ([]byte, error) {
	png, err := RenderQR(r, 256)
	if err != nil {
		return nil, err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Booking "+r.Reference, false)
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 18)
	pdf.Cell(0, 10, "QuickCourt booking confirmation")
	pdf.Ln(14)

	pdf.SetFont("Arial", "", 12)
	lines := [][2]string{
		{"Reference", r.Reference},
		{"Status", string(r.Status)},
		{"Venue", venue.Name},
		{"Location", venue.Location},
		{"Court", fmt.Sprintf("%s (%s)", court.Name, court.Sport)},
		{"Date", r.Date.String()},
		{"Time", fmt.Sprintf("%s - %s", model.FormatClock(r.Start), model.FormatClock(r.End()))},
		{"Players", fmt.Sprintf("%d", r.PlayerCount)},
		{"Total", fmt.Sprintf("$%d.%02d", r.PriceCents/100, r.PriceCents%100)},
	}
	if r.Notes != "" {
		lines = append(lines, [2]string{"Requests", r.Notes})
	}
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	for _, l := range lines {
		pdf.CellFormat(35, 8, l[0]+":", "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 8, tr(l[1]), "", 1, "L", false, 0, "")
	}

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", opts, bytes.NewReader(png))
	pdf.ImageOptions("qr", 150, 30, 45, 45, false, opts, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render receipt %s: %w", r.Reference, err)
	}
	return buf.Bytes(), nil
}

// Receipt renders the PDF confirmation of a reservation visible to actor.
func (o *Orchestrator) Receipt(ctx context.Context, id string, actor model.Actor) ([]byte, model.Reservation, error) {
	r, err := o.Get(ctx, id, actor)
	if err != nil {
		return nil, model.Reservation{}, err
	}
	court, err := o.catalog.GetCourt(ctx, r.CourtID)
	if err != nil {
		return nil, model.Reservation{}, err
	}
	venue, err := o.catalog.GetVenue(ctx, r.VenueID)
	if err != nil {
		return nil, model.Reservation{}, err
	}
	pdf, err := RenderReceipt(r, court, venue)
	if err != nil {
		return nil, model.Reservation{}, err
	}
	return pdf, r, nil
}

// QRCode renders the check-in code of a reservation visible to actor.
func (o *Orchestrator) QRCode(ctx context.Context, id string, actor model.Actor) ([]byte, model.Reservation, error) {
	r, err := o.Get(ctx, id, actor)
	if err != nil {
		return nil, model.Reservation{}, err
	}
	png, err := RenderQR(r, 256)
	if err != nil {
		return nil, model.Reservation{}, err
	}
	return png, r, nil
}
