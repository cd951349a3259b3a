package services

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/phpdave11/gofpdf"

	"tripbooking/internal/domain"
	"tripbooking/internal/domain/models"
	"tripbooking/internal/logger"
	"tripbooking/internal/utils"
)

// ReceiptService renders a PDF payment receipt for a paid booking.
type ReceiptService struct {
	Bookings  BookingService
	RequestID string
	Loader    func(ctx context.Context, actor domain.Actor, bookingID string) (receiptData, error)
}

type receiptData struct {
	Booking models.Booking
	Trip    models.Trip
}

func (s ReceiptService) Generate(ctx context.Context, actor domain.Actor, bookingID string) ([]byte, string, error) {
	data, err := s.load(ctx, actor, bookingID)
	if err != nil {
		return nil, "", err
	}
	b := data.Booking
	if b.PaymentStatus != models.PaymentPaid || !b.PaymentVerified {
		return nil, "", domain.ConflictError{Resource: "booking", Msg: "receipt is only available for paid bookings"}
	}
	logger.Event(s.RequestID, "receipts", "generate").WithField("booking_id", b.ID).Info("receipt generated")
	return buildReceiptPDF(data)
}

func (s ReceiptService) load(ctx context.Context, actor domain.Actor, bookingID string) (receiptData, error) {
	if s.Loader != nil {
		return s.Loader(ctx, actor, bookingID)
	}
	b, err := s.Bookings.Get(ctx, actor, bookingID)
	if err != nil {
		return receiptData{}, err
	}
	trip, err := s.Bookings.trips().Get(ctx, b.TripID)
	if err != nil {
		return receiptData{}, err
	}
	return receiptData{Booking: b, Trip: trip}, nil
}

func buildReceiptPDF(d receiptData) ([]byte, string, error) {
	b, t := d.Booking, d.Trip

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Payment Receipt", false)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "PAYMENT RECEIPT")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	lines := []string{
		fmt.Sprintf("Booking        : %s", b.ID),
		fmt.Sprintf("Route          : %s -> %s", safe(t.Origin, "-"), safe(t.Destination, "-")),
		fmt.Sprintf("Date / Time    : %s %s", utils.FormatDate(t.Date), safe(t.Time, "")),
		fmt.Sprintf("Seats          : %d", b.SeatsBooked),
		fmt.Sprintf("Price per seat : %s", utils.FormatMoney(t.Price)),
		fmt.Sprintf("Payment method : %s", safe(strings.ToUpper(b.PaymentMethod), "-")),
		fmt.Sprintf("Transaction    : %s", safe(b.TransactionID, "-")),
	}
	for _, s := range lines {
		pdf.Cell(0, 7, s)
		pdf.Ln(7)
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 14)
	pdf.Cell(0, 8, "Total paid: "+utils.FormatMoney(b.AmountPaid))
	pdf.Ln(12)

	if t.IsTourism && len(t.TourismFeatures) > 0 {
		features := []string{}
		for name, on := range t.TourismFeatures {
			if on {
				features = append(features, name)
			}
		}
		if len(features) > 0 {
			pdf.SetFont("Helvetica", "", 11)
			pdf.MultiCell(0, 6, "Included: "+strings.Join(sortedCopy(features), ", "), "", "", false)
			pdf.Ln(2)
		}
	}

	pdf.SetFont("Helvetica", "I", 10)
	pdf.MultiCell(0, 6, "Keep this receipt as proof of payment. Seats are held for the trip date above.", "", "", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", err
	}
	filename := fmt.Sprintf("RECEIPT_%s.pdf", safeFilenamePart(b.ID))
	return buf.Bytes(), filename, nil
}

func safe(v, fallback string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return fallback
	}
	return v
}

func safeFilenamePart(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "NA"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "_", "\\", "_", ":", "_", "*", "_", "?", "_", "\"", "_", "<", "_", ">", "_", "|", "_")
	s = replacer.Replace(s)
	if len(s) > 40 {
		s = s[:40]
	}
	return s
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
