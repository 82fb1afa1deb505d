package manifest

import (
	"bytes"
	"context"
	"fmt"

	"github.com/clinicdesk/clinicdesk/internal/api/dto"
	"github.com/clinicdesk/clinicdesk/internal/config"
	ierr "github.com/clinicdesk/clinicdesk/internal/errors"
	"github.com/clinicdesk/clinicdesk/internal/logger"
	"github.com/clinicdesk/clinicdesk/internal/types"
	"github.com/samber/lo"
	"github.com/xuri/excelize/v2"
)

// Generator renders committed deposit slips and remittance listings as
// spreadsheets. It only reads the result it is given and never queries the
// store, so what is printed is exactly what was claimed.
type Generator interface {
	RenderBordereau(ctx context.Context, result *dto.BatchResult) ([]byte, error)
	RenderRemittance(ctx context.Context, listing *dto.Listing) ([]byte, error)
}

const (
	bordereauSheet  = "Bordereau"
	remittanceSheet = "Remise"

	// rows 1-3 hold the header, line items start at row 5
	headerTitleCell = "A1"
	headerIDCell    = "A2"
	headerDateCell  = "A3"
	columnsRow      = 4
	dataRowStart    = 5
)

type service struct {
	practitioner string
	logger       *logger.Logger
}

// NewGenerator creates a new manifest generator
func NewGenerator(cfg *config.Configuration, logger *logger.Logger) Generator {
	return &service{
		practitioner: cfg.Billing.GetReferencePrefix(),
		logger:       logger,
	}
}

func (s *service) RenderBordereau(ctx context.Context, result *dto.BatchResult) ([]byte, error) {
	if result.Empty() {
		return nil, ierr.NewError("nothing to render").
			WithHint("The deposit slip is empty").
			Mark(ierr.ErrInvalidOperation)
	}

	header := []string{
		fmt.Sprintf("Bordereau de remise %s", s.practitioner),
		fmt.Sprintf("N° %s", result.BatchID),
		fmt.Sprintf("Date %s", result.BatchDate.Format(types.DateFormatFrench)),
	}
	columns := []string{"N° facture", "Patient", "Date de l'acte", "Tiers payant"}

	rows := make([][]any, 0, len(result.Invoices))
	for _, inv := range result.Invoices {
		rows = append(rows, []any{
			inv.InvoiceNumber,
			inv.PatientID,
			inv.ActDate.Format(types.DateFormatFrench),
			inv.ThirdPartyAmount.InexactFloat64(),
		})
	}
	footer := []any{"Total", result.Count, "", result.Total.InexactFloat64()}

	data, err := s.render(bordereauSheet, header, columns, rows, footer)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("failed to render deposit slip").
			WithReportableDetails(map[string]any{"batch_id": result.BatchID}).
			Mark(ierr.ErrSystem)
	}

	s.logger.Debugw("rendered deposit slip",
		"batch_id", result.BatchID,
		"count", result.Count,
		"bytes", len(data),
	)
	return data, nil
}

func (s *service) RenderRemittance(ctx context.Context, listing *dto.Listing) ([]byte, error) {
	if listing.Empty() {
		return nil, ierr.NewError("nothing to render").
			WithHint("The remittance listing is empty").
			Mark(ierr.ErrInvalidOperation)
	}

	header := []string{
		fmt.Sprintf("Remise %s %s", listing.Method, s.practitioner),
		fmt.Sprintf("Jusqu'au %s", listing.Cutoff.Format(types.DateFormatFrench)),
		fmt.Sprintf("%d paiement(s)", listing.Count),
	}
	columns := []string{"Date", "Banque", "Titulaire", "Montant"}

	rows := make([][]any, 0, len(listing.Payments))
	for _, p := range listing.Payments {
		rows = append(rows, []any{
			p.PaymentDate.Format(types.DateFormatFrench),
			p.Bank,
			p.Holder,
			p.Amount.InexactFloat64(),
		})
	}
	footer := []any{"Total", listing.Count, "", listing.Total.InexactFloat64()}

	data, err := s.render(remittanceSheet, header, columns, rows, footer)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("failed to render remittance listing").
			WithReportableDetails(map[string]any{"method": listing.Method}).
			Mark(ierr.ErrSystem)
	}

	s.logger.Debugw("rendered remittance listing",
		"method", listing.Method,
		"count", listing.Count,
		"bytes", len(data),
	)
	return data, nil
}

func (s *service) render(sheet string, header, columns []string, rows [][]any, footer []any) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName(file.GetSheetName(0), sheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	for i, cell := range []string{headerTitleCell, headerIDCell, headerDateCell} {
		if err := file.SetCellValue(sheet, cell, header[i]); err != nil {
			return nil, fmt.Errorf("failed to set header %s: %w", cell, err)
		}
	}

	if err := s.setRow(file, sheet, columnsRow, lo.ToAnySlice(columns)); err != nil {
		return nil, err
	}
	for i, row := range rows {
		if err := s.setRow(file, sheet, dataRowStart+i, row); err != nil {
			return nil, err
		}
	}
	if err := s.setRow(file, sheet, dataRowStart+len(rows)+1, footer); err != nil {
		return nil, err
	}

	if err := file.SetColWidth(sheet, "A", "D", 20); err != nil {
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}

	var buf bytes.Buffer
	if err := file.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *service) setRow(file *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("invalid row %d: %w", row, err)
	}
	if err := file.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to set row %d: %w", row, err)
	}
	return nil
}
