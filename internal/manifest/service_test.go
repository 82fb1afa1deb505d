package manifest

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/clinicdesk/clinicdesk/internal/api/dto"
	"github.com/clinicdesk/clinicdesk/internal/config"
	"github.com/clinicdesk/clinicdesk/internal/domain/invoice"
	"github.com/clinicdesk/clinicdesk/internal/domain/payment"
	ierr "github.com/clinicdesk/clinicdesk/internal/errors"
	"github.com/clinicdesk/clinicdesk/internal/logger"
	"github.com/clinicdesk/clinicdesk/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func newTestGenerator() Generator {
	return NewGenerator(config.GetDefaultConfig(), logger.NewNopLogger())
}

func openWorkbook(t *testing.T, data []byte) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func cell(t *testing.T, f *excelize.File, sheet, name string) string {
	t.Helper()
	v, err := f.GetCellValue(sheet, name)
	require.NoError(t, err)
	return v
}

func TestRenderBordereau(t *testing.T) {
	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	result := dto.NewBatchResult("M2024-06-22-153", day, []*invoice.Invoice{
		{ID: "inv_1", InvoiceNumber: "5", PatientID: "patient_1", ActDate: day, ThirdPartyAmount: decimal.NewFromInt(20)},
		{ID: "inv_2", InvoiceNumber: "7", PatientID: "patient_2", ActDate: day.AddDate(0, 0, -3), ThirdPartyAmount: decimal.RequireFromString("50.50")},
	})

	data, err := newTestGenerator().RenderBordereau(context.Background(), result)
	require.NoError(t, err)

	f := openWorkbook(t, data)
	assert.Equal(t, []string{bordereauSheet}, f.GetSheetList())
	assert.Equal(t, "N° M2024-06-22-153", cell(t, f, bordereauSheet, "A2"))
	assert.Equal(t, "Date 01/06/2024", cell(t, f, bordereauSheet, "A3"))

	assert.Equal(t, "N° facture", cell(t, f, bordereauSheet, "A4"))
	assert.Equal(t, "5", cell(t, f, bordereauSheet, "A5"))
	assert.Equal(t, "patient_2", cell(t, f, bordereauSheet, "B6"))
	assert.Equal(t, "29/05/2024", cell(t, f, bordereauSheet, "C6"))
	assert.Equal(t, "50.5", cell(t, f, bordereauSheet, "D6"))

	assert.Equal(t, "Total", cell(t, f, bordereauSheet, "A8"))
	assert.Equal(t, "2", cell(t, f, bordereauSheet, "B8"))
	assert.Equal(t, "70.5", cell(t, f, bordereauSheet, "D8"))
}

func TestRenderBordereau_Empty(t *testing.T) {
	empty := dto.NewBatchResult("M2024-06-22-153", time.Now(), nil)

	_, err := newTestGenerator().RenderBordereau(context.Background(), empty)
	assert.True(t, ierr.IsInvalidOperation(err))
}

func TestRenderRemittance(t *testing.T) {
	cutoff := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	listing := dto.NewListing(types.PaymentMethodCheque, cutoff, []*payment.Payment{
		{ID: "pay_1", PaymentDate: cutoff.AddDate(0, 0, -1), Bank: "Socredo", Holder: "Mme Tetuanui", Amount: decimal.NewFromInt(40)},
		{ID: "pay_2", PaymentDate: cutoff, Bank: "Banque de Tahiti", Holder: "M. Lucas", Amount: decimal.RequireFromString("12.50")},
	})

	data, err := newTestGenerator().RenderRemittance(context.Background(), listing)
	require.NoError(t, err)

	f := openWorkbook(t, data)
	assert.Equal(t, "Remise CHEQUE JA", cell(t, f, remittanceSheet, "A1"))
	assert.Equal(t, "Jusqu'au 01/06/2024", cell(t, f, remittanceSheet, "A2"))
	assert.Equal(t, "31/05/2024", cell(t, f, remittanceSheet, "A5"))
	assert.Equal(t, "Socredo", cell(t, f, remittanceSheet, "B5"))
	assert.Equal(t, "M. Lucas", cell(t, f, remittanceSheet, "C6"))
	assert.Equal(t, "12.5", cell(t, f, remittanceSheet, "D6"))
	assert.Equal(t, "52.5", cell(t, f, remittanceSheet, "D8"))
}

func TestRenderRemittance_Empty(t *testing.T) {
	empty := dto.NewListing(types.PaymentMethodCheque, time.Now(), nil)

	_, err := newTestGenerator().RenderRemittance(context.Background(), empty)
	assert.True(t, ierr.IsInvalidOperation(err))
}
