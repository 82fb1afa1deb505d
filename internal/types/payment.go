package types

import (
	"strings"

	ierr "github.com/clinicdesk/clinicdesk/internal/errors"
	"github.com/samber/lo"
)

// PaymentMethod is how a patient settled an invoice
type PaymentMethod string

const (
	PaymentMethodCard     PaymentMethod = "CARD"
	PaymentMethodCheque   PaymentMethod = "CHEQUE"
	PaymentMethodCash     PaymentMethod = "CASH"
	PaymentMethodTransfer PaymentMethod = "TRANSFER"
	PaymentMethodFree     PaymentMethod = "FREE"
)

// paymentMethodAliases maps the labels used on the front desk forms to methods
var paymentMethodAliases = map[string]PaymentMethod{
	"CB":       PaymentMethodCard,
	"CHÈQUE":   PaymentMethodCheque,
	"CHEQUES":  PaymentMethodCheque,
	"CHECK":    PaymentMethodCheque,
	"LIQUIDE":  PaymentMethodCash,
	"VIREMENT": PaymentMethodTransfer,
	"GRATUIT":  PaymentMethodFree,
}

func (m PaymentMethod) String() string {
	return string(m)
}

func (m PaymentMethod) Validate() error {
	allowed := []PaymentMethod{
		PaymentMethodCard,
		PaymentMethodCheque,
		PaymentMethodCash,
		PaymentMethodTransfer,
		PaymentMethodFree,
	}
	if !lo.Contains(allowed, m) {
		return ierr.NewError("invalid payment method").
			WithHint("Please provide a valid payment method").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
				"got":     m,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// ParsePaymentMethod normalizes user input ("Cheque", "chèque", "CB", ...)
// into a PaymentMethod and validates it.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	key := strings.ToUpper(strings.TrimSpace(s))
	if alias, ok := paymentMethodAliases[key]; ok {
		return alias, nil
	}
	m := PaymentMethod(key)
	if err := m.Validate(); err != nil {
		return "", err
	}
	return m, nil
}
