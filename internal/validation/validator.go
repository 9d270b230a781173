package validation

import (
	"reflect"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// New returns a validator that understands decimal amounts and checks that
// money never carries more than two decimal places.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// decimals validate as floats so gt/lte tags work on amounts
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	v.RegisterStructValidation(amountStructValidation, DepositRequest{}, WithdrawRequest{})
	return v
}

func amountStructValidation(sl validatorv10.StructLevel) {
	var amount decimal.Decimal
	switch req := sl.Current().Interface().(type) {
	case DepositRequest:
		amount = req.Amount
	case WithdrawRequest:
		amount = req.Amount
	default:
		return
	}
	if !amount.Equal(amount.Round(2)) {
		sl.ReportError(amount, "amount", "Amount", "cents", "")
	}
}
