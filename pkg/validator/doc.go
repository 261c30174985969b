// Package validator checks request input and reports every failing field at
// once as ValidationErrors.
//
// Structs are validated from `validate` tags through
// github.com/go-playground/validator/v10, with field names taken from the
// `json` tag and an extra "relpath" tag for redirect paths:
//
//	type checkoutBody struct {
//		PriceRef    string `json:"price_ref" validate:"required,max=128"`
//		SuccessPath string `json:"success_path" validate:"omitempty,max=512,relpath"`
//	}
//
//	if err := validator.Struct(body); err != nil {
//		return err
//	}
//
// Ad hoc checks compose Rule values with Apply:
//
//	err := validator.Apply(
//		validator.Range("limit", req.Limit, 1, 100),
//		validator.OneOf("status", req.Status, "paid", "refunded"),
//	)
package validator
