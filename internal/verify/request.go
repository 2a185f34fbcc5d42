package verify

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dwalsh-mfg/barcode-verifier/internal/common"
)

// StartJobRequest carries the job-start parameters. JobID is optional; a
// blank one gets a generated JOB_YYYYMMDD_HHMMSS identifier.
type StartJobRequest struct {
	JobID            string `json:"job_id" validate:"omitempty,max=100,labelsafe"`
	ExpectedBarcode  string `json:"expected_barcode" validate:"required,min=1,max=200,labelsafe"`
	PiecesPerShipper int    `json:"pieces_per_shipper" validate:"min=1,max=10000"`
	TargetQuantity   int    `json:"target_quantity" validate:"min=0,max=1000000"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Barcode and job-id fields must not smuggle markup or control
	// characters into templates, logs or the database.
	_ = v.RegisterValidation("labelsafe", func(fl validator.FieldLevel) bool {
		return !containsDisallowed(fl.Field().String())
	})
	return v
}

const disallowedChars = `<>"'&;\`

func containsDisallowed(s string) bool {
	if strings.ContainsAny(s, disallowedChars) {
		return true
	}
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			return true
		}
	}
	return false
}

func (r *StartJobRequest) normalize() {
	r.JobID = strings.TrimSpace(r.JobID)
	r.ExpectedBarcode = strings.TrimSpace(r.ExpectedBarcode)
	if r.PiecesPerShipper == 0 {
		r.PiecesPerShipper = 1
	}
}

func (r *StartJobRequest) validate() error {
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if ok := errors.As(err, &verrs); ok && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed on %s", common.ErrValidation, fieldName(fe.Field()), fe.Tag())
		}
		return fmt.Errorf("%w: %s", common.ErrValidation, err.Error())
	}
	return nil
}

func fieldName(f string) string {
	switch f {
	case "JobID":
		return "job_id"
	case "ExpectedBarcode":
		return "expected_barcode"
	case "PiecesPerShipper":
		return "pieces_per_shipper"
	case "TargetQuantity":
		return "target_quantity"
	}
	return f
}
