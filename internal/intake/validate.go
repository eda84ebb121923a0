package intake

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/brickdatalab/clear-scrub-sub001/internal/fault"
	"github.com/brickdatalab/clear-scrub-sub001/internal/normalize"
)

const dateLayout = "2006-01-02"

// validate is shared across requests; validator.Validate is concurrency-safe.
var validate = newValidator()

// newValidator builds a validator that reports field names from json tags,
// so validation errors name the field the caller actually sent.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// structErr converts the first validator failure into a fault.ValidationError
// with a dotted payload path, e.g. "owner_1.last_name".
func structErr(err error) error {
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return fault.NewValidation("payload", err.Error())
	}
	fe := verrs[0]
	// Namespace is "StatementPayload.company.name"; drop the type segment.
	path := fe.Namespace()
	if i := strings.Index(path, "."); i >= 0 {
		path = path[i+1:]
	}
	return fault.NewValidation(path, fmt.Sprintf("failed %q constraint", fe.Tag()))
}

// validateStatement checks the payload and parses its dates. No writes have
// happened when this fails.
func validateStatement(p *StatementPayload) (period, error) {
	if err := structErr(validate.Struct(p)); err != nil {
		return period{}, err
	}

	if p.Company.TaxID == "" && normalize.CompanyName(p.Company.Name) == "" {
		return period{}, fault.NewValidation("company.name", "company name or tax id is required")
	}

	start, err := time.Parse(dateLayout, p.Summary.PeriodStart)
	if err != nil {
		return period{}, fault.NewValidation("summary.period_start", "expected date in YYYY-MM-DD format")
	}
	end, err := time.Parse(dateLayout, p.Summary.PeriodEnd)
	if err != nil {
		return period{}, fault.NewValidation("summary.period_end", "expected date in YYYY-MM-DD format")
	}
	if end.Before(start) {
		return period{}, fault.NewValidation("summary.period_end", "period end precedes period start")
	}

	for i, item := range p.Transactions {
		if _, err := time.Parse(dateLayout, item.Date); err != nil {
			return period{}, fault.NewValidation(
				fmt.Sprintf("transactions[%d].date", i), "expected date in YYYY-MM-DD format")
		}
	}

	return period{start: start, end: end}, nil
}

// validateApplication checks the application payload.
func validateApplication(p *ApplicationPayload) error {
	if err := structErr(validate.Struct(p)); err != nil {
		return err
	}

	if normalize.CompanyName(p.Company.Name) == "" {
		return fault.NewValidation("company.name", "company name is required")
	}

	return nil
}
