package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	reproerrors "github.com/fuzzkit/repro/pkg/errors"
)

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate

	jobNamePattern = regexp.MustCompile(`^[a-z0-9_]+$`)
)

func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()

		_ = v.RegisterValidation("job_name", func(fl validator.FieldLevel) bool {
			return jobNamePattern.MatchString(fl.Field().String())
		})

		validateInst = v
	})

	return validateInst
}

// validateJobType performs schema validation on a resolved job type.
func validateJobType(jt *JobType) error {
	if err := validatorInstance().Struct(jt); err != nil {
		return convertValidationError(jt, err)
	}
	return nil
}

func convertValidationError(jt *JobType, err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return reproerrors.NewValidationError(jt.Name, err.Error(), err)
	}

	first := fieldErrs[0]
	field := fmt.Sprintf("%s.%s.%s", jt.BuildType, jt.Name, strings.ToLower(first.Field()))
	message := fmt.Sprintf("failed %q validation (value %q)", first.Tag(), first.Value())
	return reproerrors.NewValidationError(field, message, err)
}
