package middleware

import (
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/wms-platform/stockcount-service/pkg/errors"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

var customValidations = map[string]validator.Func{
	"count_stage":   validateCountStage,
	"count_round":   validateCountRound,
	"serial_number": validateSerialNumber,
	"location_id":   validateLocationID,
	"product_code":  validateProductCode,
}

// InitValidator registers the custom tags on both the standalone validator
// and gin's binding validator.
func InitValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		register(validate)

		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			register(v)
		}
	})

	return validate
}

func register(v *validator.Validate) {
	for tag, fn := range customValidations {
		_ = v.RegisterValidation(tag, fn)
	}
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
}

// GetValidator returns the singleton validator instance
func GetValidator() *validator.Validate {
	return InitValidator()
}

var (
	serialNumberRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9\-_./]{0,63}$`)
	locationRegex     = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9\-_.]{0,49}$`)
	productCodeRegex  = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9\-_.]{1,49}$`)
)

func validateCountStage(fl validator.FieldLevel) bool {
	stage := fl.Field().Int()
	return stage >= 1 && stage <= 4
}

func validateCountRound(fl validator.FieldLevel) bool {
	round := fl.Field().Int()
	return round >= 1 && round <= 3
}

func validateSerialNumber(fl validator.FieldLevel) bool {
	return serialNumberRegex.MatchString(fl.Field().String())
}

func validateLocationID(fl validator.FieldLevel) bool {
	return locationRegex.MatchString(fl.Field().String())
}

func validateProductCode(fl validator.FieldLevel) bool {
	return productCodeRegex.MatchString(fl.Field().String())
}

// ValidationErrorFormatter formats validation errors into a map
func ValidationErrorFormatter(err error) map[string]string {
	fields := make(map[string]string)

	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrors {
			fields[e.Field()] = formatValidationError(e)
		}
	}

	return fields
}

func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + e.Param()
	case "max":
		return "must be at most " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "lte":
		return "must be less than or equal to " + e.Param()
	case "oneof":
		return "must be one of: " + e.Param()
	case "count_stage":
		return "must be a count stage between 1 and 4"
	case "count_round":
		return "must be a counting round between 1 and 3"
	case "serial_number":
		return "must be a valid serial number"
	case "location_id":
		return "must be a valid location ID"
	case "product_code":
		return "must be a valid product code"
	default:
		return "is invalid"
	}
}

// BindAndValidate binds request body and validates it
func BindAndValidate(c *gin.Context, obj interface{}) *errors.AppError {
	if err := c.ShouldBindJSON(obj); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			return errors.ErrValidationWithFields("validation failed", ValidationErrorFormatter(validationErrors))
		}
		return errors.ErrBadRequest("invalid request body: " + err.Error())
	}
	return nil
}

// ValidateStruct validates a struct using the validator
func ValidateStruct(obj interface{}) *errors.AppError {
	if err := GetValidator().Struct(obj); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			return errors.ErrValidationWithFields("validation failed", ValidationErrorFormatter(validationErrors))
		}
		return errors.ErrBadRequest("validation failed: " + err.Error())
	}
	return nil
}
