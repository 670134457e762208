package booking

import (
	"errors"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	nonDigits    = regexp.MustCompile(`\D`)
	tenDigits    = regexp.MustCompile(`^\d{10}$`)
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// FieldErrors maps a form field to a user-facing message.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+fe[k])
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

type doctorStep struct {
	DepartmentID int64 `form:"departmentId" validate:"required"`
	DoctorID     int64 `form:"doctorId" validate:"required"`
}

type timeStep struct {
	Date     string `form:"date" validate:"required"`
	TimeSlot string `form:"timeSlot" validate:"required"`
}

type contactStep struct {
	PatientName string `form:"patientName" validate:"required"`
	Phone       string `form:"phone" validate:"required,phone10"`
	Email       string `form:"email" validate:"required,contactemail"`
}

var messages = map[string]map[string]string{
	"departmentId": {"required": "Please select a department"},
	"doctorId":     {"required": "Please select a doctor"},
	"date":         {"required": "Please select a date"},
	"timeSlot":     {"required": "Please select a time slot"},
	"patientName":  {"required": "Name is required"},
	"phone":        {"required": "Phone is required", "phone10": "Invalid phone number"},
	"email":        {"required": "Email is required", "contactemail": "Invalid email"},
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("form")
	})
	_ = v.RegisterValidation("phone10", func(fl validator.FieldLevel) bool {
		return ValidPhone(fl.Field().String())
	})
	_ = v.RegisterValidation("contactemail", func(fl validator.FieldLevel) bool {
		return ValidEmail(fl.Field().String())
	})
	return v
}

// ValidPhone accepts any formatting as long as exactly ten digits remain.
func ValidPhone(s string) bool {
	return tenDigits.MatchString(nonDigits.ReplaceAllString(s, ""))
}

func ValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// ValidateContact checks the contact step fields.
func ValidateContact(name, phone, email string) FieldErrors {
	return check(contactStep{
		PatientName: strings.TrimSpace(name),
		Phone:       strings.TrimSpace(phone),
		Email:       strings.TrimSpace(email),
	})
}

func check(step any) FieldErrors {
	err := validate.Struct(step)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return FieldErrors{"form": err.Error()}
	}

	out := FieldErrors{}
	for _, fe := range verrs {
		field := fe.Field()
		if _, seen := out[field]; seen {
			continue
		}
		msg, ok := messages[field][fe.Tag()]
		if !ok {
			msg = "Invalid value"
		}
		out[field] = msg
	}
	return out
}
