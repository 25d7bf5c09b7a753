package payment

import (
	"errors"
	"sync"

	validator "github.com/go-playground/validator/v10"
)

// Telecom is a canonical (uppercase) card issuer code.
type Telecom string

const (
	TelecomMobi    Telecom = "MOBI"
	TelecomViettel Telecom = "VIETTEL"
	TelecomVina    Telecom = "VINA"
)

// TelecomOption is a selectable issuer for the checkout form.
type TelecomOption struct {
	Code  Telecom `json:"code"`
	Label string  `json:"label"`
}

// TelecomProviders lists the supported issuers in display order.
func TelecomProviders() []TelecomOption {
	return []TelecomOption{
		{Code: TelecomMobi, Label: "Mobifone"},
		{Code: TelecomViettel, Label: "Viettel"},
		{Code: TelecomVina, Label: "Vinaphone"},
	}
}

var (
	ErrInvalidTelecom = errors.New("please select a valid telecom provider")
	ErrInvalidCode    = errors.New("please enter a valid card code")
	ErrInvalidSerial  = errors.New("please enter a valid card serial")
)

// CardInput is the raw form input for a card redemption.
type CardInput struct {
	Telecom string `validate:"required,oneof=MOBI VIETTEL VINA"`
	Code    string `validate:"required,number"`
	Serial  string `validate:"required,number"`
}

// ValidatedInput is card input that passed validation.
type ValidatedInput struct {
	Telecom Telecom
	Code    string
	Serial  string
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func inputValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateUserInput checks telecom, code and serial in that order. Code and
// serial must be non-empty ASCII digit strings; whitespace is rejected.
func ValidateUserInput(telecom, code, serial string) (ValidatedInput, error) {
	in := CardInput{Telecom: telecom, Code: code, Serial: serial}
	if err := inputValidator().Struct(in); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
			return ValidatedInput{}, err
		}
		switch fieldErrs[0].StructField() {
		case "Telecom":
			return ValidatedInput{}, ErrInvalidTelecom
		case "Code":
			return ValidatedInput{}, ErrInvalidCode
		default:
			return ValidatedInput{}, ErrInvalidSerial
		}
	}
	return ValidatedInput{Telecom: Telecom(telecom), Code: code, Serial: serial}, nil
}
