package application

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/pt_BR"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	pt_translations "github.com/go-playground/validator/v10/translations/pt_BR"

	"github.com/example/calendario-escolar/internal/domain"
)

const (
	instrumentoTag = "instrumento"
	turmaTag       = "turma"
)

var (
	validatorOnce sync.Once
	validate      *validator.Validate
	translator    ut.Translator
)

// inputValidator returns the shared validator with Portuguese messages.
func inputValidator() (*validator.Validate, ut.Translator) {
	validatorOnce.Do(func() {
		validate = validator.New()

		locale := pt_BR.New()
		uni := ut.New(locale, locale)
		translator, _ = uni.GetTranslator(locale.Locale())
		_ = pt_translations.RegisterDefaultTranslations(validate, translator)

		// Field errors are keyed by the JSON names the API exposes.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		registerRule(instrumentoTag, "{0} deve ser um instrumento de avaliação válido", domain.ValidInstrumento)
		registerRule(turmaTag, "{0} deve ser um código de turma válido, por exemplo 6ºA", domain.ValidTurma)
	})
	return validate, translator
}

// registerRule adds a string rule with its Portuguese message. Must run
// inside validatorOnce.
func registerRule(tag, message string, valid func(string) bool) {
	_ = validate.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		return valid(fl.Field().String())
	})
	_ = validate.RegisterTranslation(tag, translator,
		func(t ut.Translator) error {
			return t.Add(tag, message, true)
		},
		func(t ut.Translator, fe validator.FieldError) string {
			msg, _ := t.T(tag, fe.Field())
			return msg
		},
	)
}

// validateStruct runs the struct tags of input and converts failures into a
// ValidationError keyed by dotted JSON path, e.g. "av1.conteudo".
func validateStruct(input any) *ValidationError {
	v, trans := inputValidator()
	vErr := &ValidationError{}

	err := v.Struct(input)
	if err == nil {
		return vErr
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		vErr.add("_", err.Error())
		return vErr
	}
	for _, fe := range fieldErrs {
		vErr.add(fieldPath(fe.Namespace()), fe.Translate(trans))
	}
	return vErr
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}
