package tasks

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// В сообщениях об ошибках показываем имена полей из JSON-контракта.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// validateFields проверяет частичную запись.
//
// requireTitle=true для создания: заголовок обязателен.
// При обновлении переданный заголовок тоже не может быть пустым.
func validateFields(f Fields, requireTitle bool) error {
	if err := validate.Struct(f); err != nil {
		return invalid(err)
	}

	if f.Title == nil {
		if requireTitle {
			return fmt.Errorf("%w: title is required", ErrInvalidTask)
		}
		return nil
	}
	if err := validate.Var(strings.TrimSpace(*f.Title), "required"); err != nil {
		return fmt.Errorf("%w: title is required", ErrInvalidTask)
	}
	return nil
}

// invalid превращает ошибки валидатора в ErrInvalidTask с читаемым текстом.
func invalid(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidTask, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Fields.")
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: %s", field, fe.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidTask, strings.Join(msgs, "; "))
}
