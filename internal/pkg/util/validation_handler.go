package util

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// ValidateDTO 校验结构体 validate 标签, 失败时返回 validator.ValidationErrors
func ValidateDTO(dto any) error {
	return validate.Struct(dto)
}

// ValidationMessage 把第一个校验错误转成可读文案
func ValidationMessage(err error) string {
	var vErrs validator.ValidationErrors
	if errors.As(err, &vErrs) && len(vErrs) > 0 {
		first := vErrs[0]
		return fmt.Sprintf("字段 [%s] 校验失败，规则 [%s]", first.Field(), first.Tag())
	}
	return err.Error()
}
