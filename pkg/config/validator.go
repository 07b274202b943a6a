package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator 配置验证器
type Validator struct {
	validate *validator.Validate
}

// NewValidator 创建验证器
func NewValidator() *Validator {
	return &Validator{
		validate: validator.New(),
	}
}

// Validate 验证配置结构体
// 支持标准的 validator tag，如：
// - required: 必填字段
// - min=1,max=100: 数值范围
// - oneof=debug info warn error: 枚举值
func (v *Validator) Validate(cfg any) error {
	if cfg == nil {
		return ErrNilConfig
	}

	if err := v.validate.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrValidationFailed, formatValidationErrors(err))
	}

	return nil
}

// formatValidationErrors 格式化验证错误信息
func formatValidationErrors(err error) string {
	var sb strings.Builder

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}

	for i, fieldErr := range validationErrors {
		if i > 0 {
			sb.WriteString("; ")
		}

		field := fieldErr.Field()
		tag := fieldErr.Tag()
		param := fieldErr.Param()

		switch tag {
		case "required":
			sb.WriteString(fmt.Sprintf("field '%s' is required", field))
		case "min":
			sb.WriteString(fmt.Sprintf("field '%s' must be at least %s", field, param))
		case "max":
			sb.WriteString(fmt.Sprintf("field '%s' must be at most %s", field, param))
		case "oneof":
			sb.WriteString(fmt.Sprintf("field '%s' must be one of [%s]", field, param))
		default:
			sb.WriteString(fmt.Sprintf("field '%s' failed validation '%s'", field, tag))
		}
	}

	return sb.String()
}
