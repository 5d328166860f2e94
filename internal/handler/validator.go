package handler

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
)

// Trans 全局翻译器，HandleParamError 用它把校验错误翻译成可读文本
var Trans ut.Translator

// InitTrans 给 gin 的校验引擎注册翻译器，locale 取 "zh" 或 "en"
func InitTrans(locale string) error {
	// gin 未初始化 Validator 时先补上
	if binding.Validator == nil {
		v := validator.New()
		v.SetTagName("binding")
		binding.Validator = &defaultValidator{validator: v}
	}

	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
	}

	// 报错字段名使用 json tag，和客户端看到的字段一致
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			// query 参数用 form tag
			name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		}
		return name
	})

	enT := en.New()
	uni := ut.New(enT, zh.New(), enT)
	trans, ok := uni.GetTranslator(locale)
	if !ok {
		return fmt.Errorf("uni.GetTranslator(%s) failed", locale)
	}
	Trans = trans

	if locale == "zh" {
		return zh_translations.RegisterDefaultTranslations(v, Trans)
	}
	return en_translations.RegisterDefaultTranslations(v, Trans)
}

// RemoveTopStruct 去掉 "RegisterRequest.nick" 这类键里的结构体前缀
func RemoveTopStruct(fields map[string]string) map[string]string {
	res := make(map[string]string, len(fields))
	for field, err := range fields {
		res[field[strings.Index(field, ".")+1:]] = err
	}
	return res
}

// defaultValidator 实现 binding.StructValidator
type defaultValidator struct {
	validator *validator.Validate
}

func (v *defaultValidator) ValidateStruct(obj any) error {
	return v.validator.Struct(obj)
}

func (v *defaultValidator) Engine() any {
	return v.validator
}
