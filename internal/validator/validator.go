package validator

import (
	"errors"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	govalidator "github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	// trans is the singleton English translator for validation errors.
	trans ut.Translator

	// standalone validates structs outside of gin (client-side input checks).
	standalone     *govalidator.Validate
	standaloneOnce sync.Once
	translatorOnce sync.Once
)

// Setup registers the validator with English translations on Gin's binding engine.
// Call once during dev server startup.
func Setup() {
	if v, ok := binding.Validator.Engine().(*govalidator.Validate); ok {
		configure(v)
	}
}

func configure(v *govalidator.Validate) {
	// Use JSON tag name for field names in error messages.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	translatorOnce.Do(func() {
		enLocale := en.New()
		uni := ut.New(enLocale, enLocale)
		trans, _ = uni.GetTranslator("en")
	})
	_ = en_translations.RegisterDefaultTranslations(v, trans)
}

// Struct validates dst against its `binding` tags without going through gin.
// Returns nil on success or a translated field error map.
func Struct(dst interface{}) map[string]string {
	standaloneOnce.Do(func() {
		standalone = govalidator.New(govalidator.WithRequiredStructEnabled())
		standalone.SetTagName("binding")
		configure(standalone)
	})
	if err := standalone.Struct(dst); err != nil {
		return TranslateErrors(err)
	}
	return nil
}

// TranslateErrors takes a binding/validation error and returns a map of
// field name → human-readable error message. If the error is not a
// validation error, it returns a single-key map with "detail".
func TranslateErrors(err error) map[string]string {
	fields := make(map[string]string)

	var ve govalidator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			if trans != nil {
				fields[fe.Field()] = fe.Translate(trans)
			} else {
				fields[fe.Field()] = fe.Error()
			}
		}
		return fields
	}

	// Not a validation error (e.g., JSON syntax error).
	fields["detail"] = err.Error()
	return fields
}

// Summary flattens a field error map into one sorted-by-field sentence.
func Summary(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, fields[k])
	}
	return strings.Join(msgs, "; ")
}

// Bind binds and validates the request body into dst.
// Returns nil on success or a translated field error map on failure.
func Bind(c *gin.Context, dst interface{}) map[string]string {
	if err := c.ShouldBindJSON(dst); err != nil {
		return TranslateErrors(err)
	}
	return nil
}
