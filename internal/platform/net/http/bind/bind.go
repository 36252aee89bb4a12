// Package bind decodes and validates JSON request bodies
package bind

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	perr "taplist/internal/platform/errors"
	"taplist/internal/platform/logger"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// defaultMaxBytes caps request bodies; taplist payloads are small
const defaultMaxBytes = 1 << 20

var (
	setupOnce sync.Once
	validate  *validator.Validate
	translate ut.Translator
	jsonMore  = func(dec *json.Decoder) bool { return dec.More() } // seam
)

// Validator returns the process-wide validator, built on first use with
// english translations and json field names in messages
func Validator() *validator.Validate {
	setup()
	return validate
}

func setup() {
	setupOnce.Do(func() {
		locale := en.New()
		translate, _ = ut.New(locale, locale).GetTranslator("en")

		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(jsonFieldName)
		_ = en_translations.RegisterDefaultTranslations(v, translate)
		registerRangeMessages(v, translate)
		validate = v
	})
}

// jsonFieldName makes validation messages name the json field, not the Go one
func jsonFieldName(fld reflect.StructField) string {
	tag := fld.Tag.Get("json")
	if tag == "" || tag == "-" {
		return fld.Name
	}
	if idx := strings.Index(tag, ","); idx >= 0 {
		tag = tag[:idx]
	}
	return tag
}

// JSONOptions tunes ParseJSON away from the defaults: a 1MB body cap,
// unknown keys rejected, and empty bodies rejected on write methods
type JSONOptions struct {
	MaxBytes        int64
	DisallowUnknown bool
	AllowEmptyBody  bool
}

// ParseJSON decodes the request body into T, validates it, and maps every
// failure mode to a project error the envelope writer understands
func ParseJSON[T any](r *http.Request, opts ...JSONOptions) (T, error) {
	var zero T
	o := JSONOptions{MaxBytes: defaultMaxBytes, DisallowUnknown: true}
	if len(opts) > 0 {
		o = opts[0]
	}
	defer func() {
		if err := r.Body.Close(); err != nil {
			logger.Get().Error().Err(err).Msg("failed to close request body")
		}
	}()

	reader := io.Reader(r.Body)
	if !o.AllowEmptyBody {
		body, present := peekBody(r.Body)
		if !present {
			// read-style methods legitimately send nothing
			switch r.Method {
			case http.MethodGet, http.MethodDelete, http.MethodHead, http.MethodOptions:
				return zero, nil
			}
			return zero, perr.JSONErrf("empty body")
		}
		reader = body
	}
	if o.MaxBytes > 0 {
		reader = io.LimitReader(reader, o.MaxBytes)
	}

	dec := json.NewDecoder(reader)
	if o.DisallowUnknown {
		dec.DisallowUnknownFields()
	}

	var dst T
	if err := dec.Decode(&dst); err != nil {
		if o.AllowEmptyBody && errors.Is(err, io.EOF) {
			return dst, nil
		}
		return zero, perr.JSONErrf("invalid JSON: %v", err)
	}
	if jsonMore(dec) {
		return zero, perr.JSONErrf("unexpected trailing data")
	}

	if err := Validator().Struct(dst); err != nil {
		var inv *validator.InvalidValidationError
		if errors.As(err, &inv) {
			logger.Get().Error().Err(inv).Msg("validator internal error")
			return zero, perr.JSONErrf("validation error")
		}
		// the envelope names the json field so clients can point at it
		field, msg := ValidationFieldAndMessage(err)
		return zero, perr.WithField(perr.Newf(perr.ErrorCodeValidation, "%s", msg), field)
	}

	return dst, nil
}

// peekBody reads a single byte to learn whether a body is present at all,
// then splices it back so the decoder sees the full stream
func peekBody(body io.Reader) (io.Reader, bool) {
	var first [1]byte
	n, _ := body.Read(first[:])
	if n == 0 {
		return nil, false
	}
	return io.MultiReader(bytes.NewReader(first[:n]), body), true
}

// ValidationFieldAndMessage pulls the first failing field and its translated
// message out of a validator error
func ValidationFieldAndMessage(err error) (field, message string) {
	switch e := err.(type) {
	case nil:
		return "", ""
	case *validator.InvalidValidationError:
		return "", e.Error()
	case validator.ValidationErrors:
		if len(e) > 0 {
			setup()
			return e[0].Field(), e[0].Translate(translate)
		}
	}
	return "", err.Error()
}

// registerRangeMessages swaps the stock min and max messages for short ones
func registerRangeMessages(v *validator.Validate, trans ut.Translator) {
	for tag, text := range map[string]string{
		"min": "{0} must be at least {1}",
		"max": "{0} must be at most {1}",
	} {
		_ = v.RegisterTranslation(tag, trans,
			func(t ut.Translator) error { return t.Add(tag, text, true) },
			func(t ut.Translator, fe validator.FieldError) string {
				msg, _ := t.T(tag, fe.Field(), fe.Param())
				return msg
			},
		)
	}
}
