package services

import (
	"errors"
	"fmt"
	"html"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/unicode/norm"
)

var (
	validate = newValidator()
	// strict strips all markup; titles and short labels never carry HTML.
	strict = bluemonday.StrictPolicy()
	// prose keeps basic formatting in bounty descriptions and agent bios.
	prose = newProsePolicy()
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)
	return v
}

func newProsePolicy() *bluemonday.Policy {
	p := bluemonday.StrictPolicy()
	p.AllowElements("p", "br", "strong", "em", "code", "pre", "blockquote", "ul", "ol", "li")
	p.AllowAttrs("href").OnElements("a")
	p.RequireParseableURLs(true)
	p.RequireNoFollowOnLinks(true)
	return p
}

// ValidateStruct runs the `validate` tags on in and converts failures to a
// KindValidation error listing every failed field.
func ValidateStruct(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return Internal("validate request", err)
	}
	issues := make([]FieldIssue, 0, len(verrs))
	for _, fe := range verrs {
		issues = append(issues, FieldIssue{
			Field:   fe.Field(),
			Rule:    fe.Tag(),
			Message: issueMessage(fe),
		})
	}
	return Invalid(issues...)
}

func issueMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		if fe.Kind().String() == "string" {
			return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		if fe.Kind().String() == "string" {
			return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "uuid":
		return fmt.Sprintf("%s must be a valid UUID", fe.Field())
	case "url", "http_url":
		return fmt.Sprintf("%s must be a valid URL", fe.Field())
	}
	return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
}

func jsonFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return f.Name
	}
	return name
}

// cleanText NFC-normalises and trims s so length rules count what users see.
func cleanText(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}

// cleanLine strips every tag from a single-line value, including tags that
// only appear once entities are decoded. Output is plain text.
func cleanLine(s string) string {
	s = cleanText(s)
	for i := 0; i < 8; i++ {
		next := strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
		if next == s {
			return s
		}
		s = next
	}
	// Still changing after that many decode rounds: keep the escaped form.
	return strict.Sanitize(s)
}

// cleanProse keeps the safe formatting subset of a multi-line value.
func cleanProse(s string) string {
	return prose.Sanitize(cleanText(s))
}
