package admin

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/tuition/core"
)

var (
	// password policy
	pwdMinLen     = 8
	pwdMinLenTag  = "pwdminlen"
	pwdMinLenText = fmt.Sprintf("password must contain at least %d characters", pwdMinLen)

	pwdNoSpaceTag  = "pwdnospace"
	pwdNoSpaceText = "password must not contain whitespace"

	pwdNotAllNumTag  = "pwdnotallnum"
	pwdNotAllNumText = "password cannot be entirely numeric"

	pwdComplexityTag  = "pwdcplx"
	pwdComplexityText = "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character"
	specialRegex      = regexp.MustCompile("[^A-Za-z0-9]")

	pwdMaxSim      = .7
	pwdAttrSimTag  = "pwdtoosim"
	pwdAttrSimText = "password cannot be similar to the administrator name or email"
)

func init() {
	core.Validate.RegisterStructValidation(adminStructValidation, NewAdministrator{}, ResetPassword{}, ConfirmPasswordReset{})
	for tag, text := range map[string]string{
		pwdMinLenTag:     pwdMinLenText,
		pwdNoSpaceTag:    pwdNoSpaceText,
		pwdNotAllNumTag:  pwdNotAllNumText,
		pwdComplexityTag: pwdComplexityText,
		pwdAttrSimTag:    pwdAttrSimText,
	} {
		core.RegisterCustomTranslation(core.Validate, core.Translator, tag, text)
	}
}

func adminStructValidation(sl validator.StructLevel) {
	switch adm := sl.Current().Interface().(type) {
	case NewAdministrator:
		validatePassword(adm.Password, sl, adm.Name, adm.Email)
	case ResetPassword:
		validatePassword(adm.Password, sl, adm.Email)
	case ConfirmPasswordReset:
		validatePassword(adm.Password, sl)
	}
}

// validatePassword applies the password policy:
// - minLen: 8
// - no whitespace
// - no all numeric
// - complexity: 1 upper, 1 lower, 1 digit, 1 special
// - no similarity with the administrator attributes
func validatePassword(pwd string, sl validator.StructLevel, attrs ...string) {
	if pwd == "" {
		return // reported by `required`
	}
	if tag := passwordPolicyViolation(pwd, attrs...); tag != "" {
		sl.ReportError(pwd, "password", "Password", tag, "")
	}
}

// passwordPolicyViolation returns the tag of the first rule pwd breaks, if any.
func passwordPolicyViolation(pwd string, attrs ...string) string {
	var (
		digitCount         int
		hasUpper, hasLower bool
	)

	pwdLen := len([]rune(pwd))
	if pwdLen < pwdMinLen {
		return pwdMinLenTag
	}
	for _, char := range pwd {
		if unicode.IsSpace(char) {
			return pwdNoSpaceTag
		}
		if unicode.IsDigit(char) {
			digitCount++
		}
		hasUpper = hasUpper || unicode.IsUpper(char)
		hasLower = hasLower || unicode.IsLower(char)
	}

	if digitCount == pwdLen {
		return pwdNotAllNumTag
	}
	if !(hasUpper && hasLower && digitCount > 0 && specialRegex.MatchString(pwd)) {
		return pwdComplexityTag
	}

	lpwd := strings.ToLower(pwd)
	for _, attr := range attrs {
		attr = strings.ToLower(attr)
		if attr == "" {
			continue
		}
		ratio := difflib.NewMatcher(strings.Split(lpwd, ""), strings.Split(attr, "")).QuickRatio()
		if ratio >= pwdMaxSim {
			return pwdAttrSimTag
		}
	}
	return ""
}

// CheckPasswordPolicy reports a *core.ValidationError on the `password` field when pwd breaks the policy.
func CheckPasswordPolicy(pwd string, attrs ...string) error {
	if tag := passwordPolicyViolation(pwd, attrs...); tag != "" {
		msg, _ := core.Translator.T(tag)
		return core.NewValidationError(nil, core.FieldError{Field: "password", Error: msg})
	}
	return nil
}
