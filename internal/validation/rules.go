// Package validation provides custom validation rules for the application.
package validation

import (
	"regexp"
	"strings"

	validation "github.com/jellydator/validation"

	apperrors "github.com/coregate/gateway/internal/errors"
)

var (
	// kmsArnRegex matches the canonical KMS key ARN forms:
	// arn:aws:kms:<region>:<account>:key/<uuid> or ...:alias/<name>.
	kmsArnRegex = regexp.MustCompile(`^arn:aws:kms:[a-z0-9-]+:\d{12}:(key|alias)/\S+$`)

	// dekAliasRegex constrains aliases to identifier-safe characters so
	// they survive YAML manifest keys and URL path segments unquoted.
	dekAliasRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

	// awsRegionRegex matches region identifiers such as eu-west-2.
	awsRegionRegex = regexp.MustCompile(`^[a-z]{2}(-[a-z]+)+-\d$`)
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// KmsKeyARN validates the canonical arn:aws:kms:... key or alias form.
var KmsKeyARN = validation.NewStringRuleWithError(
	func(s string) bool {
		return kmsArnRegex.MatchString(s)
	},
	validation.NewError("validation_kms_arn", "must be a canonical KMS key or alias ARN"),
)

// AwsRegion validates an AWS region identifier such as eu-west-2.
var AwsRegion = validation.NewStringRuleWithError(
	func(s string) bool {
		return awsRegionRegex.MatchString(s)
	},
	validation.NewError("validation_aws_region", "must be a valid region identifier"),
)

// DekAlias validates a human-readable DEK alias.
var DekAlias = validation.NewStringRuleWithError(
	func(s string) bool {
		return dekAliasRegex.MatchString(s)
	},
	validation.NewError(
		"validation_dek_alias",
		"must start with a lowercase letter or digit and contain only lowercase letters, digits, dots, underscores, and dashes",
	),
)

// AbsolutePath validates that a string is an absolute filesystem path.
var AbsolutePath = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.HasPrefix(s, "/")
	},
	validation.NewError("validation_absolute_path", "must be an absolute path"),
)

// NoWhitespace validates that string doesn't contain leading/trailing whitespace
var NoWhitespace = validation.NewStringRuleWithError(
	func(s string) bool {
		return s == strings.TrimSpace(s)
	},
	validation.NewError("validation_no_whitespace", "must not contain leading or trailing whitespace"),
)

// NotBlank validates that a string is not empty after trimming whitespace
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)
