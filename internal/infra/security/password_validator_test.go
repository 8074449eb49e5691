package security

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func policyCode(t *testing.T, err error) string {
	t.Helper()
	var policyErr *PasswordPolicyError
	require.ErrorAs(t, err, &policyErr)
	return policyErr.Code
}

func TestMinLengthRule(t *testing.T) {
	rule := MinLengthRule(12)

	assert.NoError(t, rule.Validate("twelve chars"))
	assert.NoError(t, rule.Validate("двенадцать!!"), "length counts runes, not bytes")

	err := rule.Validate("short")
	require.Error(t, err)
	assert.Equal(t, "min_length", policyCode(t, err))
}

func TestCharacterClassesRule(t *testing.T) {
	rule := CharacterClassesRule(3)

	assert.NoError(t, rule.Validate("Abcdef123"))
	assert.NoError(t, rule.Validate("abcdef12!"))

	err := rule.Validate("abcdef123")
	require.Error(t, err)
	assert.Equal(t, "character_classes", policyCode(t, err))

	assert.NoError(t, CharacterClassesRule(0).Validate("aaaa"))
}

func TestDifferentFromRule(t *testing.T) {
	rule := DifferentFromRule("old-password")

	assert.NoError(t, rule.Validate("new-password"))

	err := rule.Validate("old-password")
	require.Error(t, err)
	assert.Equal(t, "reused", policyCode(t, err))
}

func TestStrengthRule(t *testing.T) {
	rule := StrengthRule(3)

	assert.NoError(t, rule.Validate("mX2#kQ9vLpR7wz"))

	err := rule.Validate("password123")
	require.Error(t, err)
	assert.Equal(t, "weak_password", policyCode(t, err))
}

func TestStrengthRule_PenalizesUserInputs(t *testing.T) {
	rule := StrengthRule(3, "jane.doe@example.com", "jane")

	err := rule.Validate("jane.doe@example.com")
	require.Error(t, err)
	assert.Equal(t, "weak_password", policyCode(t, err))
}

func TestPasswordValidator_FirstViolationWins(t *testing.T) {
	validator := NewPasswordValidator(
		MinLengthRule(12),
		CharacterClassesRule(3),
		DifferentFromRule("old"),
	)

	assert.NoError(t, validator.Validate("Fresh&Valid99"))

	err := validator.Validate("a1!")
	assert.Equal(t, "min_length", policyCode(t, err))

	err = validator.Validate("alllowercase")
	assert.Equal(t, "character_classes", policyCode(t, err))
}

func TestPasswordValidator_NilReceiver(t *testing.T) {
	var validator *PasswordValidator
	err := validator.Validate("anything")
	require.Error(t, err)

	var policyErr *PasswordPolicyError
	assert.False(t, errors.As(err, &policyErr), "misconfiguration is not a policy violation")
}
