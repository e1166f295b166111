package configuration

// SetTwoFactorExemptRulesForTesting allows tests to modify TwoFactorExemptRules.
// This function should only be used in test code.
func SetTwoFactorExemptRulesForTesting(rules []TwoFactorExemptRule) {
	TwoFactorExemptRules = rules
}
