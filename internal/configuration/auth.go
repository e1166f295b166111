package configuration

type AuthRule struct {
	Path        string
	Method      string // empty means all methods
	RequireAuth bool   // true means require auth, false means exclude from auth
}

var AuthRulePrefixMatchPath = []AuthRule{
	{Path: "/api/v1/auth", Method: "*", RequireAuth: false},
	{Path: "/health", Method: "*", RequireAuth: false},
	{Path: "/api/v1/two-factor", Method: "*", RequireAuth: true},
	{Path: "/api/v1/users", Method: "*", RequireAuth: true},
	{Path: "/api/v1/tickets", Method: "*", RequireAuth: true},
	{Path: "/api/v1/admin", Method: "*", RequireAuth: true},
}

var AuthRuleExactMatchPath = map[string][]AuthRule{
	"/api/v1/auth/logout": {
		{Path: "/api/v1/auth/logout", Method: "POST", RequireAuth: true},
	},
}

type TwoFactorExemptRule struct {
	PathPrefix string
	PathSuffix string
	Method     string
}

// TwoFactorExemptRules lists endpoints that an unverified session may always
// reach. The verification endpoints themselves must be exempt or no user
// could ever complete a challenge.
var TwoFactorExemptRules = []TwoFactorExemptRule{
	{PathPrefix: "/api/v1/two-factor/setup", PathSuffix: "", Method: "*"},
	{PathPrefix: "/api/v1/two-factor/verify", PathSuffix: "", Method: "POST"},
	{PathPrefix: "/api/v1/two-factor/status", PathSuffix: "", Method: "GET"},
	{PathPrefix: "/api/v1/two-factor/debug", PathSuffix: "", Method: "GET"},

	// Logout
	{PathPrefix: "/api/v1/auth/logout", PathSuffix: "", Method: "*"},
}
