package policy

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		externalSchemePolicy(),
		confidenceFloorPolicy(),
		methodAllowlistPolicy(),
	}
}

// externalSchemePolicy restricts external accesses to HTTP(S) targets.
func externalSchemePolicy() Policy {
	return Policy{
		Name:        "external-https-only",
		Description: "External calls and query endpoints must use http or https URLs",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"network", "security"},
		Rego: `package typesynth.policies.scheme

import rego.v1

deny contains violation if {
	input.kind == "call"
	not regex.match("^https?://", input.url)
	violation := {
		"message": sprintf("call URL %q must use http or https", [input.url]),
		"severity": "error",
	}
}

deny contains violation if {
	input.kind == "query"
	not regex.match("^https?://", input.endpoint)
	violation := {
		"message": sprintf("query endpoint %q must use http or https", [input.endpoint]),
		"severity": "error",
	}
}`,
	}
}

// confidenceFloorPolicy warns when a low-confidence function reaches out.
func confidenceFloorPolicy() Policy {
	return Policy{
		Name:        "confidence-floor",
		Description: "Warns when a function with confidence below 0.5 accesses an external source",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"quality"},
		Rego: `package typesynth.policies.confidence

import rego.v1

floor := 0.5

deny contains violation if {
	input.function.confidence < floor
	violation := {
		"message": sprintf("function %s has confidence %v below %v", [input.function.id, input.function.confidence, floor]),
		"severity": "warning",
	}
}`,
	}
}

// methodAllowlistPolicy limits calls to GET and POST.
func methodAllowlistPolicy() Policy {
	return Policy{
		Name:        "method-allowlist",
		Description: "Calls may only use the GET and POST methods",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"network"},
		Rego: `package typesynth.policies.methods

import rego.v1

allowed_methods := {"GET", "POST"}

deny contains violation if {
	input.kind == "call"
	not upper(input.method) in allowed_methods
	violation := {
		"message": sprintf("method %s is not allowed", [input.method]),
		"severity": "error",
	}
}`,
	}
}
