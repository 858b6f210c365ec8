// Package policy guards external accesses made during execution with Open
// Policy Agent (OPA) Rego policies.
//
// Before a query or call step reaches out, the executor asks its Guard. The
// policy Engine implements that Guard: it evaluates every enabled policy's
// deny set against an Input describing the function, its implementation
// descriptor and the resolved target. Violations of severity error or
// critical deny the access, and the step falls back to its mock result.
// Lower severities are logged as warnings.
//
// # Built-in Policies
//
//   - external-https-only: call URLs and query endpoints must be http(s)
//   - confidence-floor: warns when a function below confidence 0.5 reaches out
//   - method-allowlist: calls may only use GET and POST
//
// # Custom Policies
//
// A .rego file is a policy named after the file. Its leading comment block
// is the description and a "# severity: warning" comment sets the severity:
//
//	# Only the registry host may be called.
//	# severity: error
//	package typesynth.policies.hosts
//
//	import rego.v1
//
//	deny contains msg if {
//		input.kind == "call"
//		not startswith(input.url, "https://registry.example.org/")
//		msg := sprintf("host not allowed: %s", [input.url])
//	}
//
// A .json, .yaml or .yml file holds a full Policy definition (name,
// severity, enabled, tags) with the Rego source in its rego field.
//
// WatchEngine loads a policy directory into an Engine and reloads it when
// files change.
package policy
