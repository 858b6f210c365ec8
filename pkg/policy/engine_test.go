package policy

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/openfroyo/typesynth/pkg/catalog"
	"github.com/openfroyo/typesynth/pkg/engine"
	"github.com/openfroyo/typesynth/pkg/executor"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	eng, err := NewEngine(zerolog.New(nil).Level(zerolog.Disabled))
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	return eng
}

func callRequest(method, url string, confidence float64) executor.Request {
	f := catalog.NewFunction("co2Registry", "CO2", "Total", catalog.Call{Method: method, URL: url})
	f.Confidence = confidence
	return executor.Request{Function: f, Kind: catalog.ImplCall, Method: method, Target: url}
}

func TestNewEngine(t *testing.T) {
	eng := newTestEngine(t)

	policies := eng.ListPolicies()
	expected := []string{"confidence-floor", "external-https-only", "method-allowlist"}
	if len(policies) != len(expected) {
		t.Fatalf("Expected %d built-in policies, got %d", len(expected), len(policies))
	}
	for i, name := range expected {
		if policies[i].Name != name {
			t.Errorf("Expected policy %s at %d, got %s", name, i, policies[i].Name)
		}
	}
}

func TestAllow_BuiltinPolicies(t *testing.T) {
	eng := newTestEngine(t)

	tests := []struct {
		name    string
		req     executor.Request
		allowed bool
	}{
		{
			name:    "https POST",
			req:     callRequest("POST", "https://registry.example.org/co2/1", 0.9),
			allowed: true,
		},
		{
			name:    "plain http GET",
			req:     callRequest("GET", "http://localhost:8080/v", 0.9),
			allowed: true,
		},
		{
			name:    "file scheme",
			req:     callRequest("GET", "file:///etc/passwd", 0.9),
			allowed: false,
		},
		{
			name:    "DELETE method",
			req:     callRequest("DELETE", "https://registry.example.org/co2/1", 0.9),
			allowed: false,
		},
		{
			name:    "low confidence only warns",
			req:     callRequest("GET", "https://registry.example.org/co2/1", 0.2),
			allowed: true,
		},
		{
			name: "query endpoint",
			req: executor.Request{
				Function: catalog.NewFunction("usesEnergy", "Product", "Energy", catalog.Query{Text: "SELECT ?e {}"}),
				Kind:     catalog.ImplQuery,
				Target:   "https://query.example.org/sparql",
			},
			allowed: true,
		},
		{
			name: "query endpoint over ftp",
			req: executor.Request{
				Function: catalog.NewFunction("usesEnergy", "Product", "Energy", catalog.Query{Text: "SELECT ?e {}"}),
				Kind:     catalog.ImplQuery,
				Target:   "ftp://query.example.org/",
			},
			allowed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := eng.Allow(context.Background(), tt.req)
			if tt.allowed && err != nil {
				t.Errorf("Expected access to be allowed, got: %v", err)
			}
			if !tt.allowed {
				if err == nil {
					t.Fatal("Expected access to be denied")
				}
				if engine.CodeOf(err) != engine.ErrCodePolicyDenied {
					t.Errorf("Expected POLICY_DENIED, got %s", engine.CodeOf(err))
				}
			}
		})
	}
}

func TestEvaluate_WarningsDoNotBlock(t *testing.T) {
	eng := newTestEngine(t)

	result, err := eng.Evaluate(context.Background(), NewInput(callRequest("GET", "https://example.org", 0.1)))
	if err != nil {
		t.Fatalf("Failed to evaluate: %v", err)
	}
	if !result.Allowed {
		t.Errorf("Expected allowed, got violations %v", result.Violations)
	}
	if len(result.Warnings) != 1 || result.Warnings[0].Policy != "confidence-floor" {
		t.Errorf("Expected one confidence-floor warning, got %v", result.Warnings)
	}
	if len(result.EvaluatedPolicies) != 3 {
		t.Errorf("Expected 3 evaluated policies, got %v", result.EvaluatedPolicies)
	}
}

func TestEnableDisablePolicy(t *testing.T) {
	eng := newTestEngine(t)
	req := callRequest("PUT", "https://example.org", 0.9)

	if err := eng.Allow(context.Background(), req); err == nil {
		t.Fatal("Expected PUT to be denied")
	}

	if err := eng.DisablePolicy("method-allowlist"); err != nil {
		t.Fatalf("Failed to disable policy: %v", err)
	}
	if err := eng.Allow(context.Background(), req); err != nil {
		t.Errorf("Expected PUT to be allowed with the policy disabled, got: %v", err)
	}

	if err := eng.EnablePolicy("method-allowlist"); err != nil {
		t.Fatalf("Failed to enable policy: %v", err)
	}
	if err := eng.Allow(context.Background(), req); err == nil {
		t.Error("Expected PUT to be denied again")
	}

	if err := eng.DisablePolicy("missing"); err == nil {
		t.Error("Expected error for unknown policy")
	}
}

const hostPolicy = `package typesynth.policies.hosts

import rego.v1

deny contains msg if {
	input.kind == "call"
	not startswith(input.url, "https://registry.example.org/")
	msg := sprintf("host not allowed: %s", [input.url])
}`

func TestAddPolicies_Custom(t *testing.T) {
	eng := newTestEngine(t)

	err := eng.AddPolicies(context.Background(), []Policy{{
		Name:     "hosts",
		Rego:     hostPolicy,
		Severity: SeverityError,
		Enabled:  true,
	}})
	if err != nil {
		t.Fatalf("Failed to add policy: %v", err)
	}

	if err := eng.Allow(context.Background(), callRequest("GET", "https://registry.example.org/x", 0.9)); err != nil {
		t.Errorf("Expected registry host to be allowed, got: %v", err)
	}
	if err := eng.Allow(context.Background(), callRequest("GET", "https://other.example.org/x", 0.9)); err == nil {
		t.Error("Expected other host to be denied")
	}
}

func TestAddPolicies_InvalidLeavesEngineUnchanged(t *testing.T) {
	eng := newTestEngine(t)

	err := eng.AddPolicies(context.Background(), []Policy{
		{Name: "hosts", Rego: hostPolicy, Severity: SeverityError, Enabled: true},
		{Name: "broken", Rego: "package broken\n\ndeny contains if {", Enabled: true},
	})
	if err == nil {
		t.Fatal("Expected compile error")
	}
	if _, err := eng.GetPolicy("hosts"); err == nil {
		t.Error("Expected no policy to be added when one fails")
	}
}

func TestReload_ReplacesCustomPolicies(t *testing.T) {
	eng := newTestEngine(t)
	custom := []Policy{{Name: "hosts", Rego: hostPolicy, Severity: SeverityError, Enabled: true}}

	if err := eng.Reload(context.Background(), custom); err != nil {
		t.Fatalf("Failed to reload: %v", err)
	}
	if len(eng.ListPolicies()) != 4 {
		t.Errorf("Expected built-ins plus one custom policy, got %d", len(eng.ListPolicies()))
	}

	if err := eng.Reload(context.Background(), nil); err != nil {
		t.Fatalf("Failed to reload: %v", err)
	}
	if _, err := eng.GetPolicy("hosts"); err == nil {
		t.Error("Expected custom policy to be removed")
	}
}

func TestEngine_GuardsExecutor(t *testing.T) {
	eng := newTestEngine(t)
	path := catalog.Path{catalog.NewFunction("lookup", "A", "B", catalog.Call{Method: "GET", URL: "file:///tmp/{input}"})}

	exec := executor.New(executor.WithCaller(executor.NewHTTPCaller()), executor.WithGuard(eng))
	res, err := exec.Execute(context.Background(), path, 1.0, executor.Options{})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if res.Steps[0].Metadata[executor.MetaPolicyDenied] == nil {
		t.Errorf("Expected policy denial recorded, got %v", res.Steps[0].Metadata)
	}
	if !res.Degraded {
		t.Error("Expected degraded result")
	}

	var denied *engine.Error
	if errors.As(eng.Allow(context.Background(), callRequest("TRACE", "https://x", 1)), &denied) && denied.Subject != "co2Registry" {
		t.Errorf("Expected denial subject co2Registry, got %s", denied.Subject)
	}
}
