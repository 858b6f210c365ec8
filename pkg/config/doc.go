// Package config loads the typesynth application configuration and the
// runtime parameters bound in formulas.
//
// # Configuration File
//
// The configuration is YAML. Every key is optional; missing keys keep their
// defaults:
//
//	catalog: catalogs/ghg.dsl
//	search:
//	  max_cost: 10
//	  max_steps: 10000
//	execution:
//	  endpoint: https://query.example.org/sparql
//	  params:
//	    emission_factor: 3.1
//	  params_file: params.star
//	  rate_limit: 5
//	store:
//	  enabled: true
//	  path: typesynth.db
//	policy:
//	  paths: [policies/]
//	  watch: true
//
// LOG_LEVEL, TYPESYNTH_ENDPOINT, TYPESYNTH_STORE and TYPESYNTH_CATALOG
// override the file.
//
// # Runtime Parameters
//
// Parameters resolve in order: built-in defaults, the params file, then the
// inline params. A params file is either a flat YAML/JSON mapping or a
// Starlark script. Scripts see the current values as the frozen dict
// "defaults" and export every numeric global:
//
//	efficiency = defaults["efficiency"] * 1.1
//	params = {"emission_factor": 3.1}
//
// Scripts cannot load modules and are stopped after a timeout.
package config
