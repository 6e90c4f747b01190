// Package dossier researches companies with a tool-using language model and
// keeps the result as versioned report sections.
//
// # Quick Start
//
// Install the command:
//
//	go install github.com/kadirpekel/dossier/cmd/dossier@latest
//
// Set the required credentials, then run a workflow against a company by
// its corporate registration number:
//
//	export ANTHROPIC_API_KEY=... SERPER_API_KEY=... DART_API_KEY=...
//	dossier companies import companies.xlsx
//	dossier research general 1101110000001
//
// Three workflows exist: general, finance and executives. The executives
// workflow pauses after collecting the executive list and asks which people
// to profile.
//
// Serve the same operations over HTTP with server-sent events:
//
//	dossier serve --config dossier.yaml
//
// Or expose the data tools to another agent over MCP:
//
//	dossier mcp
package dossier
