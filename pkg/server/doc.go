// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel

// Package server exposes the research service over HTTP.
//
// Research and chat runs stream as server-sent events, one event per
// research.Event, named after its kind:
//
//	event: phase
//	data: {"kind":"phase","phase":"collecting_list"}
//
// Executive runs pause on human decisions. Pending prompts are listed at
// GET /v1/decisions and answered with POST /v1/decisions/{id} while the
// stream stays open.
package server
