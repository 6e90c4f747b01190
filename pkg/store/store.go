// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package store persists conversations, report sections, the company
// registry and pinned companies.
//
// Conversations are keyed by (subject, workflow) and replaced in place on
// upsert. Sections are keyed by (subject, workflow, section) and carry a
// version that every upsert increments; seeding never overwrites.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/kadirpekel/dossier/pkg/company"
	"github.com/kadirpekel/dossier/pkg/model"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// DefaultSearchLimit caps SearchCompanies when no limit is given.
const DefaultSearchLimit = 20

// prefixTopUp is the result count below which a prefix search is topped up
// with substring matches.
const prefixTopUp = 5

// Status is the lifecycle state of a section.
type Status string

const (
	StatusEmpty   Status = "empty"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusEmpty, StatusRunning, StatusDone, StatusError:
		return true
	}
	return false
}

// Conversation is the message history of one (subject, workflow) pair.
type Conversation struct {
	ID          string          `json:"id"`
	SubjectKey  string          `json:"subject_key"`
	WorkflowKey string          `json:"workflow_key"`
	Messages    []model.Message `json:"messages"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// SectionRecord is a persisted report section.
type SectionRecord struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SubjectKey     string    `json:"subject_key"`
	WorkflowKey    string    `json:"workflow_key"`
	SectionKey     string    `json:"section_key"`
	Title          string    `json:"title"`
	Content        string    `json:"content"`
	Status         Status    `json:"status"`
	Version        int       `json:"version"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// SectionInput is the payload of a section upsert.
type SectionInput struct {
	ConversationID string
	SubjectKey     string
	WorkflowKey    string
	SectionKey     string
	Title          string
	Content        string
}

// Conversations persists message histories.
type Conversations interface {
	// UpsertConversation stores c, replacing the messages of an existing
	// (subject, workflow) pair, and returns the conversation ID.
	UpsertConversation(ctx context.Context, c *Conversation) (string, error)

	// GetConversation returns the conversation or ErrNotFound.
	GetConversation(ctx context.Context, subjectKey, workflowKey string) (*Conversation, error)

	// DeleteConversation removes the conversation and its sections.
	DeleteConversation(ctx context.Context, subjectKey, workflowKey string) error
}

// Sections persists report sections.
type Sections interface {
	// UpsertSection writes the content with version previous+1 (or 1) and
	// status done, and returns the section ID.
	UpsertSection(ctx context.Context, in SectionInput) (string, error)

	// InitSections seeds the schema keys of the workflow at version 0 with
	// empty content and status empty. Existing keys are left untouched.
	InitSections(ctx context.Context, conversationID, subjectKey, workflowKey string) error

	// ListSections returns the sections of a pair in creation order.
	ListSections(ctx context.Context, subjectKey, workflowKey string) ([]SectionRecord, error)

	// GetSection returns one section or ErrNotFound.
	GetSection(ctx context.Context, subjectKey, workflowKey, sectionKey string) (*SectionRecord, error)

	// SetSectionStatus changes the status without touching content or
	// version.
	SetSectionStatus(ctx context.Context, subjectKey, workflowKey, sectionKey string, status Status) error
}

// Companies is the company registry.
type Companies interface {
	UpsertCompany(ctx context.Context, c company.Company) error

	// GetCompany looks a company up by corporate registration number.
	GetCompany(ctx context.Context, corpRegNo string) (*company.Company, error)

	// GetCompanyByCorpCode looks a company up by DART corp code.
	GetCompanyByCorpCode(ctx context.Context, corpCode string) (*company.Company, error)

	// SearchCompanies matches names by prefix, listed companies first, and
	// tops the result up with substring matches when the prefix yields few.
	SearchCompanies(ctx context.Context, keyword string, limit int) ([]company.Company, error)

	// CompanyStats summarizes the registry.
	CompanyStats(ctx context.Context) (CompanyStats, error)
}

// CompanyStats counts the registry by DART coverage and listing class.
type CompanyStats struct {
	Total        int            `json:"total"`
	WithCorpCode int            `json:"with_corp_code"`
	ByClass      map[string]int `json:"by_class"`
}

// WithoutCorpCode is the number of companies that file no disclosures.
func (s CompanyStats) WithoutCorpCode() int {
	return s.Total - s.WithCorpCode
}

// Pin is a company marked for quick access, with the company as it was
// when pinned.
type Pin struct {
	ID       string          `json:"id"`
	Company  company.Company `json:"company"`
	PinnedAt time.Time       `json:"pinned_at"`
}

// Pins persists pinned companies, keyed by registration number.
type Pins interface {
	// AddPin pins c and returns the pin ID. Pinning a pinned company
	// returns the existing ID.
	AddPin(ctx context.Context, c company.Company) (string, error)

	// RemovePin unpins a company. Removing an absent pin is not an error.
	RemovePin(ctx context.Context, corpRegNo string) error

	// ListPins returns the pins, most recent first.
	ListPins(ctx context.Context) ([]Pin, error)

	IsPinned(ctx context.Context, corpRegNo string) (bool, error)
}

// Store is the full persistence surface.
type Store interface {
	Conversations
	Sections
	Companies
	Pins

	// Ping checks that the backing database answers.
	Ping(ctx context.Context) error
	Close() error
}

// mergeSearch appends the substring matches to the prefix matches,
// skipping duplicates, up to limit.
func mergeSearch(prefix, contains []company.Company, limit int) []company.Company {
	out := append([]company.Company(nil), prefix...)
	seen := make(map[string]bool, len(out))
	for _, c := range out {
		seen[dedupeKey(c)] = true
	}
	for _, c := range contains {
		if len(out) >= limit {
			break
		}
		k := dedupeKey(c)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, c)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func dedupeKey(c company.Company) string {
	if c.CorpRegNo != "" {
		return "j:" + c.CorpRegNo
	}
	return "c:" + c.CorpCode
}
