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

package store

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kadirpekel/dossier/pkg/company"
	"github.com/kadirpekel/dossier/pkg/model"
	"github.com/kadirpekel/dossier/pkg/workflow"
)

type pairKey struct{ subject, workflow string }

// Memory is an in-process Store.
type Memory struct {
	mu            sync.RWMutex
	conversations map[pairKey]*Conversation
	sections      map[pairKey][]*SectionRecord
	companies     map[string]company.Company
	pins          []Pin
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		conversations: make(map[pairKey]*Conversation),
		sections:      make(map[pairKey][]*SectionRecord),
		companies:     make(map[string]company.Company),
	}
}

func (m *Memory) UpsertConversation(_ context.Context, c *Conversation) (string, error) {
	if c == nil || c.SubjectKey == "" || c.WorkflowKey == "" {
		return "", fmt.Errorf("conversation requires subject and workflow keys")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	k := pairKey{c.SubjectKey, c.WorkflowKey}
	if existing, ok := m.conversations[k]; ok {
		existing.Messages = model.CloneMessages(c.Messages)
		existing.UpdatedAt = now
		return existing.ID, nil
	}
	stored := &Conversation{
		ID:          uuid.NewString(),
		SubjectKey:  c.SubjectKey,
		WorkflowKey: c.WorkflowKey,
		Messages:    model.CloneMessages(c.Messages),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.conversations[k] = stored
	return stored.ID, nil
}

func (m *Memory) GetConversation(_ context.Context, subjectKey, workflowKey string) (*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.conversations[pairKey{subjectKey, workflowKey}]
	if !ok {
		return nil, fmt.Errorf("conversation %s/%s: %w", subjectKey, workflowKey, ErrNotFound)
	}
	out := *c
	out.Messages = model.CloneMessages(c.Messages)
	return &out, nil
}

func (m *Memory) DeleteConversation(_ context.Context, subjectKey, workflowKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := pairKey{subjectKey, workflowKey}
	delete(m.conversations, k)
	delete(m.sections, k)
	return nil
}

func (m *Memory) find(k pairKey, sectionKey string) *SectionRecord {
	for _, s := range m.sections[k] {
		if s.SectionKey == sectionKey {
			return s
		}
	}
	return nil
}

func (m *Memory) UpsertSection(_ context.Context, in SectionInput) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := pairKey{in.SubjectKey, in.WorkflowKey}
	now := time.Now()
	if s := m.find(k, in.SectionKey); s != nil {
		s.ConversationID = in.ConversationID
		s.Title = in.Title
		s.Content = in.Content
		s.Status = StatusDone
		s.Version++
		s.UpdatedAt = now
		return s.ID, nil
	}
	s := &SectionRecord{
		ID:             uuid.NewString(),
		ConversationID: in.ConversationID,
		SubjectKey:     in.SubjectKey,
		WorkflowKey:    in.WorkflowKey,
		SectionKey:     in.SectionKey,
		Title:          in.Title,
		Content:        in.Content,
		Status:         StatusDone,
		Version:        1,
		UpdatedAt:      now,
	}
	m.sections[k] = append(m.sections[k], s)
	return s.ID, nil
}

func (m *Memory) InitSections(_ context.Context, conversationID, subjectKey, workflowKey string) error {
	def, ok := workflow.Lookup(workflow.ID(workflowKey))
	if !ok {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	k := pairKey{subjectKey, workflowKey}
	now := time.Now()
	for _, spec := range def.Sections {
		if m.find(k, spec.Key) != nil {
			continue
		}
		m.sections[k] = append(m.sections[k], &SectionRecord{
			ID:             uuid.NewString(),
			ConversationID: conversationID,
			SubjectKey:     subjectKey,
			WorkflowKey:    workflowKey,
			SectionKey:     spec.Key,
			Title:          spec.Title,
			Status:         StatusEmpty,
			UpdatedAt:      now,
		})
	}
	return nil
}

func (m *Memory) ListSections(_ context.Context, subjectKey, workflowKey string) ([]SectionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.sections[pairKey{subjectKey, workflowKey}]
	out := make([]SectionRecord, len(list))
	for i, s := range list {
		out[i] = *s
	}
	return out, nil
}

func (m *Memory) GetSection(_ context.Context, subjectKey, workflowKey, sectionKey string) (*SectionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.find(pairKey{subjectKey, workflowKey}, sectionKey)
	if s == nil {
		return nil, fmt.Errorf("section %s: %w", sectionKey, ErrNotFound)
	}
	out := *s
	return &out, nil
}

func (m *Memory) SetSectionStatus(_ context.Context, subjectKey, workflowKey, sectionKey string, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("invalid section status %q", status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.find(pairKey{subjectKey, workflowKey}, sectionKey)
	if s == nil {
		return fmt.Errorf("section %s: %w", sectionKey, ErrNotFound)
	}
	s.Status = status
	s.UpdatedAt = time.Now()
	return nil
}

func (m *Memory) UpsertCompany(_ context.Context, c company.Company) error {
	if c.CorpRegNo == "" {
		return fmt.Errorf("company %q has no corporate registration number", c.Name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.companies[c.CorpRegNo] = c
	return nil
}

func (m *Memory) GetCompany(_ context.Context, corpRegNo string) (*company.Company, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.companies[corpRegNo]
	if !ok {
		return nil, fmt.Errorf("company %s: %w", corpRegNo, ErrNotFound)
	}
	return &c, nil
}

func (m *Memory) GetCompanyByCorpCode(_ context.Context, corpCode string) (*company.Company, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.companies {
		if corpCode != "" && c.CorpCode == corpCode {
			return &c, nil
		}
	}
	return nil, fmt.Errorf("company with corp code %s: %w", corpCode, ErrNotFound)
}

func (m *Memory) SearchCompanies(_ context.Context, keyword string, limit int) ([]company.Company, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var prefix, contains []company.Company
	for _, c := range m.companies {
		switch {
		case strings.HasPrefix(c.Name, keyword):
			prefix = append(prefix, c)
			contains = append(contains, c)
		case strings.Contains(c.Name, keyword):
			contains = append(contains, c)
		}
	}
	sortListedFirst(prefix)
	sortListedFirst(contains)
	if len(prefix) > limit {
		prefix = prefix[:limit]
	}
	if len(prefix) >= prefixTopUp {
		return prefix, nil
	}
	return mergeSearch(prefix, contains, limit), nil
}

func sortListedFirst(cs []company.Company) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].CorpClass != cs[j].CorpClass {
			return cs[i].CorpClass > cs[j].CorpClass
		}
		return cs[i].Name < cs[j].Name
	})
}

func (m *Memory) CompanyStats(context.Context) (CompanyStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := CompanyStats{Total: len(m.companies), ByClass: map[string]int{}}
	for _, c := range m.companies {
		if c.CorpCode != "" {
			stats.WithCorpCode++
		}
		if c.CorpClass != "" {
			stats.ByClass[c.CorpClass]++
		}
	}
	return stats, nil
}

func (m *Memory) AddPin(_ context.Context, c company.Company) (string, error) {
	if c.CorpRegNo == "" {
		return "", fmt.Errorf("company %q has no corporate registration number", c.Name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.pins {
		if p.Company.CorpRegNo == c.CorpRegNo {
			return p.ID, nil
		}
	}
	p := Pin{ID: uuid.NewString(), Company: c, PinnedAt: time.Now()}
	m.pins = append(m.pins, p)
	return p.ID, nil
}

func (m *Memory) RemovePin(_ context.Context, corpRegNo string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pins = slices.DeleteFunc(m.pins, func(p Pin) bool {
		return p.Company.CorpRegNo == corpRegNo
	})
	return nil
}

func (m *Memory) ListPins(context.Context) ([]Pin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := slices.Clone(m.pins)
	slices.Reverse(out)
	return out, nil
}

func (m *Memory) IsPinned(_ context.Context, corpRegNo string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.ContainsFunc(m.pins, func(p Pin) bool {
		return p.Company.CorpRegNo == corpRegNo
	}), nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
