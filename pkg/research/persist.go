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
package research

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/kadirpekel/dossier/pkg/section"
	"github.com/kadirpekel/dossier/pkg/store"
)

// ensureConversation returns the stored conversation of the pair, creating
// an empty one when none exists. Existing messages are left untouched until
// a run finishes.
func ensureConversation(ctx context.Context, st store.Store, subjectKey, workflowKey string) (*store.Conversation, error) {
	conv, err := st.GetConversation(ctx, subjectKey, workflowKey)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	conv = &store.Conversation{SubjectKey: subjectKey, WorkflowKey: workflowKey}
	id, err := st.UpsertConversation(ctx, conv)
	if err != nil {
		return nil, err
	}
	conv.ID = id
	return conv, nil
}

// setStatus updates section statuses. Failures are logged; status is
// advisory and never fails a run.
func setStatus(ctx context.Context, st store.Sections, subjectKey, workflowKey string, status store.Status, keys ...string) {
	for _, key := range keys {
		if err := st.SetSectionStatus(ctx, subjectKey, workflowKey, key, status); err != nil && !errors.Is(err, store.ErrNotFound) {
			slog.Warn("Failed to set section status", "section", key, "status", status, "error", err)
		}
	}
}

// settleStatus returns a section that was not rewritten to the status its
// content implies.
func settleStatus(ctx context.Context, st store.Sections, subjectKey, workflowKey, key string) {
	rec, err := st.GetSection(ctx, subjectKey, workflowKey, key)
	if err != nil {
		return
	}
	status := store.StatusEmpty
	if rec.Version > 0 {
		status = store.StatusDone
	}
	setStatus(ctx, st, subjectKey, workflowKey, status, key)
}

// reportWriter persists the outcome of one finished pass. Writes run to
// completion even when the caller has stopped consuming events.
type reportWriter struct {
	st          store.Store
	convID      string
	subjectKey  string
	workflowKey string
}

// sections upserts secs in order and settles every key of pending that was
// not rewritten. When an upsert fails, only the pending keys not yet saved
// are marked as errored.
func (w reportWriter) sections(ctx context.Context, secs section.Sections, pending []string) ([]string, error) {
	saved := make([]string, 0, len(secs))
	for _, sec := range secs {
		_, err := w.st.UpsertSection(ctx, store.SectionInput{
			ConversationID: w.convID,
			SubjectKey:     w.subjectKey,
			WorkflowKey:    w.workflowKey,
			SectionKey:     sec.Key,
			Title:          sec.Title,
			Content:        sec.Content,
		})
		if err != nil {
			var unsaved []string
			for _, key := range pending {
				if !slices.Contains(saved, key) {
					unsaved = append(unsaved, key)
				}
			}
			setStatus(ctx, w.st, w.subjectKey, w.workflowKey, store.StatusError, unsaved...)
			return saved, fmt.Errorf("failed to save section %s: %w", sec.Key, err)
		}
		saved = append(saved, sec.Key)
	}
	for _, key := range pending {
		if !slices.Contains(saved, key) {
			settleStatus(ctx, w.st, w.subjectKey, w.workflowKey, key)
		}
	}
	return saved, nil
}

// conversation stores the messages of the pass.
func (w reportWriter) conversation(ctx context.Context, conv *store.Conversation) error {
	if _, err := w.st.UpsertConversation(ctx, conv); err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}
	return nil
}
