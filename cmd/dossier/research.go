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

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/kadirpekel/dossier/pkg/agent"
	"github.com/kadirpekel/dossier/pkg/research"
	"github.com/kadirpekel/dossier/pkg/workflow"
)

const (
	colorReset  = "\033[0m"
	colorDim    = "\033[2m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
)

// ResearchCmd runs a workflow end to end and stores the report.
type ResearchCmd struct {
	Workflow string `arg:"" help:"Workflow: general, finance or executives."`
	Subject  string `arg:"" help:"Registration number, corp code or company name."`
}

func (c *ResearchCmd) Run(cli *CLI) error {
	ctx, stop := signalContext()
	defer stop()

	wf, err := workflow.Parse(c.Workflow)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cli)
	if err != nil {
		return err
	}
	defer a.close()

	svc, err := a.service(ctx, newDecider())
	if err != nil {
		return err
	}
	subject, err := resolveSubject(ctx, svc.Store(), c.Subject)
	if err != nil {
		return err
	}

	fmt.Printf("%sResearching %s (%s) with the %s workflow%s\n\n", colorDim, subject.Name, subject.Key(), wf, colorReset)
	return render(os.Stdout, svc.Research(ctx, wf, subject))
}

// ChatCmd continues a stored conversation.
type ChatCmd struct {
	Workflow string `arg:"" help:"Workflow the conversation belongs to."`
	Subject  string `arg:"" help:"Registration number, corp code or company name."`
	Message  string `arg:"" help:"Follow-up question."`
}

func (c *ChatCmd) Run(cli *CLI) error {
	ctx, stop := signalContext()
	defer stop()

	wf, err := workflow.Parse(c.Workflow)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cli)
	if err != nil {
		return err
	}
	defer a.close()

	svc, err := a.service(ctx, newDecider())
	if err != nil {
		return err
	}
	subject, err := resolveSubject(ctx, svc.Store(), c.Subject)
	if err != nil {
		return err
	}
	return render(os.Stdout, svc.Chat(ctx, wf, subject, c.Message))
}

// SectionsCmd prints the stored sections of a report.
type SectionsCmd struct {
	Workflow string `arg:"" help:"Workflow of the report."`
	Subject  string `arg:"" help:"Registration number, corp code or company name."`
	Status   bool   `help:"List section titles and statuses only."`
}

func (c *SectionsCmd) Run(cli *CLI) error {
	ctx := context.Background()

	wf, err := workflow.Parse(c.Workflow)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cli)
	if err != nil {
		return err
	}
	defer a.close()

	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	subject, err := resolveSubject(ctx, st, c.Subject)
	if err != nil {
		return err
	}
	sections, err := st.ListSections(ctx, subject.Key(), string(wf))
	if err != nil {
		return err
	}
	if len(sections) == 0 {
		fmt.Printf("No %s report stored for %s.\n", wf, subject.Name)
		return nil
	}

	for _, s := range sections {
		fmt.Printf("%s## %s%s %s[%s, v%d, %s]%s\n", colorGreen, s.Title, colorReset,
			colorDim, s.Status, s.Version, s.UpdatedAt.Format("2006-01-02 15:04"), colorReset)
		if !c.Status && s.Content != "" {
			fmt.Printf("\n%s\n", strings.TrimSpace(s.Content))
		}
		fmt.Println()
	}
	return nil
}

// ResetCmd deletes a stored conversation and its sections.
type ResetCmd struct {
	Workflow string `arg:"" help:"Workflow of the conversation."`
	Subject  string `arg:"" help:"Registration number, corp code or company name."`
}

func (c *ResetCmd) Run(cli *CLI) error {
	ctx := context.Background()

	wf, err := workflow.Parse(c.Workflow)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cli)
	if err != nil {
		return err
	}
	defer a.close()

	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	subject, err := resolveSubject(ctx, st, c.Subject)
	if err != nil {
		return err
	}
	if err := st.DeleteConversation(ctx, subject.Key(), string(wf)); err != nil {
		return err
	}
	fmt.Printf("Deleted the %s conversation of %s.\n", wf, subject.Name)
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// render writes a research stream to w and returns the error of an
// aborted run.
func render(w io.Writer, events iter.Seq[research.Event]) error {
	midLine := false
	newline := func() {
		if midLine {
			fmt.Fprintln(w)
			midLine = false
		}
	}

	for ev := range events {
		switch ev.Kind {
		case research.EventAgent:
			a := ev.Agent
			switch a.Kind {
			case agent.EventText:
				fmt.Fprint(w, a.Content)
				midLine = !strings.HasSuffix(a.Content, "\n")
			case agent.EventProgress:
				newline()
				if a.Total > 0 {
					fmt.Fprintf(w, "%s[%d/%d %3d%%] %s%s\n", colorDim, a.Step, a.Total, a.Percent, a.Content, colorReset)
				} else {
					fmt.Fprintf(w, "%s%s%s\n", colorDim, a.Content, colorReset)
				}
			case agent.EventDone:
				newline()
				fmt.Fprintf(w, "%s%d tool calls%s\n", colorDim, a.ToolCallCount, colorReset)
			case agent.EventError:
				newline()
				fmt.Fprintf(w, "%sRun failed: %s%s\n", colorRed, a.Content, colorReset)
			}
		case research.EventPhase:
			newline()
			fmt.Fprintf(w, "%s-- %s%s\n", colorDim, ev.Phase, colorReset)
		case research.EventSelection:
			newline()
			fmt.Fprintf(w, "Profiling: %s\n", strings.Join(ev.Names, ", "))
		case research.EventSectionSaved:
			newline()
			fmt.Fprintf(w, "%s✓ saved %s%s\n", colorGreen, ev.Section, colorReset)
		case research.EventAborted:
			newline()
			if ev.Err != nil {
				return fmt.Errorf("%s: %w", ev.Message, ev.Err)
			}
			return errors.New(ev.Message)
		case research.EventCompleted:
			newline()
			fmt.Fprintf(w, "\n%sDone.%s %s\n", colorGreen, colorReset, ev.Message)
		}
	}
	newline()
	return nil
}
