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
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"

	"github.com/kadirpekel/dossier/pkg/hitl"
)

// terminalDecider answers prompts from stdin. Without a terminal every
// prompt times out, which keeps piped and scheduled runs unattended.
type terminalDecider struct {
	in  io.Reader
	out io.Writer

	once  sync.Once
	lines chan string
}

var _ hitl.Decider = (*terminalDecider)(nil)

func newDecider() hitl.Decider {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return hitl.Unattended()
	}
	return &terminalDecider{in: os.Stdin, out: os.Stdout}
}

// readLines starts the single reader shared by all prompts. A read left
// pending by a timed-out prompt is consumed by the next one.
func (d *terminalDecider) readLines() {
	d.lines = make(chan string)
	go func() {
		defer close(d.lines)
		scanner := bufio.NewScanner(d.in)
		for scanner.Scan() {
			d.lines <- scanner.Text()
		}
	}()
}

func (d *terminalDecider) Decide(ctx context.Context, p hitl.Prompt) (hitl.Decision, error) {
	d.once.Do(d.readLines)

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = hitl.DefaultTimeout
	}

	fmt.Fprintf(d.out, "\n%s?%s %s\n", colorYellow, colorReset, p.Question)
	for i, opt := range p.Options {
		fmt.Fprintf(d.out, "  %d) %s\n", i+1, opt)
	}
	fmt.Fprintf(d.out, "%s(empty answer or %s keeps the default)%s > ", colorDim, timeout, colorReset)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return hitl.Decision{}, ctx.Err()
	case <-timer.C:
		fmt.Fprintln(d.out, "\ntimed out")
		return hitl.Decision{TimedOut: true}, nil
	case line, ok := <-d.lines:
		if !ok {
			return hitl.Decision{TimedOut: true}, nil
		}
		return parseAnswer(p, strings.TrimSpace(line)), nil
	}
}

// parseAnswer maps a typed line to a decision. Choices accept the option
// number or its label.
func parseAnswer(p hitl.Prompt, line string) hitl.Decision {
	if line == "" {
		return hitl.Decision{TimedOut: true}
	}
	if p.Kind != hitl.KindChoice {
		return hitl.Decision{Value: line}
	}
	if n, err := strconv.Atoi(line); err == nil && n >= 1 && n <= len(p.Options) {
		return hitl.Decision{Value: p.Options[n-1]}
	}
	for _, opt := range p.Options {
		if strings.EqualFold(opt, line) {
			return hitl.Decision{Value: opt}
		}
	}
	return hitl.Decision{Value: line}
}
