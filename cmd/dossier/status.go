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
	"fmt"
	"maps"
	"slices"

	"github.com/kadirpekel/dossier/pkg/admin"
)

// StatusCmd prints the state of the deployment.
type StatusCmd struct {
	Ping bool `help:"Also check the database and the data providers."`
}

func (c *StatusCmd) Run(cli *CLI) error {
	ctx := context.Background()
	a, err := newApp(ctx, cli)
	if err != nil {
		return err
	}
	defer a.close()

	in, err := a.inspector(ctx)
	if err != nil {
		return err
	}
	report, err := in.Status(ctx, c.Ping)
	if err != nil {
		return err
	}
	printReport(report)
	return nil
}

func printReport(r *admin.Report) {
	fmt.Println("Companies")
	fmt.Printf("  %-22s %d\n", "total", r.Companies.Total)
	fmt.Printf("  %-22s %d\n", "with DART code", r.Companies.WithCorpCode)
	fmt.Printf("  %-22s %d\n", "without DART code", r.Companies.WithoutCorpCode())
	for _, class := range slices.Sorted(maps.Keys(r.Companies.ByClass)) {
		fmt.Printf("  %s%-22s %d%s\n", colorDim, "class "+class, r.Companies.ByClass[class], colorReset)
	}
	fmt.Printf("  %-22s %d\n", "pinned", r.Pins)

	fmt.Println("\nCredentials")
	for _, k := range r.Keys {
		mark, color := "set", colorGreen
		switch {
		case !k.Configured && k.Required:
			mark, color = "missing", colorRed
		case !k.Configured:
			mark, color = "not set", colorYellow
		}
		fmt.Printf("  %-22s %s%-8s%s %s%s%s\n", k.Name, color, mark, colorReset, colorDim, k.Env, colorReset)
	}

	if len(r.Pings) == 0 {
		return
	}
	fmt.Println("\nConnections")
	for _, p := range r.Pings {
		color := colorGreen
		if !p.OK {
			color = colorRed
		}
		fmt.Printf("  %-22s %s%s%s %s(%dms)%s\n", p.Name, color, p.Message, colorReset, colorDim, p.ElapsedMS, colorReset)
	}
}

// PinsCmd manages pinned companies.
type PinsCmd struct {
	List   PinsListCmd   `cmd:"" default:"1" help:"List pinned companies."`
	Add    PinsAddCmd    `cmd:"" help:"Pin a company."`
	Remove PinsRemoveCmd `cmd:"" help:"Unpin a company."`
}

type PinsListCmd struct{}

func (c *PinsListCmd) Run(cli *CLI) error {
	ctx := context.Background()
	a, err := newApp(ctx, cli)
	if err != nil {
		return err
	}
	defer a.close()

	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	pins, err := st.ListPins(ctx)
	if err != nil {
		return err
	}
	if len(pins) == 0 {
		fmt.Println("No pinned companies.")
		return nil
	}
	for _, p := range pins {
		co := p.Company
		fmt.Printf("%-30s %-14s %-9s %s%s%s\n", co.Name, co.CorpRegNo, co.CorpCode, colorDim, p.PinnedAt.Local().Format("2006-01-02 15:04"), colorReset)
	}
	return nil
}

type PinsAddCmd struct {
	Company string `arg:"" help:"Registration number, DART corp code or name."`
}

func (c *PinsAddCmd) Run(cli *CLI) error {
	ctx := context.Background()
	a, err := newApp(ctx, cli)
	if err != nil {
		return err
	}
	defer a.close()

	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	subject, err := resolveSubject(ctx, st, c.Company)
	if err != nil {
		return err
	}
	if _, err := st.AddPin(ctx, subject); err != nil {
		return err
	}
	fmt.Printf("Pinned %s (%s).\n", subject.Name, subject.CorpRegNo)
	return nil
}

type PinsRemoveCmd struct {
	Company string `arg:"" help:"Registration number, DART corp code or name."`
}

func (c *PinsRemoveCmd) Run(cli *CLI) error {
	ctx := context.Background()
	a, err := newApp(ctx, cli)
	if err != nil {
		return err
	}
	defer a.close()

	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	key := c.Company
	if subject, err := resolveSubject(ctx, st, c.Company); err == nil {
		key = subject.CorpRegNo
	}
	if err := st.RemovePin(ctx, key); err != nil {
		return err
	}
	fmt.Printf("Unpinned %s.\n", key)
	return nil
}
