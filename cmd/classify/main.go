// Command classify runs the market classifier over Gamma market records and
// prints the category, deciding rule and parsed fixture data of each one.
//
//	classify [-format text|json] [file]
//	classify [-format text|json] -slug nfl-dal-was-2026-01-04
//	classify [-format text|json] -events 20
//	classify -audit cases.yaml
//
// Input is a JSON array, a single object or JSON lines, read from file or
// stdin. -slug and -events fetch live records from the Gamma API instead. In
// audit mode every case's expectations are checked and the command exits
// non-zero when any case fails.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/polybets/polybet/internal/domain"
	"github.com/polybets/polybet/internal/platform/polymarket"
	"github.com/polybets/polybet/internal/server/handler"
	"github.com/polybets/polybet/internal/service"
)

const (
	defaultGammaHost = "https://gamma-api.polymarket.com"
	fetchTimeout     = 15 * time.Second
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("classify", flag.ContinueOnError)
	fs.SetOutput(stderr)
	format := fs.String("format", "text", "output format: text or json")
	audit := fs.String("audit", "", "YAML file of expectation cases to check")
	gammaHost := fs.String("gamma", defaultGammaHost, "Gamma API base URL")
	slug := fs.String("slug", "", "fetch and classify the market with this slug")
	events := fs.Int("events", 0, "fetch and classify the markets of the first N open events")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *audit != "" {
		failed, err := runAudit(*audit, stdout)
		if err != nil {
			fmt.Fprintf(stderr, "classify: %v\n", err)
			return 2
		}
		if failed > 0 {
			return 1
		}
		return 0
	}

	var (
		raws []domain.RawMarket
		err  error
	)
	if *slug != "" || *events > 0 {
		raws, err = fetchLive(polymarket.NewGammaClient(*gammaHost).WithTimeout(fetchTimeout), *slug, *events)
	} else {
		raws, err = readInput(fs.Arg(0), stdin)
	}
	if err != nil {
		fmt.Fprintf(stderr, "classify: %v\n", err)
		return 2
	}

	results := make([]handler.ClassifyResult, 0, len(raws))
	for _, raw := range raws {
		results = append(results, handler.NewClassifyResult(service.Classify(raw)))
	}

	switch *format {
	case "json":
		err = writeJSON(stdout, results)
	case "text":
		err = writeText(stdout, results)
	default:
		err = fmt.Errorf("unknown format %q", *format)
	}
	if err != nil {
		fmt.Fprintf(stderr, "classify: %v\n", err)
		return 2
	}
	return 0
}

func readInput(path string, stdin io.Reader) ([]domain.RawMarket, error) {
	if path == "" || path == "-" {
		return polymarket.DecodeMarkets(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return polymarket.DecodeMarkets(f)
}

// fetchLive loads one market by slug or the markets of the first n events.
func fetchLive(gamma *polymarket.GammaClient, slug string, n int) ([]domain.RawMarket, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*fetchTimeout)
	defer cancel()

	if slug != "" {
		raw, err := gamma.GetMarketBySlug(ctx, slug)
		if err != nil {
			return nil, err
		}
		return []domain.RawMarket{raw}, nil
	}

	events, err := gamma.ListEvents(ctx, n, 0)
	if err != nil {
		return nil, err
	}
	var raws []domain.RawMarket
	for i := range events {
		raws = append(raws, events[i].RawMarkets()...)
	}
	if len(raws) == 0 {
		return nil, errors.New("no markets in the fetched events")
	}
	return raws, nil
}

func writeJSON(w io.Writer, results []handler.ClassifyResult) error {
	enc := json.NewEncoder(w)
	for _, r := range results {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
	}
	return nil
}

func writeText(w io.Writer, results []handler.ClassifyResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCATEGORY\tRULE\tKIND\tMATCHUP\tCOMPETITIONS\tTITLE")
	for _, r := range results {
		kind, matchup, comps := "-", "-", "-"
		if s := r.Sports; s != nil {
			kind = string(s.Kind)
			switch {
			case s.Matchup != nil:
				matchup = s.Matchup.TeamA + " v " + s.Matchup.TeamB
			case s.SingleTeam != nil:
				matchup = s.SingleTeam.Team
			}
			if len(s.Competitions) > 0 {
				comps = strings.Join(s.Competitions, ",")
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			orDash(r.ID), r.Category, r.Rule, kind, matchup, comps, r.Title)
	}
	return tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// auditFile is the YAML layout of an audit run.
type auditFile struct {
	Cases []auditCase `yaml:"cases"`
}

type auditCase struct {
	Name   string      `yaml:"name"`
	Market auditMarket `yaml:"market"`
	Want   auditWant   `yaml:"want"`
}

type auditMarket struct {
	ID        string   `yaml:"id"`
	Question  string   `yaml:"question"`
	Title     string   `yaml:"title"`
	Slug      string   `yaml:"slug"`
	Category  string   `yaml:"category"`
	Tags      []string `yaml:"tags"`
	EventSlug string   `yaml:"event_slug"`
}

// auditWant lists the expectations of a case. Empty fields are not checked.
type auditWant struct {
	Category     string   `yaml:"category"`
	Rule         string   `yaml:"rule"`
	Kind         string   `yaml:"kind"`
	Teams        []string `yaml:"teams"`
	Competitions []string `yaml:"competitions"`
}

func (m auditMarket) raw() domain.RawMarket {
	raw := domain.RawMarket{
		ID:       m.ID,
		Question: m.Question,
		Title:    m.Title,
		Slug:     m.Slug,
		Category: m.Category,
	}
	for _, t := range m.Tags {
		raw.Tags = append(raw.Tags, domain.Tag{Label: t})
	}
	if m.EventSlug != "" {
		raw.Events = []domain.Event{{Slug: m.EventSlug}}
	}
	return raw
}

func loadAudit(path string) (auditFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return auditFile{}, fmt.Errorf("read audit file: %w", err)
	}
	var af auditFile
	if err := yaml.Unmarshal(data, &af); err != nil {
		return auditFile{}, fmt.Errorf("parse audit file %s: %w", path, err)
	}
	if len(af.Cases) == 0 {
		return auditFile{}, errors.New("audit file has no cases")
	}
	return af, nil
}

// runAudit checks every case in path and returns the number of failures.
func runAudit(path string, w io.Writer) (int, error) {
	af, err := loadAudit(path)
	if err != nil {
		return 0, err
	}

	failed := 0
	for i, c := range af.Cases {
		name := c.Name
		if name == "" {
			name = fmt.Sprintf("case %d", i+1)
		}
		problems := checkCase(service.Classify(c.Market.raw()), c.Want)
		if len(problems) == 0 {
			fmt.Fprintf(w, "ok   %s\n", name)
			continue
		}
		failed++
		fmt.Fprintf(w, "FAIL %s: %s\n", name, strings.Join(problems, "; "))
	}
	fmt.Fprintf(w, "%d/%d cases passed\n", len(af.Cases)-failed, len(af.Cases))
	return failed, nil
}

func checkCase(cm domain.ClassifiedMarket, want auditWant) []string {
	var problems []string
	if want.Category != "" && cm.Category != want.Category {
		problems = append(problems, fmt.Sprintf("category = %q, want %q", cm.Category, want.Category))
	}
	if want.Rule != "" && cm.Rule != want.Rule {
		problems = append(problems, fmt.Sprintf("rule = %q, want %q", cm.Rule, want.Rule))
	}
	if want.Kind == "" && len(want.Teams) == 0 && len(want.Competitions) == 0 {
		return problems
	}
	if cm.Sports == nil {
		return append(problems, "no sports data")
	}
	if want.Kind != "" && string(cm.Sports.Kind) != want.Kind {
		problems = append(problems, fmt.Sprintf("kind = %q, want %q", cm.Sports.Kind, want.Kind))
	}
	if len(want.Teams) > 0 {
		var got []string
		switch {
		case cm.Sports.Matchup != nil:
			got = []string{cm.Sports.Matchup.TeamA, cm.Sports.Matchup.TeamB}
		case cm.Sports.SingleTeam != nil:
			got = []string{cm.Sports.SingleTeam.Team}
		}
		if !slices.Equal(got, want.Teams) {
			problems = append(problems, fmt.Sprintf("teams = %v, want %v", got, want.Teams))
		}
	}
	if len(want.Competitions) > 0 && !slices.Equal(cm.Sports.Competitions, want.Competitions) {
		problems = append(problems, fmt.Sprintf("competitions = %v, want %v", cm.Sports.Competitions, want.Competitions))
	}
	return problems
}
