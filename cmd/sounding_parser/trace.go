package main

import (
	"bytes"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"sounding_parser/internal/bulletin"
	"sounding_parser/internal/ingest"
	"sounding_parser/internal/registry"
)

// TraceOut is the trace of one report part.
type TraceOut struct {
	Input  string                  `json:"input"`
	Part   string                  `json:"part"`
	Text   string                  `json:"text"`
	Traces []*registry.TraceResult `json:"traces"`
}

func runTrace(args []string) {
	fs := flag.NewFlagSet("trace", flag.ExitOnError)
	pretty := fs.Bool("pretty", true, "Pretty-print JSON output")
	_ = fs.Parse(args)

	_, log := setup()

	inputs := fs.Args()
	if len(inputs) == 0 {
		inputs = []string{"-"}
	}

	out := []TraceOut{}
	for _, path := range inputs {
		data, err := readInput(path)
		if err != nil {
			fatal(log, "read input", fmt.Errorf("%s: %w", path, err))
		}
		for _, msg := range traceMessages(data) {
			out = append(out, TraceOut{
				Input:  path,
				Part:   msg.Part,
				Text:   msg.Text,
				Traces: traceMessage(registry.Default(), msg),
			})
		}
	}

	enc, err := marshalJSON(out, *pretty)
	if err != nil {
		fatal(log, "JSON encode error", err)
	}
	fmt.Fprintln(os.Stdout, string(enc))
}

// traceMessages splits input the same way decode does, keeping invalid lines
// out of the trace.
func traceMessages(data []byte) []*bulletin.Message {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}
	payloads := [][]byte{trimmed}
	if trimmed[0] == '{' {
		payloads = bytes.Split(trimmed, []byte("\n"))
	}

	var msgs []*bulletin.Message
	for _, p := range payloads {
		m, err := ingest.DecodePayload(p, "")
		if err == nil {
			msgs = append(msgs, m...)
		}
	}
	return msgs
}

// traceMessage runs every traceable parser registered for the message part.
func traceMessage(reg *registry.Registry, msg *bulletin.Message) []*registry.TraceResult {
	var traces []*registry.TraceResult
	for _, p := range reg.AllParsers() {
		t, ok := p.(registry.Traceable)
		if !ok || !handlesPart(p, msg.Part) {
			continue
		}
		traces = append(traces, t.ParseWithTrace(msg))
	}
	return traces
}

func handlesPart(p registry.Parser, part string) bool {
	parts := p.Parts()
	if len(parts) == 0 {
		return true
	}
	for _, pp := range parts {
		if pp == part {
			return true
		}
	}
	return false
}
