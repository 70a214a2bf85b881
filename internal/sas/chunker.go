package sas

import (
	"fmt"
	"regexp"
	"strings"
)

// tokenCharRatio approximates tokens as characters: one token is taken to be
// four characters. A heuristic, not a tokenizer.
const tokenCharRatio = 4

// macroHeadPattern matches the opening directive of a macro definition.
var macroHeadPattern = regexp.MustCompile(`(?i)%macro\s+(\w+)`)

// Macro is one extracted %macro definition. Body excludes both the opening
// and the closing directive. Index is the discovery order; Placeholder marks
// the macro's original position in the main body.
type Macro struct {
	Name        string `json:"name"`
	Body        string `json:"body"`
	Placeholder string `json:"placeholder"`
	Index       int    `json:"index"`
}

// ChunkReport is the result of ChunkSource: extracted macros plus the
// macro-free main body split into token-budgeted chunks.
type ChunkReport struct {
	Macros         []Macro  `json:"macros"`
	MainBodyChunks []string `json:"mainBodyChunks"`
}

// ExtractMacros pulls every %macro name ... %mend name; definition out of
// source. The closing directive must repeat the macro's name; an opener with
// no matching closer is left in place and skipped. Each extracted span is
// replaced with a placeholder comment carrying the macro index, name, and
// label, so callers can reassemble the file later.
func ExtractMacros(source, label string) ([]Macro, string) {
	macros := []Macro{}
	body := source
	search := 0
	for {
		loc := macroHeadPattern.FindStringSubmatchIndex(body[search:])
		if loc == nil {
			break
		}
		headStart := search + loc[0]
		nameEnd := search + loc[1]
		name := body[search+loc[2] : search+loc[3]]

		closer := regexp.MustCompile(`(?i)%mend\s+` + regexp.QuoteMeta(name) + `\s*;`)
		closeLoc := closer.FindStringIndex(body[nameEnd:])
		if closeLoc == nil {
			search = nameEnd
			continue
		}

		idx := len(macros)
		placeholder := fmt.Sprintf("/* MACRO_%d_%s_%s */", idx, name, label)
		macros = append(macros, Macro{
			Name:        name,
			Body:        body[nameEnd : nameEnd+closeLoc[0]],
			Placeholder: placeholder,
			Index:       idx,
		})

		body = body[:headStart] + placeholder + body[nameEnd+closeLoc[1]:]
		search = headStart + len(placeholder)
	}
	return macros, body
}

// ChunkCode splits body into chunks at statement boundaries, keeping each
// chunk within maxTokenSize (approximated as characters via tokenCharRatio).
// Delimiters stay in the stream, so concatenating the returned chunks
// reproduces body byte for byte. A single statement over budget is emitted
// alone rather than split.
func ChunkCode(body string, maxTokenSize int) []string {
	budget := maxTokenSize * tokenCharRatio
	chunks := []string{}
	var current strings.Builder
	for _, unit := range splitUnits(body) {
		if current.Len() > 0 && current.Len()+len(unit) > budget {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		current.WriteString(unit)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// splitUnits cuts body on statement terminators and newlines, emitting each
// delimiter as its own unit so reassembly is exact.
func splitUnits(body string) []string {
	var units []string
	start := 0
	for i := 0; i < len(body); i++ {
		if body[i] == ';' || body[i] == '\n' {
			units = append(units, body[start:i], string(body[i]))
			start = i + 1
		}
	}
	return append(units, body[start:])
}

// ChunkSource extracts macros and chunks the remaining main body. label keeps
// placeholders unique when several files are chunked into one corpus.
func ChunkSource(source string, maxTokenSize int, label string) ChunkReport {
	macros, body := ExtractMacros(source, label)
	return ChunkReport{
		Macros:         macros,
		MainBodyChunks: ChunkCode(body, maxTokenSize),
	}
}
