// frame-dump decodes hex-encoded sensor frames and prints the readings.
//
// Frames come from the command line arguments, or one per line on stdin
// when no arguments are given. With -envelope each input is a whole serial
// envelope and the routing header is printed too.
package main

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/banshee-data/sensor.link/internal/codec"
	"github.com/banshee-data/sensor.link/internal/link"
	"github.com/banshee-data/sensor.link/internal/sensor"
)

type options struct {
	envelope bool
	json     bool
}

type record struct {
	Source  string          `json:"source,omitempty"`
	Dest    string          `json:"dest,omitempty"`
	Path    string          `json:"path,omitempty"`
	Reading *sensor.Reading `json:"reading,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func main() {
	envelope := flag.Bool("envelope", false, "Inputs are serial envelopes rather than bare frames")
	asJSON := flag.Bool("json", false, "Print one JSON object per input")
	flag.Parse()

	opts := options{envelope: *envelope, json: *asJSON}

	var failed int
	if flag.NArg() > 0 {
		for _, arg := range flag.Args() {
			if !dump(os.Stdout, arg, opts) {
				failed++
			}
		}
	} else {
		n, err := dumpAll(os.Stdin, os.Stdout, opts)
		if err != nil {
			log.Fatalf("failed to read stdin: %v", err)
		}
		failed = n
	}

	if failed > 0 {
		os.Exit(1)
	}
}

// dumpAll decodes every non-blank line of r and returns the number of
// inputs that failed to decode.
func dumpAll(r io.Reader, w io.Writer, opts options) (int, error) {
	var failed int
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !dump(w, line, opts) {
			failed++
		}
	}
	return failed, scanner.Err()
}

// dump decodes one hex input and writes a line describing it. It reports
// whether the input decoded.
func dump(w io.Writer, input string, opts options) bool {
	rec := decode(input, opts.envelope)

	if opts.json {
		b, err := json.Marshal(rec)
		if err != nil {
			fmt.Fprintf(w, "{\"error\":%q}\n", err.Error())
			return false
		}
		fmt.Fprintln(w, string(b))
		return rec.Error == ""
	}

	switch {
	case rec.Error != "":
		fmt.Fprintf(w, "%s\terror: %s\n", input, rec.Error)
	case opts.envelope:
		fmt.Fprintf(w, "%s -> %s %s\t%s %s\n", rec.Source, rec.Dest, rec.Path, rec.Reading, rec.Reading.Type().Unit())
	default:
		fmt.Fprintf(w, "%s %s\n", rec.Reading, rec.Reading.Type().Unit())
	}
	return rec.Error == ""
}

func decode(input string, envelope bool) record {
	data, err := hex.DecodeString(strings.ReplaceAll(strings.TrimSpace(input), " ", ""))
	if err != nil {
		return record{Error: fmt.Sprintf("invalid hex: %v", err)}
	}

	var rec record
	if envelope {
		msg, err := link.DecodeEnvelope(data)
		if err != nil {
			return record{Error: err.Error()}
		}
		rec = record{Source: msg.Source, Dest: msg.Dest, Path: msg.Path}
		data = msg.Payload
	}

	reading, err := codec.Decode(data)
	if err != nil {
		rec.Error = err.Error()
		return rec
	}
	rec.Reading = &reading
	return rec
}
