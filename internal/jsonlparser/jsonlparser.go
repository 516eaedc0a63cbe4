// Package jsonlparser reads game documents exported from the document store,
// either one JSON object per line or a single JSON array. Mongo extended JSON
// wrappers ({"$oid": ...}, {"$date": ...}, {"$numberInt": ...}) are unwrapped.
package jsonlparser

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cdtdelta/backlog/internal/model"
)

// ReadResult contains the outcome of a JSONL import operation.
type ReadResult struct {
	Games    []*model.Game
	Count    int
	Excluded int
}

// dateLayouts are tried in order for string dates.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ValidateFile checks if a file looks like a games export by reading the
// first document.
func ValidateFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	first, err := peekNonSpace(br)
	if err != nil {
		return fmt.Errorf("empty file")
	}

	var raw map[string]interface{}
	switch first {
	case '[':
		dec := json.NewDecoder(br)
		if _, err := dec.Token(); err != nil {
			return fmt.Errorf("reading array: %w", err)
		}
		if !dec.More() {
			return fmt.Errorf("empty array")
		}
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("first element is not a JSON object: %w", err)
		}
	case '{':
		line, err := readLine(br)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(line, &raw); err != nil {
			return fmt.Errorf("first line is not valid JSON: %w", err)
		}
	default:
		return fmt.Errorf("first line is not a JSON object")
	}

	_, hasTitle := raw["title"]
	_, hasID := raw["_id"]
	if !hasTitle && !hasID {
		return fmt.Errorf("no title or _id field found; does not appear to be a games export")
	}
	return nil
}

// ReadGames reads all games from a JSONL or JSON array file.
// An onProgress callback is called every 1,000 games if non-nil.
func ReadGames(path string, onProgress func(count int)) (*ReadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	return Read(f, onProgress)
}

// Read reads games from r. Documents that are not objects or that have no
// title are counted as excluded; documents without an id get a fresh one.
func Read(r io.Reader, onProgress func(count int)) (*ReadResult, error) {
	br := bufio.NewReader(r)
	result := &ReadResult{}

	add := func(raw map[string]interface{}) {
		g := mapToGame(raw)
		if g == nil {
			result.Excluded++
			return
		}
		result.Games = append(result.Games, g)
		result.Count++
		if onProgress != nil && result.Count%1000 == 0 {
			onProgress(result.Count)
		}
	}

	first, err := peekNonSpace(br)
	if errors.Is(err, io.EOF) {
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}

	if first == '[' {
		dec := json.NewDecoder(br)
		if _, err := dec.Token(); err != nil {
			return nil, fmt.Errorf("reading array: %w", err)
		}
		for dec.More() {
			var raw map[string]interface{}
			if err := dec.Decode(&raw); err != nil {
				var typeErr *json.UnmarshalTypeError
				if errors.As(err, &typeErr) {
					result.Excluded++
					continue
				}
				return nil, fmt.Errorf("decoding game %d: %w", result.Count+result.Excluded+1, err)
			}
			add(raw)
		}
		return result, nil
	}

	scanner := bufio.NewScanner(br)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var raw map[string]interface{}
		if err := json.Unmarshal(line, &raw); err != nil {
			result.Excluded++
			continue
		}
		add(raw)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading file at line %d: %w", lineNum, err)
	}

	return result, nil
}

// mapToGame converts a decoded document to a Game, or nil when the document
// has no title.
func mapToGame(raw map[string]interface{}) *model.Game {
	for k, v := range raw {
		raw[k] = unwrap(v)
	}

	title := strings.TrimSpace(interfaceToString(raw["title"]))
	if title == "" {
		return nil
	}

	g := &model.Game{
		ID:              interfaceToString(raw["_id"]),
		Title:           title,
		CoverImageID:    interfaceToString(raw["coverImageId"]),
		Developers:      interfaceToStrings(raw["developers"]),
		Finished:        interfaceToString(raw["finished"]),
		FinishedDate:    interfaceToTime(raw["finishedDate"]),
		ApproximateDate: interfaceToBool(raw["approximateDate"]),
		IGDBID:          interfaceToInt64(raw["igdbId"]),
		IGDBURL:         interfaceToString(raw["igdbUrl"]),
		Keywords:        interfaceToStrings(raw["keywords"]),
		NotPollable:     interfaceToString(raw["notPollable"]),
		Platform:        interfaceToString(raw["platform"]),
		TSS:             interfaceToBool(raw["tss"]),
		Streamed:        interfaceToBool(raw["streamed"]),
		VODs:            interfaceToStrings(raw["vods"]),
	}
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if c, ok := raw["comment"].(string); ok {
		g.Comment = model.StringPtr(c)
	}
	if n, ok := interfaceToFloat(raw["rating"]); ok {
		g.Rating = model.IntPtr(int(n))
	}
	if n, ok := interfaceToFloat(raw["releaseYear"]); ok {
		g.ReleaseYear = model.IntPtr(int(n))
	}
	if n, ok := interfaceToFloat(raw["timeSpent"]); ok && n >= 0 {
		g.TimeSpent = model.FloatPtr(n)
	}

	return g
}

// unwrap replaces Mongo extended JSON wrappers with plain values.
func unwrap(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		if len(val) == 1 {
			for k, inner := range val {
				switch k {
				case "$oid", "$numberDecimal":
					return interfaceToString(inner)
				case "$numberInt", "$numberLong", "$numberDouble":
					if s, ok := inner.(string); ok {
						if f, err := strconv.ParseFloat(s, 64); err == nil {
							return f
						}
					}
					return inner
				case "$date":
					if t := interfaceToTime(unwrap(inner)); t != nil {
						return *t
					}
					return nil
				}
			}
		}
		for k, inner := range val {
			val[k] = unwrap(inner)
		}
		return val
	case []interface{}:
		for i, inner := range val {
			val[i] = unwrap(inner)
		}
		return val
	default:
		return v
	}
}

// interfaceToTime converts a date value (time, string, or Unix milliseconds)
// to a UTC time, or nil when absent or unparseable.
func interfaceToTime(v interface{}) *time.Time {
	switch val := v.(type) {
	case time.Time:
		t := val.UTC()
		return &t
	case float64:
		t := time.UnixMilli(int64(val)).UTC()
		return &t
	case string:
		s := strings.TrimSpace(val)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				t = t.UTC()
				return &t
			}
		}
	}
	return nil
}

// interfaceToString converts various types to string.
func interfaceToString(v interface{}) string {
	if v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case float64:
		if val == math.Trunc(val) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", val)
	}
}

// interfaceToInt64 converts various types to int64.
func interfaceToInt64(v interface{}) int64 {
	n, _ := interfaceToFloat(v)
	return int64(n)
}

// interfaceToFloat converts a number or numeric string; ok is false when
// the value is absent or not numeric.
func interfaceToFloat(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func interfaceToBool(v interface{}) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		b, _ := strconv.ParseBool(val)
		return b
	default:
		return false
	}
}

// interfaceToStrings converts an array (or a single string) to a string slice.
func interfaceToStrings(v interface{}) []string {
	switch val := v.(type) {
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s := interfaceToString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if val == "" {
			return nil
		}
		return []string{val}
	default:
		return nil
	}
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		if b == ' ' || b == '\t' || b == '\n' || b == '\r' {
			continue
		}
		return b, br.UnreadByte()
	}
}

func readLine(br *bufio.Reader) ([]byte, error) {
	line, err := br.ReadBytes('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("reading first line: %w", err)
	}
	return bytes.TrimSpace(line), nil
}
