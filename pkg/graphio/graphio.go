// Package graphio reads the plain-text inputs of the command line tool:
// edge lists, degree maps and ground-truth community labels.
//
// Every format is one record per line, fields separated by whitespace or
// commas. Blank lines and lines starting with '#' or '%' are ignored.
package graphio

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sanonone/nodevec/pkg/model"
	"github.com/sanonone/nodevec/pkg/trainer"
	"github.com/sanonone/nodevec/pkg/vocab"
)

// scanRecords calls fn with the fields of every data line.
func scanRecords(r io.Reader, minFields int, fn func(line int, fields []string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || text[0] == '#' || text[0] == '%' {
			continue
		}
		fields := strings.FieldsFunc(text, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		})
		if len(fields) < minFields {
			return fmt.Errorf("line %d: expected %d fields, got %d", line, minFields, len(fields))
		}
		if err := fn(line, fields); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func parseID(line int, s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("line %d: invalid node id %q: %w", line, s, err)
	}
	return id, nil
}

// ReadEdgeList parses "source target [weight]" lines. Weights are ignored.
func ReadEdgeList(r io.Reader) (trainer.EdgeList, error) {
	var edges trainer.EdgeList
	err := scanRecords(r, 2, func(line int, fields []string) error {
		src, err := parseID(line, fields[0])
		if err != nil {
			return err
		}
		dst, err := parseID(line, fields[1])
		if err != nil {
			return err
		}
		edges = append(edges, vocab.RawEdge{Source: src, Target: dst})
		return nil
	})
	return edges, err
}

// Degrees counts how many edge endpoints reference each node.
func Degrees(edges trainer.EdgeList) map[uint64]uint64 {
	degrees := make(map[uint64]uint64)
	for _, e := range edges {
		degrees[e.Source]++
		degrees[e.Target]++
	}
	return degrees
}

// ReadDegrees parses "node degree" lines.
func ReadDegrees(r io.Reader) (map[uint64]uint64, error) {
	degrees := make(map[uint64]uint64)
	err := scanRecords(r, 2, func(line int, fields []string) error {
		id, err := parseID(line, fields[0])
		if err != nil {
			return err
		}
		deg, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid degree %q: %w", line, fields[1], err)
		}
		degrees[id] = deg
		return nil
	})
	return degrees, err
}

// ReadGroundTruth parses "node label" lines. K is the number of distinct labels.
func ReadGroundTruth(r io.Reader) (model.GroundTruth, error) {
	truth := model.GroundTruth{Labels: make(map[uint64]int)}
	distinct := make(map[int]struct{})
	err := scanRecords(r, 2, func(line int, fields []string) error {
		id, err := parseID(line, fields[0])
		if err != nil {
			return err
		}
		label, err := strconv.Atoi(fields[1])
		if err != nil {
			return fmt.Errorf("line %d: invalid label %q: %w", line, fields[1], err)
		}
		truth.Labels[id] = label
		distinct[label] = struct{}{}
		return nil
	})
	truth.K = len(distinct)
	return truth, err
}

// ReadEdgeListFile opens path and parses it with ReadEdgeList.
func ReadEdgeListFile(path string) (trainer.EdgeList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	edges, err := ReadEdgeList(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return edges, nil
}

// ReadDegreesFile opens path and parses it with ReadDegrees.
func ReadDegreesFile(path string) (map[uint64]uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	degrees, err := ReadDegrees(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return degrees, nil
}

// ReadGroundTruthFile opens path and parses it with ReadGroundTruth.
func ReadGroundTruthFile(path string) (model.GroundTruth, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.GroundTruth{}, err
	}
	defer f.Close()
	truth, err := ReadGroundTruth(f)
	if err != nil {
		return model.GroundTruth{}, fmt.Errorf("%s: %w", path, err)
	}
	return truth, nil
}
