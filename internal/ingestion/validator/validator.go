// Package validator provides input validation for ingestion requests. It
// enforces title and body length constraints and annotation shape, and
// returns per-field error details.
package validator

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/concordance/internal/ingestion"
)

const (
	maxTitleLength   = 1024
	maxBodyLength    = 1048576
	minBodyLength    = 1
	maxAnnotations   = 1024
	maxIdempotentKey = 255
)

var (
	annotationName = regexp.MustCompile(`^@?[A-Za-z][A-Za-z0-9_.-]{0,63}$`)
	reservedNames  = map[string]struct{}{"doc": {}, "title": {}, "body": {}}
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s:%s", field, msg))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

// ValidateIngestRequest checks the request and returns a ValidationError
// describing every failing field.
func ValidateIngestRequest(req *ingestion.IngestRequest) error {
	errs := make(map[string]string)

	title := strings.TrimSpace(req.Title)
	if title == "" {
		errs["title"] = "title is required"
	} else if len(title) > maxTitleLength {
		errs["title"] = fmt.Sprintf("title must be at most %d characters", maxTitleLength)
	}
	body := strings.TrimSpace(req.Body)
	if len(body) < minBodyLength {
		errs["body"] = "body is required and must not be empty"
	} else if len(body) > maxBodyLength {
		errs["body"] = fmt.Sprintf("body must be at most %d characters", maxBodyLength)
	}
	if len(req.IdempotencyKey) > maxIdempotentKey {
		errs["idempotency_key"] = fmt.Sprintf("idempotency key must be at most %d characters", maxIdempotentKey)
	}
	if msg := validateAnnotations(req.Annotations); msg != "" {
		errs["annotations"] = msg
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// validateAnnotations checks each annotation on its own and then that no
// two annotations of the same name nest or share a start, since a name's
// intervals must form a list ordered by both start and end.
func validateAnnotations(anns []ingestion.Annotation) string {
	if len(anns) > maxAnnotations {
		return fmt.Sprintf("at most %d annotations are allowed", maxAnnotations)
	}
	byName := make(map[string][]ingestion.Annotation)
	for i, a := range anns {
		if !annotationName.MatchString(a.Name) {
			return fmt.Sprintf("annotation %d: invalid name %q", i, a.Name)
		}
		name := strings.TrimPrefix(a.Name, "@")
		if _, reserved := reservedNames[name]; reserved {
			return fmt.Sprintf("annotation %d: name %q is reserved", i, a.Name)
		}
		if a.Start < 0 || a.End < a.Start {
			return fmt.Sprintf("annotation %d: invalid range [%d,%d]", i, a.Start, a.End)
		}
		byName[name] = append(byName[name], a)
	}
	for name, list := range byName {
		sort.Slice(list, func(i, j int) bool { return list[i].Start < list[j].Start })
		for i := 1; i < len(list); i++ {
			if list[i].Start == list[i-1].Start || list[i].End <= list[i-1].End {
				return fmt.Sprintf("annotations named %q nest: [%d,%d] and [%d,%d]",
					name, list[i-1].Start, list[i-1].End, list[i].Start, list[i].End)
			}
		}
	}
	return ""
}
