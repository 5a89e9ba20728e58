// Package ingest imports transport requests from external order sources.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"medroute/internal/model"
)

// Column aliases accepted in the header row. Dispatch centers export
// with Spanish or English headings depending on the upstream system.
var columnAliases = map[string]string{
	"patient":          "patient",
	"paciente":         "patient",
	"pickup_address":   "pickup",
	"pickup":           "pickup",
	"origen":           "pickup",
	"delivery_address": "delivery",
	"delivery":         "delivery",
	"destino":          "delivery",
	"category":         "category",
	"categoria":        "category",
	"appointment":      "appointment",
	"cita":             "appointment",
	"companion":        "companion",
	"acompanante":      "companion",
	"external_ref":     "external_ref",
	"ref":              "external_ref",
	"notes":            "notes",
	"observaciones":    "notes",
}

// RowError records a rejected CSV line and why it was skipped.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }

// ParseCSV reads a request export and returns the parseable requests plus
// per-row errors for the rest. The first record must be a header; both
// comma and semicolon separators are accepted.
func ParseCSV(r io.Reader) ([]model.RequestIn, []RowError, error) {
	br, sep, err := detectSeparator(r)
	if err != nil {
		return nil, nil, err
	}
	cr := csv.NewReader(br)
	cr.Comma = sep
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	cols := map[string]int{}
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if name, ok := columnAliases[key]; ok {
			cols[name] = i
		}
	}
	for _, required := range []string{"patient", "pickup", "delivery", "category"} {
		if _, ok := cols[required]; !ok {
			return nil, nil, fmt.Errorf("missing required column %q", required)
		}
	}

	var (
		out     []model.RequestIn
		rowErrs []RowError
		line    = 1
	)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			rowErrs = append(rowErrs, RowError{Line: line, Err: err})
			continue
		}
		req, err := rowToRequest(rec, cols)
		if err != nil {
			rowErrs = append(rowErrs, RowError{Line: line, Err: err})
			continue
		}
		out = append(out, req)
	}
	return out, rowErrs, nil
}

func rowToRequest(rec []string, cols map[string]int) (model.RequestIn, error) {
	field := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}
	req := model.RequestIn{
		ExternalRef:     field("external_ref"),
		Patient:         field("patient"),
		PickupAddress:   field("pickup"),
		DeliveryAddress: field("delivery"),
		Category:        field("category"),
		Appointment:     field("appointment"),
		Notes:           field("notes"),
	}
	switch strings.ToLower(field("companion")) {
	case "", "0", "no", "false":
	case "1", "si", "sí", "yes", "true":
		req.Companion = true
	default:
		return model.RequestIn{}, fmt.Errorf("unrecognized companion value %q", field("companion"))
	}
	if req.Patient == "" {
		return model.RequestIn{}, fmt.Errorf("patient is empty")
	}
	if req.PickupAddress == "" || req.DeliveryAddress == "" {
		return model.RequestIn{}, fmt.Errorf("pickup and delivery addresses are required")
	}
	if req.Category == "" {
		return model.RequestIn{}, fmt.Errorf("category is empty")
	}
	return req, nil
}

// detectSeparator sniffs the header line for semicolons, returning a
// reader that still yields the full input.
func detectSeparator(r io.Reader) (io.Reader, rune, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, 0, err
	}
	head = head[:n]
	sep := ','
	if i := strings.IndexByte(string(head), '\n'); i >= 0 {
		if strings.Count(string(head[:i]), ";") > strings.Count(string(head[:i]), ",") {
			sep = ';'
		}
	} else if strings.Count(string(head), ";") > strings.Count(string(head), ",") {
		sep = ';'
	}
	return io.MultiReader(strings.NewReader(string(head)), r), sep, nil
}
