package cli

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dmitrijs2005/homekeeper/internal/client/models"
	"github.com/goccy/go-json"
)

type fieldType int

const (
	textField fieldType = iota
	multilineField
	intField
	floatField
	boolField
	dateField
)

const dateLayout = "2006-01-02"

type field struct {
	key   string
	label string
	typ   fieldType
}

// forms lists the prompted fields per kind. Keys match the JSON payload.
var forms = map[models.EntityKind][]field{
	models.KindHome: {
		{"name", "Name", textField},
		{"address", "Address", textField},
	},
	models.KindCategory: {
		{"name", "Name", textField},
		{"color", "Color (#RRGGBB)", textField},
		{"icon", "Icon", textField},
	},
	models.KindTodoCategory: {
		{"name", "Name", textField},
		{"color", "Color (#RRGGBB)", textField},
	},
	models.KindTodo: {
		{"title", "Title", textField},
		{"notes", "Notes", multilineField},
		{"done", "Done (true/false)", boolField},
		{"dueAt", "Due date (YYYY-MM-DD)", dateField},
		{"categoryId", "Todo category id", textField},
		{"priority", "Priority (0-3)", intField},
	},
	models.KindItem: {
		{"name", "Name", textField},
		{"description", "Description", multilineField},
		{"quantity", "Quantity", intField},
		{"categoryId", "Category id", textField},
		{"locationId", "Location id", textField},
		{"purchasedAt", "Purchase date (YYYY-MM-DD)", dateField},
		{"price", "Price", floatField},
	},
	models.KindLocation: {
		{"name", "Name", textField},
		{"description", "Description", multilineField},
	},
}

// readForm prompts for every field of kind and returns the answers as a JSON
// object. Empty answers are left out, so on edit they keep the current value.
func readForm(r *bufio.Reader, w io.Writer, kind models.EntityKind) ([]byte, error) {
	fields, ok := forms[kind]
	if !ok {
		return nil, fmt.Errorf("no form for %s", kind)
	}

	values := make(map[string]any, len(fields))
	for _, f := range fields {
		var (
			raw string
			err error
		)
		if f.typ == multilineField {
			raw, err = GetMultiline(r, f.label, w)
		} else {
			raw, err = getSimpleText(r, f.label, w)
		}
		if err != nil {
			return nil, err
		}
		if raw == "" {
			continue
		}

		v, err := parseField(f, raw)
		if err != nil {
			return nil, err
		}
		values[f.key] = v
	}

	return json.Marshal(values)
}

func parseField(f field, raw string) (any, error) {
	var (
		v   any
		err error
	)
	switch f.typ {
	case intField:
		v, err = strconv.Atoi(raw)
	case floatField:
		v, err = strconv.ParseFloat(raw, 64)
	case boolField:
		v, err = strconv.ParseBool(raw)
	case dateField:
		v, err = time.Parse(dateLayout, raw)
	default:
		v = raw
	}
	if err != nil {
		return nil, fmt.Errorf("%s: invalid value %q", f.label, raw)
	}
	return v, nil
}

// summary renders the name-like field of a payload for listings.
func summary(payload []byte) string {
	var m map[string]any
	if err := json.Unmarshal(payload, &m); err != nil {
		return "?"
	}
	for _, k := range []string{"name", "title"} {
		if s, ok := m[k].(string); ok {
			return s
		}
	}
	return "?"
}
