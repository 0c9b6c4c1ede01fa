package models

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// EntityKind names a record type. It doubles as the wire entity type.
type EntityKind string

const (
	KindHome         EntityKind = "home"
	KindCategory     EntityKind = "category"
	KindTodoCategory EntityKind = "todo_category"
	KindTodo         EntityKind = "todo"
	KindItem         EntityKind = "item"
	KindLocation     EntityKind = "location"
)

// Seed is a default record written once when a home is first used.
type Seed struct {
	Name    string
	Payload any
}

// Descriptor is everything the repository and the sync coordinator need to
// know about one entity kind.
type Descriptor struct {
	Kind EntityKind

	// Container kinds partition every other kind. Their documents live under
	// AccountScope and each record's HomeID is its own ID.
	Container bool

	// Seeds are created by the lifecycle guard for every new home.
	Seeds []Seed

	validate func(json.RawMessage) error
}

// EntityType is the name used on the wire.
func (d Descriptor) EntityType() string {
	return string(d.Kind)
}

// Validate decodes payload into the kind's typed struct and checks its
// constraints.
func (d Descriptor) Validate(payload json.RawMessage) error {
	if d.validate == nil {
		return nil
	}
	return d.validate(payload)
}

// Scope returns the document home id for records of this kind in homeID.
func (d Descriptor) Scope(homeID string) string {
	if d.Container {
		return AccountScope
	}
	return homeID
}

var validate = validator.New()

func validatorFor[T any]() func(json.RawMessage) error {
	return func(payload json.RawMessage) error {
		var v T
		if err := json.Unmarshal(payload, &v); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		return validate.Struct(v)
	}
}

var descriptors = []Descriptor{
	{
		Kind:      KindHome,
		Container: true,
		validate:  validatorFor[Home](),
	},
	{
		Kind: KindCategory,
		Seeds: []Seed{
			{Name: "electronics", Payload: Category{Name: "Electronics", Color: "#1E88E5", Icon: "devices"}},
			{Name: "furniture", Payload: Category{Name: "Furniture", Color: "#8D6E63", Icon: "chair"}},
			{Name: "kitchen", Payload: Category{Name: "Kitchen", Color: "#FB8C00", Icon: "kitchen"}},
			{Name: "tools", Payload: Category{Name: "Tools", Color: "#546E7A", Icon: "build"}},
			{Name: "clothing", Payload: Category{Name: "Clothing", Color: "#AB47BC", Icon: "checkroom"}},
		},
		validate: validatorFor[Category](),
	},
	{
		Kind: KindTodoCategory,
		Seeds: []Seed{
			{Name: "general", Payload: TodoCategory{Name: "General", Color: "#607D8B"}},
			{Name: "shopping", Payload: TodoCategory{Name: "Shopping", Color: "#43A047"}},
			{Name: "maintenance", Payload: TodoCategory{Name: "Maintenance", Color: "#F4511E"}},
		},
		validate: validatorFor[TodoCategory](),
	},
	{
		Kind: KindLocation,
		Seeds: []Seed{
			{Name: "living-room", Payload: Location{Name: "Living Room"}},
			{Name: "kitchen", Payload: Location{Name: "Kitchen"}},
			{Name: "bedroom", Payload: Location{Name: "Bedroom"}},
			{Name: "garage", Payload: Location{Name: "Garage"}},
		},
		validate: validatorFor[Location](),
	},
	{
		Kind:     KindItem,
		validate: validatorFor[Item](),
	},
	{
		Kind:     KindTodo,
		validate: validatorFor[Todo](),
	},
}

// Kinds returns every descriptor, container first, in sync order.
func Kinds() []Descriptor {
	return append([]Descriptor(nil), descriptors...)
}

// DependentKinds returns the descriptors scoped to a home.
func DependentKinds() []Descriptor {
	var out []Descriptor
	for _, d := range descriptors {
		if !d.Container {
			out = append(out, d)
		}
	}
	return out
}

// Describe looks up the descriptor for kind.
func Describe(kind EntityKind) (Descriptor, bool) {
	for _, d := range descriptors {
		if d.Kind == kind {
			return d, true
		}
	}
	return Descriptor{}, false
}

// ParseKind accepts a kind name as typed by a user.
func ParseKind(s string) (EntityKind, error) {
	if d, ok := Describe(EntityKind(s)); ok {
		return d.Kind, nil
	}
	return "", fmt.Errorf("unknown entity kind %q", s)
}

var seedNamespace = uuid.MustParse("6f1c3b5e-9a0d-4c59-8a8e-2f4b1d7c9e10")

// SeedID derives the id of a default record. Every device seeding the same
// home produces the same ids, so the server sees one record, not duplicates.
func SeedID(homeID string, kind EntityKind, name string) string {
	return uuid.NewSHA1(seedNamespace, []byte(homeID+"/"+string(kind)+"/"+name)).String()
}

// DefaultHome is the payload of a synthesized container record.
func DefaultHome() Home {
	return Home{Name: "My Home"}
}
