package serializer

import (
	"context"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/dangerclosesec/assessly/internal/model"
	"github.com/google/uuid"
)

var (
	serializers           = make(Serializers)
	contextualSerializers = make(ContextualSerializers)
)

type ContextualSerializers map[reflect.Type]ContextualSerializer

// ContextualSerializer extends the base Serializer interface to accept a context.
type ContextualSerializer interface {
	// DecodeWithContext decodes the input into the output, using context for scope or auth info.
	DecodeWithContext(ctx context.Context, input []byte, output any) error

	// EncodeWithContext encodes the input into the output, using context for scope or auth info.
	EncodeWithContext(ctx context.Context, input any, output io.ByteWriter) error
}

type Serializers map[reflect.Type]Serializer

// Serializer is the interface that wraps the basic serialization methods
type Serializer interface {

	// Decode decodes the input into the output
	Decode(input []byte, output any) error

	// Encode encodes the input into the output
	Encode(input any, output io.ByteWriter) error
}

// Register registers a model and its serializer
func Register(model any, serializer Serializer) {
	serializers[reflect.TypeOf(model)] = serializer
}

func Encode(model any, output io.ByteWriter) error {
	if serializer, ok := serializers[reflect.TypeOf(model)]; ok {
		return serializer.Encode(model, output)
	}

	return fmt.Errorf("no serializer found for model %T", model)
}

func Decode(model any, input []byte) error {
	if serializer, ok := serializers[reflect.TypeOf(model)]; ok {
		return serializer.Decode(input, model)
	}

	return fmt.Errorf("no serializer found for model %T", model)
}

// RegisterContextual registers a model with a context-aware serializer.
func RegisterContextual(model any, serializer ContextualSerializer) {
	contextualSerializers[reflect.TypeOf(model)] = serializer
}

// EncodeWithContext attempts to find a context-aware serializer first.
// If none is found, it falls back to a basic serializer.
func EncodeWithContext(ctx context.Context, model any, output io.ByteWriter) error {
	t := reflect.TypeOf(model)
	if s, ok := contextualSerializers[t]; ok {
		return s.EncodeWithContext(ctx, model, output)
	}

	if s, ok := serializers[t]; ok {
		return s.Encode(model, output)
	}

	return fmt.Errorf("no serializer found for model %T", model)
}

// DecodeWithContext attempts to find a context-aware serializer first.
func DecodeWithContext(ctx context.Context, model any, input []byte) error {
	t := reflect.TypeOf(model)
	if s, ok := contextualSerializers[t]; ok {
		return s.DecodeWithContext(ctx, input, model)
	}

	if s, ok := serializers[t]; ok {
		return s.Decode(input, model)
	}

	return fmt.Errorf("no serializer found for model %T", model)
}

// Viewer is who a payload is being rendered for.
type Viewer struct {
	UserID uuid.UUID
	Role   model.Role
}

type viewerKey struct{}

func WithViewer(ctx context.Context, v Viewer) context.Context {
	return context.WithValue(ctx, viewerKey{}, v)
}

func ViewerFrom(ctx context.Context) (Viewer, bool) {
	v, ok := ctx.Value(viewerKey{}).(Viewer)
	return v, ok
}

// ParseScopes extracts the scope portion from the tag. Example: "scope:admin,self" -> ["admin", "self"]
func ParseScopes(tag string) []string {
	prefix := "scope:"
	idx := strings.Index(tag, prefix)
	if idx == -1 {
		if tag == "always" {
			return []string{"always"}
		}
		return nil
	}

	scopes := strings.TrimPrefix(tag[idx:], prefix)
	scopes = strings.TrimSpace(scopes)
	return strings.Split(scopes, ",")
}

// CanViewField examines a `szlr` tag and decides whether viewer may see the
// field of a record owned by owner. Untagged fields are visible; a nil
// viewer sees only "always" fields.
func CanViewField(szlrTag string, viewer *Viewer, owner uuid.UUID) bool {
	if szlrTag == "" {
		return true
	}

	for _, scope := range ParseScopes(szlrTag) {
		switch strings.TrimSpace(scope) {
		case "always":
			return true
		case "admin":
			if viewer != nil && viewer.Role == model.RoleAdmin {
				return true
			}
		case "manager":
			if viewer != nil && viewer.Role == model.RoleManager {
				return true
			}
		case "self":
			if viewer != nil && owner != uuid.Nil && viewer.UserID == owner {
				return true
			}
		}
	}
	return false
}

// Project renders a struct (or pointer to one) as a map of its visible
// json fields.
func Project(viewer *Viewer, input any) (map[string]any, error) {
	v := reflect.ValueOf(input)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, fmt.Errorf("cannot project %T", input)
	}

	owner := ownerOf(input)
	t := v.Type()
	out := make(map[string]any, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name := jsonName(field)
		if name == "" {
			continue
		}
		if !CanViewField(field.Tag.Get("szlr"), viewer, owner) {
			continue
		}
		out[name] = v.Field(i).Interface()
	}
	return out, nil
}

func jsonName(field reflect.StructField) string {
	tag := field.Tag.Get("json")
	if tag == "-" {
		return ""
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return field.Name
	}
	return name
}

func ownerOf(input any) uuid.UUID {
	switch m := input.(type) {
	case *model.User:
		return m.ID
	case model.User:
		return m.ID
	case *model.Report:
		return m.OwnerID
	case *model.TestResult:
		return m.UserID
	}
	return uuid.Nil
}
