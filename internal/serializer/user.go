package serializer

import (
	"context"
	"encoding/json"
	"io"

	"github.com/dangerclosesec/assessly/internal/model"
)

// UserSerializer writes users with only the fields the viewer in context
// may see.
type UserSerializer struct{}

func (s *UserSerializer) DecodeWithContext(_ context.Context, input []byte, output any) error {
	return json.Unmarshal(input, output)
}

func (s *UserSerializer) EncodeWithContext(ctx context.Context, input any, output io.ByteWriter) error {
	var viewer *Viewer
	if v, ok := ViewerFrom(ctx); ok {
		viewer = &v
	}

	projected, err := Project(viewer, input)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(projected)
	if err != nil {
		return err
	}
	for _, b := range raw {
		if err := output.WriteByte(b); err != nil {
			return err
		}
	}
	return nil
}

// Users projects a list of users for viewer.
func Users(viewer *Viewer, users []*model.User) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(users))
	for _, u := range users {
		projected, err := Project(viewer, u)
		if err != nil {
			return nil, err
		}
		out = append(out, projected)
	}
	return out, nil
}

func init() {
	RegisterContextual(&model.User{}, &UserSerializer{})
}
