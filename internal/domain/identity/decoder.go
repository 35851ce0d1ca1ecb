// Package identity defines the external collaborator the control API
// delegates bearer-token decoding to. The core never issues or
// validates credentials; it only consumes the access.UserContext a
// Decoder implementation produces.
package identity

import (
	"context"
	"errors"

	"github.com/gatereg/registry/internal/domain/access"
)

// ErrUnauthenticated is returned when token is missing, malformed, or
// rejected by the decoder's backing identity provider.
var ErrUnauthenticated = errors.New("unauthenticated")

// Decoder turns a bearer token into the UserContext the access filter
// and permission checks operate on.
type Decoder interface {
	Decode(ctx context.Context, token string) (*access.UserContext, error)
}
