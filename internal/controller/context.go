package controller

import (
	"context"

	"github.com/sharetube/watchparty/internal/identity"
)

// getPrincipalFromCtx is only valid behind authMw.
func (c *controller) getPrincipalFromCtx(ctx context.Context) identity.Principal {
	p, _ := identity.FromContext(ctx)
	return p
}
