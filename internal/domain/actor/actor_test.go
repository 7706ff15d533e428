package actor

import (
	"context"
	"testing"

	"github.com/ohdear-panel/internal/domain/permission"
	"github.com/stretchr/testify/assert"
)

func TestActor_Can(t *testing.T) {
	var nobody *Actor
	assert.False(t, nobody.Can(permission.ViewOverview))
	assert.Nil(t, nobody.PermissionSet())

	a := &Actor{ID: "1", Permissions: permission.NewSet(permission.ViewOverview)}
	assert.True(t, a.Can(permission.ViewOverview))
	assert.False(t, a.Can(permission.ViewUptime))
	assert.True(t, a.PermissionSet().Has(permission.ViewOverview))
}

func TestContext(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))

	a := &Actor{ID: "42"}
	ctx := WithActor(context.Background(), a)
	assert.Same(t, a, FromContext(ctx))
}
