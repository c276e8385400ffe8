package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"epilogue/internal/service"
)

func TestNavStack(t *testing.T) {
	ctx := context.Background()
	em := &service.MockEmitter{}
	nav := service.NewNavStack(em)

	assert.Equal(t, service.ScreenHome, nav.Current().Screen)

	nav.Navigate(ctx, service.ScreenDetails, "book-1")
	nav.Navigate(ctx, service.ScreenSignIn, nil)
	assert.Len(t, nav.Entries(), 3)

	// navigating to a screen already on the stack pops back to it
	nav.Navigate(ctx, service.ScreenHome, nil)
	assert.Equal(t, []service.NavEntry{{Screen: service.ScreenHome}}, nav.Entries())

	nav.Back(ctx)
	assert.Equal(t, service.ScreenHome, nav.Current().Screen, "root is never popped")

	nav.Navigate(ctx, service.ScreenDetails, nil)
	nav.Back(ctx)
	assert.Equal(t, service.ScreenHome, nav.Current().Screen)

	assert.Len(t, em.Named(service.EventNavigate), 4)
	assert.Len(t, em.Named(service.EventNavigateBack), 2)
}
