package page

import (
	"context"
	"fmt"

	"vsixgrab/internal/marketplace"
	"vsixgrab/internal/models"
	"vsixgrab/internal/orchestrator"
)

// Content extracts descriptors from remote listings on request. Each call
// is its own page view with the full retry schedule.
type Content struct {
	gallery marketplace.Gallery
	opts    []orchestrator.Option
}

func NewContent(gallery marketplace.Gallery, opts ...orchestrator.Option) *Content {
	return &Content{gallery: gallery, opts: opts}
}

func (c *Content) Extract(ctx context.Context, location string) (models.Descriptor, error) {
	if location == "" {
		return models.Descriptor{}, fmt.Errorf("%w: empty location", models.ErrMalformedInput)
	}

	opts := append([]orchestrator.Option{
		orchestrator.WithQualifier(func(string) bool { return true }),
	}, c.opts...)
	o := orchestrator.New(NewRemote(c.gallery, location), opts...)
	defer o.Unload()

	o.Start()
	desc, state, err := o.Wait(ctx)
	if err != nil {
		return desc, err
	}
	if state != orchestrator.Complete {
		return desc, fmt.Errorf("%w: %s", models.ErrIncompleteData, location)
	}
	return desc, nil
}
