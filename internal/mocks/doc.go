// Package mocks provides shared test doubles for the interfaces that sit
// at the edges of the pipeline: the image generator, the issue tracker
// client and the run ledger.
//
// MockImageGenerator exposes a function field for custom behavior, default
// return values and mutex-guarded call tracking:
//
//	gen := &mocks.MockImageGenerator{
//	    GenerateFn: func(ctx context.Context, req generation.Request) (*generation.Image, error) {
//	        return &generation.Image{Data: png}, nil
//	    },
//	}
//
// The tracker and run ledger doubles are testify mocks configured with On.
package mocks
