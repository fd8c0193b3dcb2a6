// Package generation is the boundary between the pipeline and the external
// image-generation service. It defines the ImageGenerator interface, the
// errors implementations classify their failures into, and the style
// catalog: per-style prompts and the popularity and compatibility weights
// used to score each generated variant.
package generation
