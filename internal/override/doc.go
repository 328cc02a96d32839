// Package override holds template-override declarations contributed by
// add-on modules and resolves them into a single slot -> fragment mapping.
//
// Resolution always runs over the complete declaration set. The highest
// sequence wins a slot; equal sequences are settled by the dependency graph
// (a module that depends on the other loads later and wins). Anything still
// tied is reported as a ConfigurationError instead of being picked silently.
package override
