package utils

// ContextKey is the type used for values the auth middleware stores on the
// request context, so handler packages never collide with other keys.
type ContextKey string
