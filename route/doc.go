// Package route decides where a user may be, given the session and the
// requested path, and provides an in-memory navigator.
//
// [Guard.Decide] is a pure function. Redirects are applied with
// [Navigator.Replace] so history never holds a path the guard would reject.
package route
