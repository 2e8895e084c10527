// Package playerstate binds untrusted, already-parsed game state onto fixed
// record shapes.
//
// Two policies exist. Permissive binding fills a PermissiveState: unknown
// keys are ignored, and the two extension slots (is_admin, gold) are filled
// whenever the client sends them. Strict binding fills a StrictState, which
// has no extension slots at all, and fails with an UnknownField BindError as
// soon as any object carries a key outside its declared set.
//
// The permissive shape exists so the two behaviours can be served side by
// side; new code should bind with Strict.
package playerstate
