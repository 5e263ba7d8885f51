package shared

import "context"

// Actor identifies who performs a command. The id and display name are
// captured into audit entries at write time, so renaming or deleting the
// account later does not rewrite history.
type Actor struct {
	ID   int64
	Name string
}

type actorContextKey struct{}

// ContextWithActor stores the acting user in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the acting user from context. The zero Actor is
// returned for background work that runs without a user.
func ActorFromContext(ctx context.Context) Actor {
	actor, _ := ctx.Value(actorContextKey{}).(Actor)
	return actor
}

// SystemActor is recorded for transitions performed by scheduled jobs.
var SystemActor = Actor{ID: 0, Name: "system"}
